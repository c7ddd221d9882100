package relay

import (
	"log"
	"sync"
)

// frameQueue is a bounded FIFO of audio frames with a drop-oldest policy.
// Producers never block: when the queue is full the oldest frame is discarded
// to make room. Capacity is sized so the policy only engages when one leg of
// the relay stalls.
type frameQueue struct {
	mu      sync.Mutex
	ch      chan []byte
	closed  bool
	dropped int
}

func newFrameQueue(capacity int) *frameQueue {
	return &frameQueue{
		ch: make(chan []byte, capacity),
	}
}

// push enqueues a frame without blocking. Frames pushed after close are
// silently discarded.
func (q *frameQueue) push(frame []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	select {
	case q.ch <- frame:
		return
	default:
	}

	// Full: drop the oldest frame, then retry once.
	select {
	case <-q.ch:
		q.dropped++
		if q.dropped%100 == 1 {
			log.Printf("[relay] frame queue full, %d frames dropped so far", q.dropped)
		}
	default:
	}
	select {
	case q.ch <- frame:
	default:
	}
}

// frames exposes the receive side of the queue. The channel is closed by
// close(), after which readers drain remaining frames and then observe
// end-of-stream.
func (q *frameQueue) frames() <-chan []byte {
	return q.ch
}

// close marks the queue closed and closes the underlying channel. Idempotent.
func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *frameQueue) droppedFrames() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
