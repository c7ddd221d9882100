package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameQueueFIFO(t *testing.T) {
	q := newFrameQueue(8)

	q.push([]byte{1})
	q.push([]byte{2})
	q.push([]byte{3})

	assert.Equal(t, []byte{1}, <-q.frames())
	assert.Equal(t, []byte{2}, <-q.frames())
	assert.Equal(t, []byte{3}, <-q.frames())
}

func TestFrameQueueDropOldestWhenFull(t *testing.T) {
	q := newFrameQueue(2)

	q.push([]byte{1})
	q.push([]byte{2})
	q.push([]byte{3}) // full: frame 1 dropped

	assert.Equal(t, []byte{2}, <-q.frames())
	assert.Equal(t, []byte{3}, <-q.frames())
	assert.Equal(t, 1, q.droppedFrames())
}

func TestFrameQueueCloseSignalsEndOfStream(t *testing.T) {
	q := newFrameQueue(4)
	q.push([]byte{1})
	q.close()

	// Buffered frames drain first, then the channel reports closed.
	frame, ok := <-q.frames()
	require.True(t, ok)
	assert.Equal(t, []byte{1}, frame)

	_, ok = <-q.frames()
	assert.False(t, ok)
}

func TestFrameQueuePushAfterCloseIsNoOp(t *testing.T) {
	q := newFrameQueue(4)
	q.close()

	assert.NotPanics(t, func() {
		q.push([]byte{1})
	})
	q.close() // idempotent
}
