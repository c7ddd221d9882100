package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/persona-ai/persona-ai/pkg/memory"
	"github.com/persona-ai/persona-ai/pkg/prompt"
)

// stubGenerator returns canned replies in order, recording the prompts it saw.
type stubGenerator struct {
	replies []string
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, p string) (string, error) {
	s.prompts = append(s.prompts, p)
	if s.err != nil {
		return "", s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

func newTestResponder(t *testing.T, gen Generator) (*Responder, *memory.Store) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.txt"), []byte("Be helpful."), 0o644))
	sessions := memory.NewStore()
	return NewResponder(prompt.NewStore(dir), sessions, gen), sessions
}

func TestRespondSeedsTranscript(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Hello there!"}}
	responder, sessions := newTestResponder(t, gen)

	reply, err := responder.Respond(context.Background(), "abc", "hi", "default")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply)

	transcript := sessions.Get("abc")
	assert.Equal(t, "System: Be helpful.\nUser: hi\ndefault: Hello there!\n", transcript)

	// The prompt sent upstream ends with the persona speaker cue.
	require.Len(t, gen.prompts, 1)
	assert.Equal(t, "System: Be helpful.\nUser: hi\ndefault:", gen.prompts[0])
}

func TestRespondAccumulatesTurns(t *testing.T) {
	gen := &stubGenerator{replies: []string{"first", "second"}}
	responder, sessions := newTestResponder(t, gen)

	_, err := responder.Respond(context.Background(), "abc", "one", "default")
	require.NoError(t, err)
	_, err = responder.Respond(context.Background(), "abc", "two", "default")
	require.NoError(t, err)

	want := "System: Be helpful.\n" +
		"User: one\ndefault: first\n" +
		"User: two\ndefault: second\n"
	assert.Equal(t, want, sessions.Get("abc"))
}

func TestRespondTrimsReplyWhitespace(t *testing.T) {
	gen := &stubGenerator{replies: []string{"  spaced out \n"}}
	responder, sessions := newTestResponder(t, gen)

	reply, err := responder.Respond(context.Background(), "abc", "hi", "default")
	require.NoError(t, err)
	assert.Equal(t, "spaced out", reply)
	assert.Contains(t, sessions.Get("abc"), "default: spaced out\n")
}

func TestRespondUnknownPersona(t *testing.T) {
	gen := &stubGenerator{replies: []string{"unused"}}
	responder, sessions := newTestResponder(t, gen)

	_, err := responder.Respond(context.Background(), "abc", "hi", "nobody")
	assert.ErrorIs(t, err, prompt.ErrNotFound)

	// No upstream call and no transcript mutation on persona failure.
	assert.Empty(t, gen.prompts)
	assert.Equal(t, "", sessions.Get("abc"))
}

func TestRespondInvalidPersona(t *testing.T) {
	gen := &stubGenerator{replies: []string{"unused"}}
	responder, _ := newTestResponder(t, gen)

	_, err := responder.Respond(context.Background(), "abc", "hi", "../default")
	assert.ErrorIs(t, err, prompt.ErrInvalidName)
}

func TestRespondUpstreamFailure(t *testing.T) {
	upstreamErr := errors.New("model unavailable")
	gen := &stubGenerator{err: upstreamErr}
	responder, sessions := newTestResponder(t, gen)

	_, err := responder.Respond(context.Background(), "abc", "hi", "default")
	assert.ErrorIs(t, err, upstreamErr)

	// Single attempt, transcript untouched.
	assert.Len(t, gen.prompts, 1)
	assert.Equal(t, "", sessions.Get("abc"))
}

func TestRespondPersonaFixedBySeeding(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.txt"), []byte("Be helpful."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "elon.txt"), []byte("You are Elon Musk."), 0o644))

	gen := &stubGenerator{replies: []string{"first", "second"}}
	sessions := memory.NewStore()
	responder := NewResponder(prompt.NewStore(dir), sessions, gen)

	_, err := responder.Respond(context.Background(), "abc", "one", "default")
	require.NoError(t, err)
	_, err = responder.Respond(context.Background(), "abc", "two", "elon")
	require.NoError(t, err)

	// The system line reflects the persona active on turn one, exactly once.
	transcript := sessions.Get("abc")
	assert.Contains(t, transcript, "System: Be helpful.\n")
	assert.NotContains(t, transcript, "You are Elon Musk.")
	assert.Equal(t, 1, countOccurrences(transcript, "System: "))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}
