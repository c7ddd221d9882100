// Package chat implements the text conversation path.
//
// A Responder owns the per-session transcript: it seeds the transcript with the
// persona's system prompt on the first turn, assembles a single prompt string
// from the accumulated history plus the new user input, performs one generation
// call, and appends the exchange back to the transcript. The transcript is the
// model's context window substitute; there is no separate message history.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/persona-ai/persona-ai/pkg/memory"
	"github.com/persona-ai/persona-ai/pkg/prompt"
)

// Generator performs one single-turn text generation call. Implementations
// must not retry internally; failures are surfaced to the caller as-is.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Responder produces chat replies with per-session transcript memory.
type Responder struct {
	prompts  *prompt.Store
	sessions *memory.Store
	gen      Generator
}

// NewResponder creates a Responder over the given prompt store, session store
// and generator.
func NewResponder(prompts *prompt.Store, sessions *memory.Store, gen Generator) *Responder {
	return &Responder{
		prompts:  prompts,
		sessions: sessions,
		gen:      gen,
	}
}

// Respond handles one chat turn for sessionID.
//
// The transcript is seeded with "System: <persona prompt>\n" on the first turn
// of a session and never re-seeded, even if persona changes on later turns.
// Persona lookup failures propagate prompt.ErrNotFound / prompt.ErrInvalidName;
// generator failures are wrapped and returned after a single attempt.
func (r *Responder) Respond(ctx context.Context, sessionID, userText, persona string) (string, error) {
	r.sessions.Ensure(sessionID)
	history := r.sessions.Get(sessionID)

	systemPrompt, err := r.prompts.Get(persona)
	if err != nil {
		return "", err
	}

	if history == "" {
		history = "System: " + systemPrompt + "\n"
	}

	// Trailing cue names the persona as the expected next speaker.
	fullPrompt := fmt.Sprintf("%sUser: %s\n%s:", history, userText, persona)

	reply, err := r.gen.Generate(ctx, fullPrompt)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)

	r.sessions.Set(sessionID, fmt.Sprintf("%sUser: %s\n%s: %s\n", history, userText, persona, reply))

	log.Printf("[Chat] session=%s persona=%s turn complete (%d chars)", sessionID, persona, len(reply))
	return reply, nil
}
