// Package prompt provides file-backed persona prompt loading.
//
// A persona is a named system-instruction text stored as <name>.txt inside a
// prompt directory. Prompts are assumed static for the process lifetime, so the
// first successful load of a name is memoized forever.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPersona is the fallback persona used by Resolve when a named persona
// has no backing file.
const DefaultPersona = "default"

var (
	// ErrInvalidName indicates the persona name is not a plain identifier.
	ErrInvalidName = errors.New("invalid persona name")

	// ErrNotFound indicates no prompt file exists for the requested persona.
	ErrNotFound = errors.New("persona prompt not found")

	// ErrMissingDefault indicates neither the requested persona nor the
	// default persona has a backing file. This is a configuration error, not a
	// per-request condition.
	ErrMissingDefault = errors.New("default persona prompt not found")
)

// Store loads persona prompts from a directory and caches them.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewStore creates a prompt store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Get returns the prompt text for name. The name is validated before any
// filesystem access. Unlike Resolve, a missing file is an error; no default
// substitution happens on this path.
func (s *Store) Get(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if text, ok := s.cached(name); ok {
		return text, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name+".txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("read prompt %q: %w", name, err)
	}

	text := string(data)
	s.store(name, text)
	return text, nil
}

// Resolve returns the prompt text for name, falling back to the default
// persona when name has no backing file. Resolve fails with ErrMissingDefault
// only when the default prompt is missing too.
func (s *Store) Resolve(name string) (string, error) {
	text, err := s.Get(name)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	text, err = s.Get(DefaultPersona)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrMissingDefault
		}
		return "", err
	}
	return text, nil
}

func (s *Store) cached(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.cache[name]
	return text, ok
}

func (s *Store) store(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[name] = text
}

// validName reports whether name is a plain identifier: ASCII letters, digits
// and underscores, not starting with a digit. Anything else (path separators,
// dots, empty string) is rejected to block path traversal.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
