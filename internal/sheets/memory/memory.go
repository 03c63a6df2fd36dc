// Package memory is an in-process EntryAppender for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"grana/internal/core"
)

type Store struct {
	mu      sync.Mutex
	items   []core.Entry
	failErr error
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	if e.Amount.Cents <= 0 {
		return "", errors.New("append: non-positive amount")
	}
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Items returns a copy of everything appended so far.
func (s *Store) Items() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.items...)
}

// FailWith makes subsequent appends return err; nil restores normal
// behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}
