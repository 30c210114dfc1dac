// Package memory is an in-process Mirror for tests and for running the
// worker without Google credentials.
package memory

import (
	"context"
	"sync"

	"ttclub/internal/core"
	"ttclub/internal/sheets"
)

type Store struct {
	mu           sync.Mutex
	members      [][]string
	transactions [][]string
	syncs        int
	failNext     error
}

var _ sheets.Mirror = (*Store)(nil)

func New() *Store { return &Store{} }

func (s *Store) Mirror(ctx context.Context, snap core.Snapshot) (sheets.Result, error) {
	if err := ctx.Err(); err != nil {
		return sheets.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failNext; err != nil {
		s.failNext = nil
		return sheets.Result{}, err
	}
	s.members, s.transactions = sheets.Tables(snap)
	s.syncs++
	return sheets.ResultOf(s.members, s.transactions), nil
}

// FailNext makes the next Mirror call return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

// Sheet returns a copy of the last written members or transactions table.
func (s *Store) Sheet(name string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var src [][]string
	switch name {
	case "members":
		src = s.members
	case "transactions":
		src = s.transactions
	}
	out := make([][]string, len(src))
	for i, row := range src {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Syncs counts successful Mirror calls.
func (s *Store) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}
