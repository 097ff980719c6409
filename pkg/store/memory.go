package store

import (
	"context"
	"sync"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
)

// MemoryStore keeps everything in process. It backs tests and the "memory" backend.
type MemoryStore struct {
	mu      sync.RWMutex
	puzzles map[string]puzzle.Puzzle
	defs    map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		puzzles: make(map[string]puzzle.Puzzle),
		defs:    make(map[string]string),
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, u puzzle.Update) error {
	u, err := u.Normalize()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := u.Puzzle.Clone()
	p.Date = puzzle.Day(p.Date)
	m.puzzles[puzzle.FormatDate(p.Date)] = p
	for w, d := range u.Definitions {
		if d != "" {
			m.defs[w] = d
		}
	}
	return nil
}

func (m *MemoryStore) Puzzles(ctx context.Context, f puzzle.Filter) ([]puzzle.Puzzle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]puzzle.Puzzle, 0, len(m.puzzles))
	for _, p := range m.puzzles {
		if f.Includes(p.Date) {
			out = append(out, p.Clone())
		}
	}
	puzzle.SortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) Definitions(ctx context.Context, f puzzle.Filter) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string)
	if !f.Bounded() {
		for w, d := range m.defs {
			out[w] = d
		}
		return out, nil
	}
	for _, p := range m.puzzles {
		if !f.Includes(p.Date) {
			continue
		}
		for _, w := range p.Words() {
			if d, ok := m.defs[w]; ok {
				out[w] = d
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
