// Package view assembles what the rendering layer consumes: puzzles newest
// first and the definitions of the words they use.
package view

import (
	"context"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"golang.org/x/sync/errgroup"
)

// View is handed to the renderer as is. It must not be re-sorted.
type View struct {
	Puzzles     []puzzle.Puzzle   `json:"puzzles" yaml:"puzzles"`
	Definitions map[string]string `json:"definitions" yaml:"definitions"`
}

// Load reads puzzles and definitions up to maxDate concurrently. A zero
// maxDate loads everything.
func Load(ctx context.Context, s store.Store, maxDate time.Time) (View, error) {
	f := puzzle.Filter{}
	if !maxDate.IsZero() {
		f = puzzle.Until(maxDate)
	}

	var v View
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ps, err := s.Puzzles(gctx, f)
		v.Puzzles = ps
		return err
	})
	g.Go(func() error {
		defs, err := s.Definitions(gctx, f)
		v.Definitions = defs
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}
	if v.Puzzles == nil {
		v.Puzzles = []puzzle.Puzzle{}
	}
	if v.Definitions == nil {
		v.Definitions = map[string]string{}
	}
	return v, nil
}

// Published loads the view a visitor may see at now.
func Published(ctx context.Context, s store.Store, now time.Time) (View, error) {
	return Load(ctx, s, puzzle.PublishedCutoff(now))
}
