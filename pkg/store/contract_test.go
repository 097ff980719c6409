package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/haziq21/letter-boxed-solver/pkg/db"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) Store

func backends() map[string]backendFactory {
	sqlite := func(layout Layout, driver string) backendFactory {
		return func(t *testing.T) Store {
			s, err := OpenSQLStore(context.Background(), SQLiteOptions{Path: ":memory:", Driver: driver, Layout: string(layout)}, nil)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}
	}
	return map[string]backendFactory{
		"memory":            func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite-normalized": sqlite(LayoutNormalized, db.DriverCgo),
		"sqlite-flat":       sqlite(LayoutFlat, db.DriverCgo),
		"sqlite-pure":       sqlite(LayoutNormalized, db.DriverPure),
		"cache": func(t *testing.T) Store {
			return NewCacheStore(newFakeJSONClient(), RedisOptions{}, nil)
		},
	}
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := puzzle.ParseDate(s)
	require.NoError(t, err)
	return d
}

func update(t *testing.T, d string, sides []string, sols [][]string, defs map[string]string) puzzle.Update {
	return puzzle.Update{
		Puzzle:      puzzle.Puzzle{Date: date(t, d), Sides: sides, Solutions: sols},
		Definitions: defs,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestConcreteScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-01",
			[]string{"abc", "def", "ghi"},
			[][]string{{"bad", "dig"}},
			map[string]string{"bad": "not good", "dig": "to excavate"})))

		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		want := []puzzle.Puzzle{{
			Date:      date(t, "2024-05-01"),
			Sides:     []string{"abc", "def", "ghi"},
			Solutions: [][]string{{"bad", "dig"}},
		}}
		if diff := cmp.Diff(want, ps); diff != "" {
			t.Fatalf("puzzles mismatch (-want +got):\n%s", diff)
		}

		defs, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"bad": "not good", "dig": "to excavate"}, defs)
	})
}

func TestUpsertIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		u := update(t, "2024-05-01", []string{"abc", "def"}, [][]string{{"bad", "dig"}, {"fed", "dab"}}, map[string]string{"bad": "not good"})

		require.NoError(t, s.Upsert(ctx, u))
		once, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		onceDefs, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)

		require.NoError(t, s.Upsert(ctx, u))
		twice, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		twiceDefs, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)

		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("second upsert changed state (-once +twice):\n%s", diff)
		}
		assert.Equal(t, onceDefs, twiceDefs)
	})
}

func TestUpsertOverwritesNotAppends(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-01", []string{"abc"}, [][]string{{"bad", "dig"}, {"cab", "bed"}}, nil)))
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-01", []string{"xyz"}, [][]string{{"gab", "bid"}}, nil)))

		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, []string{"xyz"}, ps[0].Sides)
		assert.Equal(t, [][]string{{"gab", "bid"}}, ps[0].Solutions)
	})
}

func TestWordOrderPreserved(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		sols := [][]string{{"zebra", "apple", "eel"}, {"yak", "kit"}, {"alpha"}}
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-01", []string{"abc"}, sols, nil)))

		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, sols, ps[0].Solutions)
	})
}

func TestPuzzlesNewestFirstAndFiltered(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, d := range []string{"2024-02-01", "2023-12-31", "2024-03-15", "2024-01-15", "2024-01-01"} {
			require.NoError(t, s.Upsert(ctx, update(t, d, []string{"abc"}, [][]string{{"cab"}}, nil)))
		}

		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-03-15", "2024-02-01", "2024-01-15", "2024-01-01", "2023-12-31"}, dates(ps))

		ps, err = s.Puzzles(ctx, puzzle.Until(date(t, "2024-01-15")))
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-01-15", "2024-01-01", "2023-12-31"}, dates(ps))

		ps, err = s.Puzzles(ctx, puzzle.Until(date(t, "2020-01-01")))
		require.NoError(t, err)
		assert.Empty(t, ps)
	})
}

func TestDefinitionMerge(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, update(t, "2024-01-01", []string{"abc"}, [][]string{{"cat"}},
			map[string]string{"cat": "a feline", "dog": "a canine"})))
		require.NoError(t, s.Upsert(ctx, update(t, "2024-01-02", []string{"abc"}, [][]string{{"cat"}},
			map[string]string{"cat": "a small domesticated carnivore"})))

		defs, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Equal(t, "a small domesticated carnivore", defs["cat"])
		assert.Equal(t, "a canine", defs["dog"], "omitted word keeps its definition")
	})
}

func TestBoundedDictionary(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, update(t, "2024-01-01", []string{"abc"}, [][]string{{"bat"}}, map[string]string{"bat": "a club"})))
		require.NoError(t, s.Upsert(ctx, update(t, "2024-02-01", []string{"abc"}, [][]string{{"cap"}}, map[string]string{"cap": "a hat"})))
		// a word with no definition is simply absent
		require.NoError(t, s.Upsert(ctx, update(t, "2024-01-10", []string{"abc"}, [][]string{{"tab"}}, nil)))

		defs, err := s.Definitions(ctx, puzzle.Until(date(t, "2024-01-15")))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"bat": "a club"}, defs)
	})
}

func TestValidationRejectsWithoutWrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		err := s.Upsert(ctx, update(t, "2024-01-01", nil, [][]string{{"bat"}}, map[string]string{"bat": "a club"}))
		var ve *puzzle.ValidationError
		require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)

		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Empty(t, ps)
		defs, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Empty(t, defs)
	})
}

func TestUpsertStoresNormalizedUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-01",
			[]string{" abc"},
			[][]string{{"Bad", " dig"}},
			map[string]string{"BAD": "not good", "dig": "to excavate"})))
		// the same words in canonical form must land on the same rows
		require.NoError(t, s.Upsert(ctx, update(t, "2024-05-02", []string{"abc"}, [][]string{{"bad"}}, nil)))

		ps, err := s.Puzzles(ctx, puzzle.Until(date(t, "2024-05-01")))
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, []string{"abc"}, ps[0].Sides)
		assert.Equal(t, [][]string{{"bad", "dig"}}, ps[0].Solutions)

		defs, err := s.Definitions(ctx, puzzle.Until(date(t, "2024-05-01")))
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"bad": "not good", "dig": "to excavate"}, defs)

		all, err := s.Definitions(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestConcurrentUpserts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d := fmt.Sprintf("2024-01-%02d", i+1)
				errs <- s.Upsert(ctx, update(t, d, []string{"abc"}, [][]string{{"cab", "bad"}}, map[string]string{"cab": "a taxi"}))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		ps, err := s.Puzzles(ctx, puzzle.Filter{})
		require.NoError(t, err)
		assert.Len(t, ps, n)
	})
}

func dates(ps []puzzle.Puzzle) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = puzzle.FormatDate(p.Date)
	}
	return out
}
