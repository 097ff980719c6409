package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := puzzle.ParseDate(s)
	require.NoError(t, err)
	return d
}

func makeUpdates(t *testing.T, n int) []puzzle.Update {
	out := make([]puzzle.Update, n)
	for i := range out {
		out[i] = puzzle.Update{
			Puzzle: puzzle.Puzzle{
				Date:      day(t, "2024-01-01").AddDate(0, 0, i),
				Sides:     []string{"abc", "def"},
				Solutions: [][]string{{"bad", "dig"}},
			},
			Definitions: map[string]string{"bad": "not good"},
		}
	}
	return out
}

// flakyStore fails the first n upserts with an unavailable error.
type flakyStore struct {
	store.Store
	mu    sync.Mutex
	fails int
	calls int
	err   error
}

func (f *flakyStore) Upsert(ctx context.Context, u puzzle.Update) error {
	f.mu.Lock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return f.err
	}
	f.mu.Unlock()
	return f.Store.Upsert(ctx, u)
}

func TestSyncRetriesUnavailable(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemoryStore(), fails: 2, err: &store.UnavailableError{Op: "upsert", Err: errors.New("connection refused")}}
	sy := NewSyncer(fs, nil)
	sy.RetryDelay = time.Millisecond

	require.NoError(t, sy.Sync(context.Background(), makeUpdates(t, 1)[0]))
	assert.Equal(t, 3, fs.calls)

	ps, err := fs.Puzzles(context.Background(), puzzle.Filter{})
	require.NoError(t, err)
	assert.Len(t, ps, 1)
}

func TestSyncGivesUpAfterMaxAttempts(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemoryStore(), fails: 10, err: &store.UnavailableError{Op: "upsert", Err: errors.New("connection refused")}}
	sy := NewSyncer(fs, nil)
	sy.RetryDelay = time.Millisecond
	sy.MaxAttempts = 2

	err := sy.Sync(context.Background(), makeUpdates(t, 1)[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	assert.Equal(t, 2, fs.calls)
}

func TestSyncDoesNotRetryOtherErrors(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemoryStore(), fails: 1, err: errors.New("constraint failed")}
	sy := NewSyncer(fs, nil)

	require.Error(t, sy.Sync(context.Background(), makeUpdates(t, 1)[0]))
	assert.Equal(t, 1, fs.calls)
}

func TestSyncReaderRejectsInvalidPayload(t *testing.T) {
	s := store.NewMemoryStore()
	sy := NewSyncer(s, nil)

	_, err := sy.SyncReader(context.Background(), strings.NewReader(`{"date":"2024-05-01","sides":[],"solutions":[["bad"]]}`))
	var ve *puzzle.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)

	ps, err := s.Puzzles(context.Background(), puzzle.Filter{})
	require.NoError(t, err)
	assert.Empty(t, ps)

	u, err := sy.SyncReader(context.Background(), strings.NewReader(`{"date":"2024-05-01","sides":["abc","def","ghi"],"solutions":[["bad","dig"]],"definitions":{"bad":"not good"}}`))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"bad", "dig"}}, u.Solutions)
}

func TestBackfill(t *testing.T) {
	s := store.NewMemoryStore()
	sy := NewSyncer(s, nil)
	sy.Workers = 3

	var mu sync.Mutex
	var last int
	sy.OnProgress = func(current, total int) {
		mu.Lock()
		if current > last {
			last = current
		}
		mu.Unlock()
	}

	n, err := sy.Backfill(context.Background(), makeUpdates(t, 20))
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, 20, last)

	ps, err := s.Puzzles(context.Background(), puzzle.Filter{})
	require.NoError(t, err)
	require.Len(t, ps, 20)
	assert.True(t, ps[0].Date.After(ps[19].Date))
}

func TestBackfillContextCancel(t *testing.T) {
	sy := NewSyncer(store.NewMemoryStore(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := sy.Backfill(ctx, makeUpdates(t, 50))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Less(t, n, 50)
}

func TestBackfillStopsOnFailure(t *testing.T) {
	fs := &flakyStore{Store: store.NewMemoryStore(), fails: 1000, err: errors.New("disk full")}
	sy := NewSyncer(fs, nil)
	sy.Workers = 1

	n, err := sy.Backfill(context.Background(), makeUpdates(t, 20))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, n)
}

func TestReadPayloads(t *testing.T) {
	single := `{"date":"2024-05-01","sides":["abc"],"solutions":[["cab"]]}`
	us, err := ReadPayloads(strings.NewReader(single))
	require.NoError(t, err)
	require.Len(t, us, 1)

	archive := fmt.Sprintf("[%s, %s]", single, `{"date":"2024-05-02","sides":["def"],"solutions":[["fed"]],"definitions":{"fed":"given food"}}`)
	us, err = ReadPayloads(strings.NewReader(archive))
	require.NoError(t, err)
	require.Len(t, us, 2)
	assert.Equal(t, "given food", us[1].Definitions["fed"])

	_, err = ReadPayloads(strings.NewReader(`[` + single + `, {"date":"nope"}]`))
	var ve *puzzle.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = ReadPayloads(strings.NewReader(`not json`))
	assert.True(t, errors.As(err, &ve))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"date":"2024-05-01","sides":["abc"],"solutions":[["cab"]]}]`), 0o644))
	us, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, us, 1)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

type staticGlossary map[string]string

func (g staticGlossary) Fill(u puzzle.Update) puzzle.Update {
	defs := map[string]string{}
	for w, d := range u.Definitions {
		defs[w] = d
	}
	for _, w := range u.Words() {
		if _, ok := defs[w]; !ok && g[w] != "" {
			defs[w] = g[w]
		}
	}
	u.Definitions = defs
	return u
}

func TestSyncUsesGlossary(t *testing.T) {
	s := store.NewMemoryStore()
	sy := NewSyncer(s, nil)
	sy.Glossary = staticGlossary{"dig": "to excavate", "bad": "ignored"}

	require.NoError(t, sy.Sync(context.Background(), makeUpdates(t, 1)[0]))

	defs, err := s.Definitions(context.Background(), puzzle.Filter{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bad": "not good", "dig": "to excavate"}, defs)
}
