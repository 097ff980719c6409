package store

import (
	"context"
	"errors"
	"testing"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCacheStoreInitGuardRunsOnce(t *testing.T) {
	fake := newFakeJSONClient()
	c := NewCacheStore(fake, RedisOptions{}, nil)
	ctx := context.Background()

	require.NoError(t, c.SetPuzzle(ctx, date(t, "2024-01-01"), puzzle.Puzzle{Sides: []string{"abc"}, Solutions: [][]string{{"cab"}}}))
	require.NoError(t, c.SetPuzzle(ctx, date(t, "2024-01-02"), puzzle.Puzzle{Sides: []string{"def"}, Solutions: [][]string{{"fed"}}}))

	assert.Equal(t, 1, fake.nxSkipped, "second init must be a no-op")
	ps, err := c.AllPuzzles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-01"}, dates(ps))
}

func TestCacheStoreEmptyContainer(t *testing.T) {
	c := NewCacheStore(newFakeJSONClient(), RedisOptions{}, nil)
	ps, err := c.AllPuzzles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestCacheStoreKeysConfigurable(t *testing.T) {
	fake := newFakeJSONClient()
	c := NewCacheStore(fake, RedisOptions{PuzzlesKey: "lb:puzzles", DictionaryKey: "lb:dict"}, nil)
	require.NoError(t, c.Upsert(context.Background(), update(t, "2024-01-01", []string{"abc"}, [][]string{{"cab"}}, map[string]string{"cab": "a taxi"})))

	_, ok := fake.docs["lb:puzzles"]
	assert.True(t, ok)
	assert.Equal(t, "a taxi", fake.hashes["lb:dict"]["cab"])
}

func TestCacheStoreWarnsOnLargeContainer(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := NewCacheStore(newFakeJSONClient(), RedisOptions{WarnBytes: 10}, zap.New(core))
	ctx := context.Background()
	require.NoError(t, c.Upsert(ctx, update(t, "2024-01-01", []string{"abc", "def"}, [][]string{{"bad", "fed"}}, nil)))

	_, err := c.AllPuzzles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessageSnippet("size threshold").Len())
}

func TestCacheStorePartialMergeFailure(t *testing.T) {
	fake := newFakeJSONClient()
	fake.failHSet = errors.New("connection reset by peer")
	c := NewCacheStore(fake, RedisOptions{}, nil)
	ctx := context.Background()

	err := c.Upsert(ctx, update(t, "2024-01-01", []string{"abc"}, [][]string{{"cab"}}, map[string]string{"cab": "a taxi"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))

	// puzzle merge still landed
	ps, err := c.Puzzles(ctx, puzzle.Filter{})
	require.NoError(t, err)
	assert.Len(t, ps, 1)

	// retry converges
	fake.failHSet = nil
	require.NoError(t, c.Upsert(ctx, update(t, "2024-01-01", []string{"abc"}, [][]string{{"cab"}}, map[string]string{"cab": "a taxi"})))
	defs, err := c.Definitions(ctx, puzzle.Filter{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cab": "a taxi"}, defs)
}

// replyError satisfies redis.Error like the server replies go-redis returns.
type replyError string

func (e replyError) Error() string { return string(e) }
func (replyError) RedisError()     {}

func TestClassifyRedis(t *testing.T) {
	assert.NoError(t, classifyRedis("op", nil))

	transport := classifyRedis("op", errors.New("dial tcp: connection refused"))
	assert.True(t, errors.Is(transport, ErrUnavailable))

	reply := classifyRedis("op", replyError("ERR unknown command 'JSON.SET'"))
	assert.False(t, errors.Is(reply, ErrUnavailable))

	canceled := classifyRedis("op", context.Canceled)
	assert.True(t, errors.Is(canceled, context.Canceled))
	assert.False(t, errors.Is(canceled, ErrUnavailable))
}
