package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JSONClient abstracts the minimal surface we need from a Redis server with
// the RedisJSON module. GoRedisClient implements it over go-redis.
type JSONClient interface {
	// JSONSet sets path in key to the JSON value. With onlyIfAbsent it is
	// JSON.SET ... NX and reports false when nothing was written.
	JSONSet(ctx context.Context, key, path, value string, onlyIfAbsent bool) (bool, error)
	// JSONGet returns the whole document at key, or nil when key does not exist.
	JSONGet(ctx context.Context, key string) ([]byte, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HMGet returns only the fields that exist.
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Default keys of the cache backend.
const (
	DefaultPuzzlesKey    = "puzzles"
	DefaultDictionaryKey = "dictionary"
)

// cacheEntry is the per-date document stored in the puzzles container.
type cacheEntry struct {
	Sides     []string   `json:"sides"`
	Solutions [][]string `json:"solutions"`
}

// CacheStore keeps every puzzle in one RedisJSON container mapping
// YYYY-MM-DD to {sides, solutions}, and the dictionary in a Redis hash.
//
// Reads fetch and decode the whole container, so cost grows with the full
// history. That is acceptable for a few years of daily puzzles; WarnBytes
// makes the growth visible in logs.
type CacheStore struct {
	client        JSONClient
	puzzlesKey    string
	dictionaryKey string
	warnBytes     int
	logger        *zap.Logger
}

// NewCacheStore returns a cache backend over client.
func NewCacheStore(client JSONClient, opts RedisOptions, logger *zap.Logger) *CacheStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CacheStore{
		client:        client,
		puzzlesKey:    opts.PuzzlesKey,
		dictionaryKey: opts.DictionaryKey,
		warnBytes:     opts.WarnBytes,
		logger:        logger,
	}
	if c.puzzlesKey == "" {
		c.puzzlesKey = DefaultPuzzlesKey
	}
	if c.dictionaryKey == "" {
		c.dictionaryKey = DefaultDictionaryKey
	}
	return c
}

// datePath addresses one date inside the container. Dates are always
// YYYY-MM-DD so no quoting is needed.
func datePath(date time.Time) string {
	return fmt.Sprintf(`$["%s"]`, puzzle.FormatDate(date))
}

// SetPuzzle creates the container on first use, then replaces the entry for date.
func (c *CacheStore) SetPuzzle(ctx context.Context, date time.Time, p puzzle.Puzzle) error {
	created, err := c.client.JSONSet(ctx, c.puzzlesKey, "$", "{}", true)
	if err != nil {
		return classifyRedis("init puzzles container", err)
	}
	if created {
		c.logger.Info("created puzzles container", zap.String("key", c.puzzlesKey))
	}
	doc, err := json.Marshal(cacheEntry{Sides: p.Sides, Solutions: p.Solutions})
	if err != nil {
		return fmt.Errorf("encode puzzle: %w", err)
	}
	if _, err := c.client.JSONSet(ctx, c.puzzlesKey, datePath(date), string(doc), false); err != nil {
		return classifyRedis("set puzzle", err)
	}
	return nil
}

// AllPuzzles returns every stored puzzle, newest first.
func (c *CacheStore) AllPuzzles(ctx context.Context) ([]puzzle.Puzzle, error) {
	raw, err := c.client.JSONGet(ctx, c.puzzlesKey)
	if err != nil {
		return nil, classifyRedis("get puzzles", err)
	}
	if c.warnBytes > 0 && len(raw) > c.warnBytes {
		c.logger.Warn("puzzles container exceeds size threshold; every read transfers the full history",
			zap.Int("bytes", len(raw)), zap.Int("threshold", c.warnBytes))
	} else {
		c.logger.Debug("read puzzles container", zap.Int("bytes", len(raw)))
	}
	if len(raw) == 0 {
		return []puzzle.Puzzle{}, nil
	}
	var container map[string]cacheEntry
	if err := json.Unmarshal(raw, &container); err != nil {
		return nil, fmt.Errorf("decode puzzles container: %w", err)
	}
	out := make([]puzzle.Puzzle, 0, len(container))
	for date, e := range container {
		d, err := puzzle.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("stored date: %w", err)
		}
		sols := e.Solutions
		if sols == nil {
			sols = [][]string{}
		}
		out = append(out, puzzle.Puzzle{Date: d, Sides: e.Sides, Solutions: sols})
	}
	puzzle.SortNewestFirst(out)
	return out, nil
}

// Upsert writes the puzzle entry and the dictionary hash concurrently.
func (c *CacheStore) Upsert(ctx context.Context, u puzzle.Update) error {
	u, err := u.Normalize()
	if err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error { return c.SetPuzzle(ctx, u.Date, u.Puzzle) })
	g.Go(func() error {
		fields := make(map[string]string, len(u.Definitions))
		for w, d := range u.Definitions {
			if d != "" {
				fields[w] = d
			}
		}
		if len(fields) == 0 {
			return nil
		}
		return classifyRedis("set definitions", c.client.HSet(ctx, c.dictionaryKey, fields))
	})
	return g.Wait()
}

// Puzzles implements Store on top of AllPuzzles.
func (c *CacheStore) Puzzles(ctx context.Context, f puzzle.Filter) ([]puzzle.Puzzle, error) {
	all, err := c.AllPuzzles(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Bounded() {
		return all, nil
	}
	out := all[:0]
	for _, p := range all {
		if f.Includes(p.Date) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Definitions implements Store.
func (c *CacheStore) Definitions(ctx context.Context, f puzzle.Filter) (map[string]string, error) {
	if !f.Bounded() {
		defs, err := c.client.HGetAll(ctx, c.dictionaryKey)
		if err != nil {
			return nil, classifyRedis("get definitions", err)
		}
		return defs, nil
	}
	ps, err := c.Puzzles(ctx, f)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var words []string
	for _, p := range ps {
		for _, w := range p.Words() {
			if _, ok := seen[w]; !ok {
				seen[w] = struct{}{}
				words = append(words, w)
			}
		}
	}
	if len(words) == 0 {
		return map[string]string{}, nil
	}
	defs, err := c.client.HMGet(ctx, c.dictionaryKey, words...)
	if err != nil {
		return nil, classifyRedis("get definitions", err)
	}
	return defs, nil
}

// Ping checks the server is reachable.
func (c *CacheStore) Ping(ctx context.Context) error {
	return classifyRedis("ping", c.client.Ping(ctx))
}

// Close closes the client.
func (c *CacheStore) Close() error { return c.client.Close() }

// classifyRedis treats everything except server error replies as transport failures.
func classifyRedis(op string, err error) error {
	if err == nil {
		return nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return unavailable(op, err)
}

// GoRedisClient is a production Redis client wrapper implementing JSONClient.
// It uses github.com/redis/go-redis/v9 under the hood and issues RedisJSON
// commands through Do.
type GoRedisClient struct{ c *redis.Client }

// NewGoRedisClient connects lazily to opts.Addr.
func NewGoRedisClient(opts RedisOptions) *GoRedisClient {
	addr := opts.Addr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return &GoRedisClient{c: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

// Ping checks connectivity.
func (g *GoRedisClient) Ping(ctx context.Context) error { return g.c.Ping(ctx).Err() }

func (g *GoRedisClient) JSONSet(ctx context.Context, key, path, value string, onlyIfAbsent bool) (bool, error) {
	args := []interface{}{"JSON.SET", key, path, value}
	if onlyIfAbsent {
		args = append(args, "NX")
	}
	err := g.c.Do(ctx, args...).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GoRedisClient) JSONGet(ctx context.Context, key string) ([]byte, error) {
	s, err := g.c.Do(ctx, "JSON.GET", key).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func (g *GoRedisClient) HSet(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	return g.c.HSet(ctx, key, values).Err()
}

func (g *GoRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.c.HGetAll(ctx, key).Result()
}

func (g *GoRedisClient) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	vals, err := g.c.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[fields[i]] = s
		}
	}
	return out, nil
}

func (g *GoRedisClient) Close() error { return g.c.Close() }
