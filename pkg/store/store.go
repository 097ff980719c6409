// Package store persists Letter Boxed puzzles and their dictionary.
//
// Every backend implements Store with the same contract:
//   - Upsert is idempotent per date: a repeated date fully replaces the stored
//     sides and solutions, it never appends.
//   - Definitions merge last-write-wins per word; a word omitted from a later
//     update keeps its stored definition.
//   - Puzzles returns dates strictly newest first and preserves word order.
//   - Definitions omits words without a stored definition.
//
// Backends are selected by configuration through Open and passed explicitly to
// callers; there is no process-wide handle.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"go.uber.org/zap"
)

// Store is the persistence boundary shared by every backend.
type Store interface {
	// Upsert merges one day's puzzle and definitions.
	Upsert(ctx context.Context, u puzzle.Update) error
	// Puzzles returns stored puzzles passing f, newest first.
	Puzzles(ctx context.Context, f puzzle.Filter) ([]puzzle.Puzzle, error)
	// Definitions returns word definitions. A bounded filter restricts them to
	// words used by solutions of puzzles passing f.
	Definitions(ctx context.Context, f puzzle.Filter) (map[string]string, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string        `mapstructure:"backend"`
	SQLite  SQLiteOptions `mapstructure:"sqlite"`
	Redis   RedisOptions  `mapstructure:"redis"`
}

// SQLiteOptions configures the relational backend.
type SQLiteOptions struct {
	Path   string `mapstructure:"path"`
	Driver string `mapstructure:"driver"`
	Layout string `mapstructure:"layout"`
}

// RedisOptions configures the cache backend.
type RedisOptions struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	PuzzlesKey    string `mapstructure:"puzzles_key"`
	DictionaryKey string `mapstructure:"dictionary_key"`
	// WarnBytes logs a warning when the puzzles container read exceeds it. 0 disables.
	WarnBytes int `mapstructure:"warn_bytes"`
}

// Open constructs the backend named by opts.Backend.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch opts.Backend {
	case "", BackendSQLite:
		return OpenSQLStore(ctx, opts.SQLite, logger)
	case BackendRedis:
		client := NewGoRedisClient(opts.Redis)
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, unavailable("redis ping", err)
		}
		return NewCacheStore(client, opts.Redis, logger), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.Backend)
	}
}

// Pinger is implemented by stores backed by a remote or on-disk service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that s can serve requests. Stores without a Pinger are always ready.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ErrUnavailable matches, via errors.Is, every error caused by an unreachable
// backend or a transport failure. Such operations are safe to retry.
var ErrUnavailable = errors.New("store unavailable")

// UnavailableError wraps a transport-level failure of operation Op.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) hold.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Op: op, Err: err}
}

func maxDateString(f puzzle.Filter) string {
	if !f.Bounded() {
		return ""
	}
	return puzzle.FormatDate(f.MaxDate)
}
