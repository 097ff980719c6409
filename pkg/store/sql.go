package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/haziq21/letter-boxed-solver/pkg/db"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Layout selects the relational shape used by SQLStore.
type Layout string

const (
	// LayoutNormalized keeps solutions in a junction table with an explicit order column.
	LayoutNormalized Layout = "normalized"
	// LayoutFlat keeps each solution as one comma-joined column. Legacy.
	LayoutFlat Layout = "flat"
)

// SQLStore is the relational backend over SQLite.
type SQLStore struct {
	db     *sql.DB
	layout Layout
	logger *zap.Logger
	owned  bool
}

// NewSQLStore wraps an already migrated connection. The caller keeps ownership of conn.
func NewSQLStore(conn *sql.DB, layout Layout, logger *zap.Logger) *SQLStore {
	if layout == "" {
		layout = LayoutNormalized
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{db: conn, layout: layout, logger: logger}
}

// OpenSQLStore opens and migrates the database described by opts. Close releases it.
func OpenSQLStore(ctx context.Context, opts SQLiteOptions, logger *zap.Logger) (*SQLStore, error) {
	layout := Layout(opts.Layout)
	switch layout {
	case "", LayoutNormalized, LayoutFlat:
	default:
		return nil, fmt.Errorf("unknown sqlite layout: %s", opts.Layout)
	}
	path := opts.Path
	if path == "" {
		path = "puzzles.db"
	}
	conn, err := db.Open(ctx, opts.Driver, path)
	if err != nil {
		return nil, unavailable("sqlite open", err)
	}
	s := NewSQLStore(conn, layout, logger)
	s.owned = true
	s.logger.Debug("sqlite store opened", zap.String("path", path), zap.String("layout", string(s.layout)))
	return s, nil
}

// DB exposes the underlying connection.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Upsert runs the puzzle merge and the dictionary merge concurrently, each in
// its own transaction. Either may fail without affecting the other; the first
// error is returned and a retry converges.
func (s *SQLStore) Upsert(ctx context.Context, u puzzle.Update) error {
	u, err := u.Normalize()
	if err != nil {
		return err
	}
	date := puzzle.FormatDate(u.Date)

	var g errgroup.Group
	g.Go(func() error {
		err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			if s.layout == LayoutFlat {
				return db.ReplaceFlatPuzzle(ctx, tx, date, u.Sides, u.Solutions)
			}
			return db.ReplacePuzzle(ctx, tx, date, u.Sides, u.Solutions)
		})
		return classifySQL("upsert puzzle", err)
	})
	g.Go(func() error {
		if len(u.Definitions) == 0 {
			return nil
		}
		err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			return db.UpsertDefinitions(ctx, tx, u.Definitions)
		})
		return classifySQL("upsert definitions", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Debug("puzzle upserted",
		zap.String("date", date),
		zap.Int("solutions", len(u.Solutions)),
		zap.Int("definitions", len(u.Definitions)))
	return nil
}

// Puzzles implements Store.
func (s *SQLStore) Puzzles(ctx context.Context, f puzzle.Filter) ([]puzzle.Puzzle, error) {
	var (
		ps  []puzzle.Puzzle
		err error
	)
	if s.layout == LayoutFlat {
		ps, err = db.LoadFlatPuzzles(ctx, s.db, maxDateString(f))
	} else {
		ps, err = db.LoadPuzzles(ctx, s.db, maxDateString(f))
	}
	if err != nil {
		return nil, classifySQL("load puzzles", err)
	}
	return ps, nil
}

// Definitions implements Store.
func (s *SQLStore) Definitions(ctx context.Context, f puzzle.Filter) (map[string]string, error) {
	var (
		defs map[string]string
		err  error
	)
	if s.layout == LayoutFlat {
		defs, err = db.LoadFlatDefinitions(ctx, s.db, maxDateString(f))
	} else {
		defs, err = db.LoadDefinitions(ctx, s.db, maxDateString(f))
	}
	if err != nil {
		return nil, classifySQL("load definitions", err)
	}
	return defs, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the connection when the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// classifySQL marks connection and lock failures as unavailable; other errors
// (constraints, bad data) pass through wrapped with op.
func classifySQL(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTransportErr(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isTransportErr matches on the error text so it works for both sqlite drivers.
func isTransportErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "sqlite_busy") ||
		strings.Contains(s, "unable to open database") ||
		strings.Contains(s, "sql: database is closed")
}
