// Package ingest moves upstream puzzle payloads into a store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"go.uber.org/zap"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Enricher fills in data a payload left out before it is stored.
type Enricher interface {
	Fill(u puzzle.Update) puzzle.Update
}

// Syncer upserts validated puzzle updates into a store.
type Syncer struct {
	Store  store.Store
	Logger *zap.Logger
	// Glossary, when set, supplies definitions missing from a payload.
	Glossary Enricher

	// MaxAttempts bounds retries of an upsert that failed with store.ErrUnavailable.
	MaxAttempts int
	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay time.Duration

	// Workers is the number of concurrent upserts during Backfill.
	Workers int
	// OnProgress is called after each backfilled day with the number done and the total.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewSyncer creates a Syncer with default retry and concurrency settings.
func NewSyncer(s store.Store, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		Store:       s,
		Logger:      logger,
		MaxAttempts: 3,
		RetryDelay:  200 * time.Millisecond,
		Workers:     4,
	}
}

// Sync upserts u. Unavailable-store failures are retried because upserts are
// idempotent; every other error is returned at once.
func (sy *Syncer) Sync(ctx context.Context, u puzzle.Update) error {
	log := sy.logger().With(
		zap.String("run_id", uuid.NewString()),
		zap.String("date", puzzle.FormatDate(u.Date)))

	if sy.Glossary != nil {
		u = sy.Glossary.Fill(u)
	}

	attempts := sy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err = sy.Store.Upsert(ctx, u)
		if err == nil {
			log.Info("puzzle synced",
				zap.Int("solutions", len(u.Solutions)),
				zap.Int("definitions", len(u.Definitions)),
				zap.Int("attempt", attempt),
				zap.Duration("took", time.Since(start)))
			return nil
		}
		if !errors.Is(err, store.ErrUnavailable) || attempt == attempts {
			break
		}
		log.Warn("store unavailable, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sy.RetryDelay * time.Duration(attempt)):
		}
	}
	log.Error("puzzle sync failed", zap.Error(err))
	return fmt.Errorf("sync %s: %w", puzzle.FormatDate(u.Date), err)
}

// SyncReader decodes one upstream payload from r and syncs it. A payload
// failing validation is rejected before any write.
func (sy *Syncer) SyncReader(ctx context.Context, r io.Reader) (puzzle.Update, error) {
	u, err := puzzle.Decode(r)
	if err != nil {
		sy.logger().Warn("rejected upstream payload", zap.Error(err))
		return puzzle.Update{}, err
	}
	return u, sy.Sync(ctx, u)
}

// Backfill syncs many days concurrently through the worker pool. The first
// failure cancels the remaining work. It returns the number of days synced.
func (sy *Syncer) Backfill(ctx context.Context, updates []puzzle.Update) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	workers := sy.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if sy.PoolFactory != nil {
		wp = sy.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	wp.Start(ctx)

	var (
		synced   int64
		firstErr error
		errMu    sync.Mutex
	)
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		cancel()
	}

Loop:
	for _, u := range updates {
		u := u
		job := func(ctx context.Context) error {
			if err := sy.Sync(ctx, u); err != nil {
				fail(err)
				return err
			}
			n := atomic.AddInt64(&synced, 1)
			if sy.OnProgress != nil {
				sy.OnProgress(int(n), len(updates))
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) || err == ErrPoolClosed {
				break Loop
			}
			fail(err)
			break Loop
		}
	}
	wp.Close()

	errMu.Lock()
	defer errMu.Unlock()
	n := int(atomic.LoadInt64(&synced))
	if firstErr != nil {
		return n, firstErr
	}
	if n < len(updates) {
		// Canceled by the caller before every job ran.
		if err := ctx.Err(); err != nil {
			return n, err
		}
	}
	sy.logger().Info("backfill complete", zap.Int("days", n))
	return n, nil
}

func (sy *Syncer) logger() *zap.Logger {
	if sy.Logger == nil {
		return zap.NewNop()
	}
	return sy.Logger
}
