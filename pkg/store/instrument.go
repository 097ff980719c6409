package store

import (
	"context"
	"errors"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/puzzle"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by every instrumented store on a registry.
type Metrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewMetrics registers the store collectors on reg, reusing them if another
// store registered them first.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unboxed_store_operation_duration_seconds",
		Help:    "Latency of store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "op"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unboxed_store_operation_errors_total",
		Help: "Store operation failures by kind (validation, unavailable, other)",
	}, []string{"backend", "op", "kind"})

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if errs, err = register(reg, errs); err != nil {
		return nil, err
	}
	return &Metrics{duration: duration, errors: errs}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

type instrumented struct {
	next    Store
	backend string
	m       *Metrics
}

// Instrument wraps next so each operation records latency and failures.
func Instrument(next Store, m *Metrics, backend string) Store {
	return &instrumented{next: next, backend: backend, m: m}
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	s.m.duration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	kind := "other"
	var ve *puzzle.ValidationError
	switch {
	case errors.As(err, &ve):
		kind = "validation"
	case errors.Is(err, ErrUnavailable):
		kind = "unavailable"
	}
	s.m.errors.WithLabelValues(s.backend, op, kind).Inc()
}

func (s *instrumented) Upsert(ctx context.Context, u puzzle.Update) (err error) {
	defer func(start time.Time) { s.observe("upsert", start, err) }(time.Now())
	return s.next.Upsert(ctx, u)
}

func (s *instrumented) Puzzles(ctx context.Context, f puzzle.Filter) (ps []puzzle.Puzzle, err error) {
	defer func(start time.Time) { s.observe("puzzles", start, err) }(time.Now())
	return s.next.Puzzles(ctx, f)
}

func (s *instrumented) Definitions(ctx context.Context, f puzzle.Filter) (defs map[string]string, err error) {
	defer func(start time.Time) { s.observe("definitions", start, err) }(time.Now())
	return s.next.Definitions(ctx, f)
}

func (s *instrumented) Ping(ctx context.Context) error { return Ping(ctx, s.next) }

func (s *instrumented) Close() error { return s.next.Close() }
