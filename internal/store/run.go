package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Clock hands out verdict sequence numbers.
type Clock interface {
	Next() int64
}

// IDGenerator hands out run IDs.
type IDGenerator interface {
	Generate() string
}

// LogicalClock is a monotonic logical clock starting at 0. The first call
// to Next returns 1.
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
type LogicalClock struct {
	seq atomic.Int64
}

// Next returns the next sequence number.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so later runs
// sort after earlier ones.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Run is one checker run. Verdicts recorded through it share its ID and
// are numbered by its clock.
type Run struct {
	ID    string
	Label string

	store *Store
	clock Clock
}

// RunOption configures BeginRun.
type RunOption func(*runConfig)

type runConfig struct {
	clock Clock
	ids   IDGenerator
}

// WithClock numbers the run's verdicts with c instead of a fresh
// LogicalClock.
func WithClock(c Clock) RunOption {
	return func(cfg *runConfig) { cfg.clock = c }
}

// WithIDGenerator draws the run ID from g instead of UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RunOption {
	return func(cfg *runConfig) { cfg.ids = g }
}

// BeginRun registers a new run.
func (s *Store) BeginRun(ctx context.Context, label string, opts ...RunOption) (*Run, error) {
	cfg := runConfig{clock: &LogicalClock{}, ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := cfg.ids.Generate()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO runs (id, label) VALUES (?, ?)`, id, label); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	return &Run{ID: id, Label: label, store: s, clock: cfg.clock}, nil
}
