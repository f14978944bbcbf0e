// Package seed populates the transaction store from the remote feed and
// tracks the readiness of the resulting data set.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"txdash/internal/core"
	applog "txdash/internal/log"
	"txdash/internal/notify"
	"txdash/internal/storage"
)

// Options tune a Seeder.
type Options struct {
	// Timeout bounds a single fetch-decode-load attempt.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
	// Backoff overrides the retry policy; used by tests.
	Backoff func() backoff.BackOff
	Notifier notify.Notifier
	Logger   *applog.Logger
}

// Seeder loads the store once from a Source.
type Seeder struct {
	store    storage.Store
	source   Source
	opts     Options
	logger   *applog.Logger
	sl       *applog.StructuredLogger
	notifier notify.Notifier

	mu     sync.RWMutex
	status core.DatasetStatus
}

// New creates a seeder in the pending state.
func New(store storage.Store, source Source, opts Options) *Seeder {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff == nil {
		opts.Backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 15 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentSeed)
	}
	logger = logger.WithComponent(applog.ComponentSeed)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Multi{}
	}

	return &Seeder{
		store:    store,
		source:   source,
		opts:     opts,
		logger:   logger,
		sl:       applog.NewStructuredLogger(logger),
		notifier: notifier,
		status: core.DatasetStatus{
			State:     core.StatePending,
			Source:    source.String(),
			UpdatedAt: time.Now().UTC(),
		},
	}
}

// Status returns the current dataset status.
func (s *Seeder) Status() core.DatasetStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Ready reports whether the store holds a successfully seeded data set.
func (s *Seeder) Ready() bool {
	return s.Status().State == core.StateReady
}

// Run fetches, decodes and loads the feed. A failure is logged and leaves
// the store empty; the caller decides whether it is fatal.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	attempt := 0

	operation := func() (int, error) {
		attempt++
		s.setStatus(ctx, core.DatasetStatus{State: core.StateSeeding, Attempt: attempt})

		n, err := s.once(ctx)
		if err == nil {
			return n, nil
		}
		if errors.Is(err, ErrMalformedFeed) || ctx.Err() != nil {
			return 0, backoff.Permanent(err)
		}
		s.logger.WarnContext(ctx, "Seed attempt failed",
			applog.FieldAttempt, attempt,
			applog.FieldError, err)
		return 0, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.opts.Backoff(), uint64(s.opts.MaxRetries)), ctx)
	n, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		s.sl.LogError(ctx, "Seeding failed, serving an empty dataset", err,
			applog.ComponentSeed, applog.OpSeed,
			applog.NewFields().WithSeed(s.source.String(), 0, attempt))
		s.clear(ctx)
		s.setStatus(ctx, core.DatasetStatus{State: core.StateFailed, Attempt: attempt, Error: err.Error()})
		return fmt.Errorf("seed from %s: %w", s.source, err)
	}

	s.sl.LogSeedCompleted(ctx, s.source.String(), n, attempt, time.Since(start).Milliseconds())
	s.setStatus(ctx, core.DatasetStatus{State: core.StateReady, Records: n, Attempt: attempt})
	return nil
}

func (s *Seeder) once(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	body, err := s.source.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	txs, err := Decode(body)
	if err != nil {
		return 0, err
	}

	if err := s.store.Load(ctx, txs); err != nil {
		return 0, fmt.Errorf("load store: %w", err)
	}
	return len(txs), nil
}

// clear drops rows left by an earlier successful seed so a failed data set
// is served empty on every backend.
func (s *Seeder) clear(ctx context.Context) {
	if err := s.store.Load(context.WithoutCancel(ctx), nil); err != nil {
		s.logger.WarnContext(ctx, "Failed to clear store after seed failure",
			applog.FieldError, err)
	}
}

func (s *Seeder) setStatus(ctx context.Context, st core.DatasetStatus) {
	st.Source = s.source.String()
	st.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	// Notifications outlive a cancelled seed context so subscribers see the final state.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.notifier.Notify(nctx, st); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish dataset status",
			applog.FieldState, st.State,
			applog.FieldError, err)
	}
}
