// Package revoker finishes refresh record deletions that failed on the
// request path and periodically purges expired records.
package revoker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/retry"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
)

type Options struct {
	QueueSize     int
	Attempts      int
	Backoff       retry.Backoff
	SweepInterval time.Duration // <= 0 disables the sweep
}

type Revoker struct {
	store   refreshtokens.Repository
	log     logging.Logger
	metrics *metrics.Metrics
	opts    Options
	queue   chan string
	dropped atomic.Uint64
}

func New(store refreshtokens.Repository, log logging.Logger, m *metrics.Metrics, opts Options) *Revoker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Revoker{
		store:   store,
		log:     log.With("component", "revoker"),
		metrics: m,
		opts:    opts,
		queue:   make(chan string, opts.QueueSize),
	}
}

// Schedule queues id for deletion without blocking. It reports false when
// the queue is full.
func (r *Revoker) Schedule(id string) bool {
	select {
	case r.queue <- id:
		return true
	default:
		r.dropped.Add(1)
		r.metrics.Revocation("dropped")
		return false
	}
}

func (r *Revoker) Dropped() uint64 { return r.dropped.Load() }

// Run processes the queue and the sweep until ctx is done. Ids still queued
// at that point are abandoned; their records expire on their own.
func (r *Revoker) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if r.opts.SweepInterval > 0 {
		t := time.NewTicker(r.opts.SweepInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-r.queue:
			r.revoke(ctx, id)
		case <-tick:
			if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}

func (r *Revoker) revoke(ctx context.Context, id string) {
	err := retry.Do(ctx, func() error {
		_, err := r.store.Delete(ctx, id)
		return err
	}, retry.Policy{
		Name:     "refresh_revoke",
		Attempts: r.opts.Attempts,
		Backoff:  r.opts.Backoff,
		OnAttempt: func(i int, err error) {
			r.log.Warn(ctx, "revoke attempt failed", "record_id", id, "attempt", i+1, "error", err)
		},
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error(ctx, "revoke gave up", "record_id", id, "error", err)
		}
		r.metrics.Revocation(metrics.ResultError)
		return
	}
	r.metrics.Revocation(metrics.ResultOK)
}

// Sweep deletes every expired refresh record once.
func (r *Revoker) Sweep(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info(ctx, "expired refresh records removed", "count", n)
	}
	r.metrics.Swept(n)
	return n, nil
}
