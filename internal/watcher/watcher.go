// Package watcher polls the public IPv4 address and emits an event whenever it changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/cache"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/shutdown"
)

// ErrFetch marks a failed or unparseable address lookup.
var ErrFetch = errors.New("fetching public address")

// Watcher owns the send side of the change channel.
type Watcher struct {
	fetcher  Fetcher
	cache    *cache.ChangeCache
	interval time.Duration
	events   chan netip.Addr
	log      logr.Logger
	shutdown *shutdown.Coordinator

	lastPoll atomic.Int64 // unix nanos of the last successful poll
}

// New returns a watcher and the receive side of its change channel. The channel
// holds a single event, so the watcher never runs more than one change ahead of
// the consumer.
func New(fetcher Fetcher, c *cache.ChangeCache, interval time.Duration, log logr.Logger, coordinator *shutdown.Coordinator) (*Watcher, <-chan netip.Addr) {
	events := make(chan netip.Addr, 1)
	return &Watcher{
		fetcher:  fetcher,
		cache:    c,
		interval: interval,
		events:   events,
		log:      log,
		shutdown: coordinator,
	}, events
}

// Run polls immediately and then every interval, measured from the end of the
// previous poll, until ctx is done or a poll fails. A failure is reported to the
// shutdown coordinator. Run closes the change channel on return and must be called once.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.log.Info("watching public address", "interval", w.interval, "current", w.cache.Current())
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if err := w.Poll(ctx); err != nil {
			if ctx.Err() == nil {
				w.shutdown.Fail(err)
			}
			cancel()
		}
	}, w.interval)
	w.log.Info("watcher stopped")
}

// Poll performs a single fetch, records it in the cache and emits an event on change.
func (w *Watcher) Poll(ctx context.Context) error {
	addr, err := w.fetcher.Fetch(ctx)
	if err != nil {
		metrics.Polls.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	changed, err := w.cache.Put(ctx, addr)
	if err != nil {
		metrics.Polls.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.Polls.WithLabelValues(metrics.ResultSuccess).Inc()
	w.lastPoll.Store(time.Now().UnixNano())

	if !changed {
		w.log.V(1).Info("no address change", "ipv4", addr)
		return nil
	}

	w.log.Info("address changed", "ipv4", addr)
	metrics.AddressChanges.Inc()
	metrics.LastChange.SetToCurrentTime()

	select {
	case w.events <- addr:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check is a healthz checker that fails when no poll succeeded within three intervals.
func (w *Watcher) Check(_ *http.Request) error {
	last := w.lastPoll.Load()
	if last == 0 {
		return errors.New("no successful poll yet")
	}
	if age := time.Since(time.Unix(0, last)); age > 3*w.interval {
		return fmt.Errorf("last successful poll was %s ago", age.Round(time.Second))
	}
	return nil
}
