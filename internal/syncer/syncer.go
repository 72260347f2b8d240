// Package syncer pushes detected address changes to every configured domain.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/metrics"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/shutdown"
)

// ErrUpdate marks a record update rejected by the provider.
var ErrUpdate = errors.New("updating record")

// Options is the static part of the configuration the syncer acts on.
type Options struct {
	Zone    string
	Domains []string
	IPv4    bool // A records enabled
}

// Syncer owns the DNS directory and the receive side of the change channel.
type Syncer struct {
	dir      dns.Directory
	zone     dns.Zone
	domains  []string
	ipv4     bool
	log      logr.Logger
	shutdown *shutdown.Coordinator
}

// New resolves the zone once. Failing to resolve it is fatal for startup.
func New(ctx context.Context, dir dns.Directory, opts Options, log logr.Logger, coordinator *shutdown.Coordinator) (*Syncer, error) {
	zone, err := dir.ResolveZone(ctx, opts.Zone)
	if err != nil {
		return nil, fmt.Errorf("resolving zone %q: %w", opts.Zone, err)
	}
	log.Info("resolved zone", "zone", zone.Name, "id", zone.ID)

	return &Syncer{
		dir:      dir,
		zone:     zone,
		domains:  opts.Domains,
		ipv4:     opts.IPv4,
		log:      log,
		shutdown: coordinator,
	}, nil
}

// Zone returns the zone resolved at construction.
func (s *Syncer) Zone() dns.Zone {
	return s.zone
}

// Run consumes change events one at a time until ctx is done or the channel is
// closed. An update failure is reported to the shutdown coordinator and stops Run.
func (s *Syncer) Run(ctx context.Context, events <-chan netip.Addr) {
	for {
		s.log.V(1).Info("waiting for address changes")
		select {
		case <-ctx.Done():
			return
		case addr, ok := <-events:
			if !ok {
				s.log.Info("change channel closed, syncer stopped")
				return
			}
			if !s.ipv4 {
				s.log.V(1).Info("A records disabled, ignoring change", "ipv4", addr)
				continue
			}
			if err := s.Sync(ctx, addr); err != nil {
				if ctx.Err() == nil {
					s.shutdown.Fail(err)
				}
				return
			}
		}
	}
}

// Sync points the A record of every domain, in configuration order, at addr.
// A domain without an A record is skipped; the first failed update aborts the batch.
func (s *Syncer) Sync(ctx context.Context, addr netip.Addr) error {
	for _, domain := range s.domains {
		record, err := s.dir.FindRecord(ctx, s.zone, domain, dns.TypeA)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordUpdates.WithLabelValues(metrics.ResultNotFound).Inc()
			s.log.Info("cannot get A record, skipping domain", "domain", domain, "reason", err.Error())
			continue
		}

		s.log.V(1).Info("updating domain", "domain", domain, "record", record.ID, "from", record.Content, "to", addr)
		if err := s.dir.UpdateRecord(ctx, s.zone, record, addr.String()); err != nil {
			metrics.RecordUpdates.WithLabelValues(metrics.ResultError).Inc()
			return fmt.Errorf("%w %s: %w", ErrUpdate, domain, err)
		}
		metrics.RecordUpdates.WithLabelValues(metrics.ResultSuccess).Inc()
		s.log.Info("updated domain", "domain", domain, "ipv4", addr)
	}
	return nil
}
