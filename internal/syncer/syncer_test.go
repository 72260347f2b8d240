package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	logrtesting "github.com/go-logr/logr/testing"
	"github.com/google/go-cmp/cmp"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/yk-ddns/internal/shutdown"
)

// mockDirectory records DNS operations for test assertions.
type mockDirectory struct {
	mu        sync.Mutex
	zones     []dns.Zone
	records   map[string][]dns.Record // domain → records
	failFor   map[string]bool         // domains whose update fails
	lookups   []string
	updates   []string // "domain=content"
	zoneCalls int
}

func (m *mockDirectory) ResolveZone(_ context.Context, name string) (dns.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoneCalls++
	for _, z := range m.zones {
		if z.Name == name {
			return z, nil
		}
	}
	return dns.Zone{}, dns.ErrZoneNotFound
}

func (m *mockDirectory) FindRecord(_ context.Context, _ dns.Zone, name, recordType string) (dns.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, name)
	for _, r := range m.records[name] {
		if r.Type == recordType {
			return r, nil
		}
	}
	return dns.Record{}, fmt.Errorf("%s: %w", name, dns.ErrRecordNotFound)
}

func (m *mockDirectory) UpdateRecord(_ context.Context, _ dns.Zone, record dns.Record, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[record.Name] {
		return errors.New("provider rejected update")
	}
	m.updates = append(m.updates, record.Name+"="+content)
	return nil
}

func (m *mockDirectory) Updates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.updates...)
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		zones: []dns.Zone{{ID: "z1", Name: "ex.com"}},
		records: map[string][]dns.Record{
			"a.ex.com": {
				{ID: "a-txt", Name: "a.ex.com", Type: "TXT", Content: "v=spf1"},
				{ID: "a-a", Name: "a.ex.com", Type: dns.TypeA, Content: "9.9.9.9"},
			},
			"b.ex.com": {{ID: "b-a", Name: "b.ex.com", Type: dns.TypeA, Content: "9.9.9.9"}},
		},
	}
}

func newSyncer(t *testing.T, dir *mockDirectory, ipv4 bool, coordinator *shutdown.Coordinator) *Syncer {
	t.Helper()
	s, err := New(context.Background(), dir, Options{
		Zone:    "ex.com",
		Domains: []string{"a.ex.com", "b.ex.com"},
		IPv4:    ipv4,
	}, logrtesting.NewTestLogger(t), coordinator)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNew_ZoneNotFound(t *testing.T) {
	dir := newMockDirectory()
	dir.zones = nil

	_, err := New(context.Background(), dir, Options{Zone: "ex.com"}, logr.Discard(), shutdown.New(context.Background(), logr.Discard()))
	if !errors.Is(err, dns.ErrZoneNotFound) {
		t.Fatalf("expected ErrZoneNotFound, got %v", err)
	}
}

func TestNew_ResolvesZoneOnce(t *testing.T) {
	dir := newMockDirectory()
	s := newSyncer(t, dir, true, shutdown.New(context.Background(), logr.Discard()))

	for i := 0; i < 3; i++ {
		if err := s.Sync(context.Background(), netip.MustParseAddr("1.1.1.1")); err != nil {
			t.Fatalf("Sync: %v", err)
		}
	}
	if dir.zoneCalls != 1 {
		t.Errorf("expected zone to be resolved once, got %d calls", dir.zoneCalls)
	}
	if s.Zone().ID != "z1" {
		t.Errorf("expected zone z1, got %q", s.Zone().ID)
	}
}

func TestSync_UpdatesAllDomainsInOrder(t *testing.T) {
	dir := newMockDirectory()
	s := newSyncer(t, dir, true, shutdown.New(context.Background(), logr.Discard()))

	if err := s.Sync(context.Background(), netip.MustParseAddr("1.1.1.1")); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	want := []string{"a.ex.com=1.1.1.1", "b.ex.com=1.1.1.1"}
	if diff := cmp.Diff(want, dir.Updates()); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_MissingRecordIsSkipped(t *testing.T) {
	dir := newMockDirectory()
	dir.records["b.ex.com"] = []dns.Record{{ID: "b-cname", Name: "b.ex.com", Type: "CNAME", Content: "a.ex.com"}}
	s := newSyncer(t, dir, true, shutdown.New(context.Background(), logr.Discard()))

	// Swap the order so the missing domain comes first and the batch must continue past it.
	s.domains = []string{"b.ex.com", "a.ex.com"}
	if err := s.Sync(context.Background(), netip.MustParseAddr("1.1.1.1")); err != nil {
		t.Fatalf("expected missing record to be non-fatal, got %v", err)
	}

	if diff := cmp.Diff([]string{"a.ex.com=1.1.1.1"}, dir.Updates()); diff != "" {
		t.Errorf("updates mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_MissingRecordIsLoggedAsWarning(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	log := funcr.NewJSON(func(obj string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, obj)
	}, funcr.Options{})

	dir := newMockDirectory()
	delete(dir.records, "b.ex.com")
	s, err := New(context.Background(), dir, Options{Zone: "ex.com", Domains: []string{"b.ex.com"}, IPv4: true}, log, shutdown.New(context.Background(), logr.Discard()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Sync(context.Background(), netip.MustParseAddr("1.1.1.1")); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var skipped bool
	for _, l := range lines {
		if strings.Contains(l, `"error":`) {
			t.Errorf("expected no error-level entries, got %s", l)
		}
		if strings.Contains(l, "skipping domain") && strings.Contains(l, `"reason":`) {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("expected a skip entry with a reason, got %v", lines)
	}
}

func TestSync_UpdateFailureAbortsBatch(t *testing.T) {
	dir := newMockDirectory()
	dir.failFor = map[string]bool{"a.ex.com": true}
	s := newSyncer(t, dir, true, shutdown.New(context.Background(), logr.Discard()))

	err := s.Sync(context.Background(), netip.MustParseAddr("1.1.1.1"))
	if !errors.Is(err, ErrUpdate) {
		t.Fatalf("expected ErrUpdate, got %v", err)
	}
	if diff := cmp.Diff([]string{"a.ex.com"}, dir.lookups); diff != "" {
		t.Errorf("expected b.ex.com not to be attempted (-want +got):\n%s", diff)
	}
	if len(dir.Updates()) != 0 {
		t.Errorf("expected no successful updates, got %v", dir.Updates())
	}
}

func TestRun_UpdateFailureShutsDown(t *testing.T) {
	dir := newMockDirectory()
	dir.failFor = map[string]bool{"a.ex.com": true}
	coordinator := shutdown.New(context.Background(), logr.Discard())
	s := newSyncer(t, dir, true, coordinator)

	events := make(chan netip.Addr, 1)
	events <- netip.MustParseAddr("1.1.1.1")

	done := make(chan struct{})
	go func() {
		s.Run(coordinator.Context(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after an update failure")
	}
	if err := coordinator.Wait(); !errors.Is(err, ErrUpdate) {
		t.Fatalf("expected ErrUpdate shutdown cause, got %v", err)
	}
}

func TestRun_IPv4Disabled(t *testing.T) {
	dir := newMockDirectory()
	coordinator := shutdown.New(context.Background(), logr.Discard())
	s := newSyncer(t, dir, false, coordinator)

	events := make(chan netip.Addr)
	done := make(chan struct{})
	go func() {
		s.Run(coordinator.Context(), events)
		close(done)
	}()

	for _, a := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		events <- netip.MustParseAddr(a)
	}
	close(events)
	<-done

	if len(dir.lookups) != 0 || len(dir.Updates()) != 0 {
		t.Errorf("expected zero provider calls, got lookups=%v updates=%v", dir.lookups, dir.Updates())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSyncer(t, newMockDirectory(), true, shutdown.New(ctx, logr.Discard()))

	done := make(chan struct{})
	go func() {
		s.Run(ctx, make(chan netip.Addr))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
