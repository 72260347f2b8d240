package dns

import (
	"context"
	"errors"
)

// TypeA is the record type holding an IPv4 address.
const TypeA = "A"

var (
	// ErrZoneNotFound is returned by ResolveZone when no zone carries the requested name.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrRecordNotFound is returned by FindRecord when the name has no record of the requested type.
	ErrRecordNotFound = errors.New("record not found")
)

// Zone is a provider-side zone handle. It is resolved once per run.
type Zone struct {
	ID   string
	Name string
}

// Record is a provider-side record handle, resolved on every sync attempt.
type Record struct {
	ID      string            // provider-assigned identifier
	Name    string            // FQDN, e.g. "app.example.com"
	Type    string            // "A", "AAAA", "CNAME"
	Content string            // current value as reported by the provider
	Meta    map[string]string // provider-specific fields carried back on update
}

// Directory is the capability the syncer needs from a DNS provider.
type Directory interface {
	// ResolveZone returns the first zone whose name equals name.
	ResolveZone(ctx context.Context, name string) (Zone, error)
	// FindRecord returns the first record of recordType for name. Only the type is
	// matched; the current content is ignored.
	FindRecord(ctx context.Context, zone Zone, name, recordType string) (Record, error)
	// UpdateRecord sets the content of record and leaves every other attribute alone.
	UpdateRecord(ctx context.Context, zone Zone, record Record, content string) error
}
