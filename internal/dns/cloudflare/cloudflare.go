// Package cloudflare implements dns.Directory on top of the Cloudflare v4 API.
package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/dns"
)

func init() {
	dns.Register("cloudflare", func(log logr.Logger, settings map[string]string) (dns.Directory, error) {
		return New(log, settings)
	})
}

// Directory implements dns.Directory for Cloudflare.
type Directory struct {
	api *cloudflare.API
	log logr.Logger
}

// New creates a Cloudflare directory from the given settings map.
// Required settings: api_token.
// Optional settings: base_url, rate_limit (requests per second).
func New(log logr.Logger, settings map[string]string) (*Directory, error) {
	token := settings["api_token"]
	if token == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}

	var opts []cloudflare.Option
	if v := settings["base_url"]; v != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimRight(v, "/")))
	}
	if v := settings["rate_limit"]; v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("cloudflare: invalid rate_limit %q", v)
		}
		opts = append(opts, cloudflare.UsingRateLimit(rps))
	}

	api, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: create api client: %w", err)
	}
	return &Directory{api: api, log: log}, nil
}

// ResolveZone lists zones filtered by name and returns the first exact match.
// Several zones with the same name are not an error.
func (d *Directory) ResolveZone(ctx context.Context, name string) (dns.Zone, error) {
	zones, err := d.api.ListZones(ctx, name)
	if err != nil {
		return dns.Zone{}, fmt.Errorf("cloudflare: list zones %q: %w", name, err)
	}
	for _, z := range zones {
		if dns.SameName(z.Name, name) {
			d.log.V(1).Info("resolved zone", "zone", z.Name, "id", z.ID, "candidates", len(zones))
			return dns.Zone{ID: z.ID, Name: z.Name}, nil
		}
	}
	return dns.Zone{}, fmt.Errorf("cloudflare: %q: %w", name, dns.ErrZoneNotFound)
}

// FindRecord lists the records for name and returns the first one of recordType.
func (d *Directory) FindRecord(ctx context.Context, zone dns.Zone, name, recordType string) (dns.Record, error) {
	records, _, err := d.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zone.ID), cloudflare.ListDNSRecordsParams{
		Name: name,
	})
	if err != nil {
		return dns.Record{}, fmt.Errorf("cloudflare: list records for %s: %w", name, err)
	}
	d.log.V(1).Info("listed records", "name", name, "count", len(records))

	for _, r := range records {
		if strings.EqualFold(r.Type, recordType) {
			return dns.Record{ID: r.ID, Name: r.Name, Type: r.Type, Content: r.Content}, nil
		}
	}
	return dns.Record{}, fmt.Errorf("cloudflare: %s/%s: %w", name, recordType, dns.ErrRecordNotFound)
}

// contentPatch is the whole PATCH body. UpdateDNSRecordParams always serialises
// tags and settings, which would clear them on the record.
type contentPatch struct {
	Content string `json:"content"`
}

// UpdateRecord patches the record content. Every other attribute is left out of the
// request so Cloudflare keeps its current value.
func (d *Directory) UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, content string) error {
	d.log.Info("updating record", "name", record.Name, "id", record.ID, "type", record.Type, "content", content)

	endpoint := fmt.Sprintf("/zones/%s/dns_records/%s", zone.ID, record.ID)
	if _, err := d.api.Raw(ctx, http.MethodPatch, endpoint, contentPatch{Content: content}, nil); err != nil {
		return fmt.Errorf("cloudflare: update record %s (%s): %w", record.Name, record.ID, err)
	}
	return nil
}
