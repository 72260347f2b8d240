package opnsense

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-ddns/internal/dns"
)

func init() {
	dns.Register("opnsense", func(log logr.Logger, settings map[string]string) (dns.Directory, error) {
		return New(log, settings)
	})
}

// Provider implements dns.Directory for OPNsense Unbound host overrides.
type Provider struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
	log       logr.Logger
}

// New creates an OPNsense DNS provider from the given settings map.
// Required settings: base_url, api_key, api_secret.
// Optional settings: skip_tls_verify (default false).
func New(log logr.Logger, settings map[string]string) (*Provider, error) {
	baseURL := settings["base_url"]
	if baseURL == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'base_url'")
	}
	apiKey := settings["api_key"]
	if apiKey == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_key'")
	}
	apiSecret := settings["api_secret"]
	if apiSecret == "" {
		return nil, fmt.Errorf("opnsense: missing required setting 'api_secret'")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if v := settings["skip_tls_verify"]; v == "true" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Provider{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Transport: transport},
		log:       log,
	}, nil
}

// doRequest builds and executes an HTTP request against the OPNsense API.
func (p *Provider) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("opnsense: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := strings.TrimRight(p.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("opnsense: build request: %w", err)
	}

	req.SetBasicAuth(p.apiKey, p.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opnsense: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// reconfigure tells OPNsense to apply DNS changes.
func (p *Provider) reconfigure(ctx context.Context) error {
	resp, err := p.doRequest(ctx, http.MethodPost, "unbound/service/reconfigure", struct{}{})
	if err != nil {
		return fmt.Errorf("opnsense: reconfigure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("opnsense: reconfigure returned status %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("opnsense: decode reconfigure response: %w", err)
	}
	p.log.V(1).Info("reconfigure completed", "status", result.Status)
	return nil
}

// searchResponse is the shape returned by searchHostOverride.
type searchResponse struct {
	Rows []hostRow `json:"rows"`
}

// hostRow represents a single host override row from the search response.
type hostRow struct {
	UUID        string `json:"uuid"`
	Enabled     string `json:"enabled"`
	Hostname    string `json:"hostname"`
	Domain      string `json:"domain"`
	RR          string `json:"rr"`
	Server      string `json:"server"`
	Description string `json:"description"`
}

func (p *Provider) search(ctx context.Context) ([]hostRow, error) {
	resp, err := p.doRequest(ctx, http.MethodGet, "unbound/settings/searchHostOverride", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opnsense: searchHostOverride returned status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("opnsense: decode search response: %w", err)
	}
	return sr.Rows, nil
}

// ResolveZone checks that the API is reachable with the configured credentials.
// Unbound has no zone objects, so the zone name is its own handle.
func (p *Provider) ResolveZone(ctx context.Context, name string) (dns.Zone, error) {
	rows, err := p.search(ctx)
	if err != nil {
		return dns.Zone{}, err
	}
	p.log.V(1).Info("host overrides visible", "count", len(rows))
	return dns.Zone{ID: name, Name: name}, nil
}

// FindRecord searches for a host override matching hostname and record type.
func (p *Provider) FindRecord(ctx context.Context, zone dns.Zone, name, recordType string) (dns.Record, error) {
	rows, err := p.search(ctx)
	if err != nil {
		return dns.Record{}, err
	}

	host, domain := dns.SplitHostname(name, zone.Name)
	for _, row := range rows {
		if strings.EqualFold(row.Hostname, host) &&
			strings.EqualFold(row.Domain, domain) &&
			strings.EqualFold(row.RR, recordType) {
			return dns.Record{
				ID:      row.UUID,
				Name:    name,
				Type:    row.RR,
				Content: row.Server,
				Meta: map[string]string{
					"enabled":     row.Enabled,
					"description": row.Description,
				},
			}, nil
		}
	}
	return dns.Record{}, fmt.Errorf("opnsense: %s/%s: %w", name, recordType, dns.ErrRecordNotFound)
}

// buildHostBody creates the JSON body for setHostOverride, carrying over the
// fields FindRecord read so only the server address changes.
func buildHostBody(zone dns.Zone, record dns.Record, content string) map[string]any {
	host, domain := dns.SplitHostname(record.Name, zone.Name)
	enabled := record.Meta["enabled"]
	if enabled == "" {
		enabled = "1"
	}
	return map[string]any{
		"host": map[string]string{
			"enabled":     enabled,
			"hostname":    host,
			"domain":      domain,
			"rr":          record.Type,
			"server":      content,
			"description": record.Meta["description"],
			"mxprio":      "",
			"mx":          "",
		},
	}
}

// UpdateRecord rewrites the server address of an existing host override and applies it.
func (p *Provider) UpdateRecord(ctx context.Context, zone dns.Zone, record dns.Record, content string) error {
	p.log.Info("updating record", "hostname", record.Name, "type", record.Type, "value", content)

	body := buildHostBody(zone, record, content)
	resp, err := p.doRequest(ctx, http.MethodPost, fmt.Sprintf("unbound/settings/setHostOverride/%s", record.ID), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("opnsense: setHostOverride returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("opnsense: decode setHostOverride response: %w", err)
	}
	if result.Result != "saved" {
		return fmt.Errorf("opnsense: setHostOverride unexpected result: %s", result.Result)
	}

	p.log.Info("record updated", "uuid", record.ID)
	return p.reconfigure(ctx)
}
