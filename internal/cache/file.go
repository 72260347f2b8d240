package cache

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// document is the on-disk shape of the cache record.
type document struct {
	IPv4 string `yaml:"ipv4"`
}

// FileStore keeps the cache record in a YAML file that is rewritten wholesale.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (netip.Addr, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("reading cache file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return netip.Addr{}, fmt.Errorf("parsing cache file: %w", err)
	}
	addr, err := netip.ParseAddr(doc.IPv4)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing cache file: %w", err)
	}
	return addr, nil
}

// Save replaces the file through a temporary sibling and a rename, so a crash
// leaves either the old record or the new one.
func (s *FileStore) Save(_ context.Context, addr netip.Addr) error {
	data, err := yaml.Marshal(document{IPv4: addr.String()})
	if err != nil {
		return fmt.Errorf("encoding cache file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
