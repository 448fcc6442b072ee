package settings

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

//go:embed defaults.json
var defaultCatalog []byte

// Provider supplies the checkout catalog.
type Provider interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

// FileProvider serves a catalog loaded from a JSON file, or the embedded
// defaults when no path is configured.
type FileProvider struct {
	catalog *Catalog
	source  string
}

func NewFileProvider(path string) (*FileProvider, error) {
	raw := defaultCatalog
	source := "embedded"
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		raw = data
		source = trimmed
	}

	catalog, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("load settings from %s: %w", source, err)
	}
	return &FileProvider{catalog: catalog, source: source}, nil
}

// Parse decodes and validates a catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (p *FileProvider) Catalog(context.Context) (*Catalog, error) {
	if p == nil || p.catalog == nil {
		return nil, errors.New("settings provider not initialized")
	}
	copied := *p.catalog
	return &copied, nil
}

// Source reports where the catalog was loaded from.
func (p *FileProvider) Source() string {
	if p == nil {
		return ""
	}
	return p.source
}

// SessionProvider fetches the catalog once and serves the cached copy for the
// rest of the checkout session. Failed fetches are not cached.
type SessionProvider struct {
	source Provider

	mu     sync.Mutex
	cached *Catalog
}

func NewSessionProvider(source Provider) *SessionProvider {
	return &SessionProvider{source: source}
}

func (p *SessionProvider) Catalog(ctx context.Context) (*Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return p.cached, nil
	}
	if p.source == nil {
		return nil, errors.New("settings source is required")
	}
	catalog, err := p.source.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	p.cached = catalog
	return catalog, nil
}
