package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrNotFound reports a center with no config file. Callers treat it as
// "run without center-specific settings", not as a failure.
var ErrNotFound = errors.New("center config not found")

// Provider resolves center configuration by id.
type Provider interface {
	Load(ctx context.Context, centerID string) (*Config, error)
}

var centerIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FileProvider reads JSON config files from a directory and keeps validated
// results in a bounded in-memory cache. Entries live until Invalidate is
// called; there is no TTL, matching the once-per-process load the configs
// are written for.
type FileProvider struct {
	dir        string
	schema     *jsonschema.Schema
	maxEntries int

	mu    sync.RWMutex
	cache map[string]*Config
}

// NewFileProvider compiles the config schema and returns a provider rooted
// at dir. maxEntries bounds the cache; zero means 64.
func NewFileProvider(dir string, maxEntries int) (*FileProvider, error) {
	raw, err := json.Marshal(configSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("center-config.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("center-config.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &FileProvider{
		dir:        dir,
		schema:     schema,
		maxEntries: maxEntries,
		cache:      make(map[string]*Config),
	}, nil
}

func (p *FileProvider) Load(ctx context.Context, centerID string) (*Config, error) {
	if !centerIDRe.MatchString(centerID) {
		return nil, fmt.Errorf("invalid center id %q", centerID)
	}

	p.mu.RLock()
	cfg, ok := p.cache[centerID]
	p.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Join(p.dir, centerID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("center %q: %w", centerID, ErrNotFound)
		}
		return nil, fmt.Errorf("read center config %q: %w", centerID, err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse center config %q: %w", centerID, err)
	}
	if err := p.schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("center config %q does not match schema: %w", centerID, err)
	}

	cfg = &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode center config %q: %w", centerID, err)
	}

	p.mu.Lock()
	if len(p.cache) >= p.maxEntries {
		// Drop everything rather than track recency; configs are tiny and
		// reload is one file read.
		p.cache = make(map[string]*Config)
	}
	p.cache[centerID] = cfg
	p.mu.Unlock()
	return cfg, nil
}

// Invalidate drops one center from the cache.
func (p *FileProvider) Invalidate(centerID string) {
	p.mu.Lock()
	delete(p.cache, centerID)
	p.mu.Unlock()
}

// InvalidateAll drops the whole cache.
func (p *FileProvider) InvalidateAll() {
	p.mu.Lock()
	p.cache = make(map[string]*Config)
	p.mu.Unlock()
}
