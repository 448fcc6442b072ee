package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
)

// CartStore holds the session cart. Only the orchestrator clears it.
type CartStore interface {
	Lines(ctx context.Context) ([]pricing.CartLine, error)
	Clear(ctx context.Context) error
}

// MemoryCart keeps the cart in process memory.
type MemoryCart struct {
	mu    sync.Mutex
	lines []pricing.CartLine
}

func NewMemoryCart(lines ...pricing.CartLine) *MemoryCart {
	return &MemoryCart{lines: append([]pricing.CartLine(nil), lines...)}
}

func (c *MemoryCart) Lines(context.Context) ([]pricing.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pricing.CartLine(nil), c.lines...), nil
}

func (c *MemoryCart) Add(line pricing.CartLine) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *MemoryCart) Clear(context.Context) error {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()
	return nil
}

// FileCart persists the cart as a JSON array, the CLI's stand-in for browser
// storage. A missing file is an empty cart.
type FileCart struct {
	path string
	mu   sync.Mutex
}

func NewFileCart(path string) *FileCart {
	return &FileCart{path: path}
}

func (c *FileCart) Lines(context.Context) ([]pricing.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	var lines []pricing.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", c.path, err)
	}
	return lines, nil
}

// Save replaces the stored cart.
func (c *FileCart) Save(lines []pricing.CartLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cart dir: %w", err)
		}
	}
	return os.WriteFile(c.path, raw, 0o600)
}

// Clear truncates the cart to an empty array rather than deleting the file.
func (c *FileCart) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.WriteFile(c.path, []byte("[]\n"), 0o600); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
