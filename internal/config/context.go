package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context is the current CLI context: the document commands act on when no
// URI is given.
type Context struct {
	// URI is the currently selected document.
	URI string `yaml:"uri,omitempty"`
	// Title is the human-readable document name (for display).
	Title string `yaml:"title,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no document is selected.
func (c *Context) IsEmpty() bool {
	return c.URI == ""
}

// Clear removes the selected document.
func (c *Context) Clear() {
	c.URI = ""
	c.Title = ""
	c.UpdatedAt = time.Now()
}

// SetDocument selects a document.
func (c *Context) SetDocument(uri, title string) {
	c.URI = uri
	c.Title = title
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no document selected)"
	}
	if c.Title != "" {
		return fmt.Sprintf("document:%s (%s)", c.Title, c.URI)
	}
	return "document:" + c.URI
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/margin/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "margin", "context.yaml")
	}
	return &ContextStore{path: path}
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}

// ResolveURI returns arg when set, else the stored document.
func (s *ContextStore) ResolveURI(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	ctx, err := s.Load()
	if err != nil {
		return "", err
	}
	if ctx.IsEmpty() {
		return "", fmt.Errorf("no document given and none selected (use 'margin use <uri>')")
	}
	return ctx.URI, nil
}
