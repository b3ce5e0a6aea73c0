package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tOgg1/margin/internal/models"
)

// Document is the on-disk YAML form of an annotated document.
type Document struct {
	URI         string               `yaml:"uri"`
	Title       string               `yaml:"title,omitempty"`
	Annotations []*models.Annotation `yaml:"annotations"`
}

// ReadDocument parses a YAML annotation document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, ann := range doc.Annotations {
		if ann == nil {
			return nil, fmt.Errorf("%s: annotations[%d] is empty", path, i)
		}
		if ann.URI == "" {
			ann.URI = doc.URI
		}
	}
	return &doc, nil
}

// WriteDocument writes doc to path atomically.
func WriteDocument(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// FileSource serves annotations from a YAML document on disk. Every read
// goes back to the file so external edits are picked up.
type FileSource struct {
	path string
	mu   sync.Mutex
}

// NewFileSource creates a source backed by path. The file is created on the
// first write if it does not exist.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return "file:" + s.path }

// Path returns the backing file.
func (s *FileSource) Path() string { return s.path }

// Document reads the whole document.
func (s *FileSource) Document() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSource) read() (*Document, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return &Document{}, nil
	}
	return ReadDocument(s.path)
}

// Load implements Source. An empty uri returns every annotation in the file.
func (s *FileSource) Load(_ context.Context, uri string) ([]*models.Annotation, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}
	if uri == "" {
		return doc.Annotations, nil
	}
	out := make([]*models.Annotation, 0, len(doc.Annotations))
	for _, ann := range doc.Annotations {
		if ann.URI == uri {
			out = append(out, ann)
		}
	}
	return out, nil
}

// Create implements Source.
func (s *FileSource) Create(_ context.Context, ann *models.Annotation) error {
	if ann == nil {
		return fmt.Errorf("annotation is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if ann.ID == "" {
		ann.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ann.Created.IsZero() {
		ann.Created = now
	}
	if ann.Updated.IsZero() {
		ann.Updated = ann.Created
	}
	if err := ann.Validate(); err != nil {
		return err
	}
	if doc.URI == "" {
		doc.URI = ann.URI
	}
	if findIndex(doc.Annotations, ann.ID) >= 0 {
		return fmt.Errorf("annotation %s already exists", ann.ID)
	}

	doc.Annotations = append(doc.Annotations, ann.Clone())
	return WriteDocument(s.path, doc)
}

// Update implements Source.
func (s *FileSource) Update(_ context.Context, ann *models.Annotation) error {
	if ann == nil || ann.ID == "" {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	idx := findIndex(doc.Annotations, ann.ID)
	if idx < 0 {
		return ErrNotFound
	}
	ann.Updated = time.Now().UTC()
	if err := ann.Validate(); err != nil {
		return err
	}
	doc.Annotations[idx] = ann.Clone()
	return WriteDocument(s.path, doc)
}

// Delete implements Source.
func (s *FileSource) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	idx := findIndex(doc.Annotations, id)
	if idx < 0 {
		return ErrNotFound
	}
	doc.Annotations = slices.Delete(doc.Annotations, idx, idx+1)
	return WriteDocument(s.path, doc)
}

func findIndex(annotations []*models.Annotation, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	return slices.IndexFunc(annotations, func(a *models.Annotation) bool {
		return a.ID == id
	})
}
