// Package source loads and stores annotations for a document.
package source

import (
	"context"
	"errors"

	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/models"
)

// ErrNotFound is returned when an annotation does not exist in a source.
var ErrNotFound = errors.New("annotation not found")

// Source is a backing store for annotations.
type Source interface {
	// Name describes the source for logs and status lines.
	Name() string

	// Load returns every annotation on uri.
	Load(ctx context.Context, uri string) ([]*models.Annotation, error)

	// Create stores a new annotation and assigns its ID.
	Create(ctx context.Context, ann *models.Annotation) error

	// Update replaces a stored annotation's mutable fields.
	Update(ctx context.Context, ann *models.Annotation) error

	// Delete removes an annotation by ID.
	Delete(ctx context.Context, id string) error
}

// SQLiteSource serves annotations from the local database.
type SQLiteSource struct {
	repo *db.AnnotationRepository
}

// NewSQLiteSource wraps an annotation repository.
func NewSQLiteSource(repo *db.AnnotationRepository) *SQLiteSource {
	return &SQLiteSource{repo: repo}
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "sqlite" }

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context, uri string) ([]*models.Annotation, error) {
	return s.repo.ListByURI(ctx, uri)
}

// Create implements Source.
func (s *SQLiteSource) Create(ctx context.Context, ann *models.Annotation) error {
	return s.repo.Create(ctx, ann)
}

// Update implements Source.
func (s *SQLiteSource) Update(ctx context.Context, ann *models.Annotation) error {
	return mapNotFound(s.repo.Update(ctx, ann))
}

// Delete implements Source.
func (s *SQLiteSource) Delete(ctx context.Context, id string) error {
	return mapNotFound(s.repo.Delete(ctx, id))
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrAnnotationNotFound) {
		return ErrNotFound
	}
	return err
}
