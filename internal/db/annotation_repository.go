package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tOgg1/margin/internal/models"
)

// Annotation repository errors.
var (
	ErrAnnotationNotFound = errors.New("annotation not found")
	ErrInvalidAnnotation  = errors.New("invalid annotation")
)

// timeFormat keeps fixed-width fractions so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const annotationColumns = `id, tag, uri, user_name, text, tags_json, references_json, target_json, hidden, created_at, updated_at`

// AnnotationRepository handles annotation persistence.
type AnnotationRepository struct {
	db *DB
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// Create stores a new annotation, assigning its ID and timestamps.
// The client-local Tag is kept so the caller can match the saved record.
func (r *AnnotationRepository) Create(ctx context.Context, ann *models.Annotation) error {
	if ann == nil {
		return ErrInvalidAnnotation
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
		return fmt.Errorf("%w: %w", ErrInvalidAnnotation, err)
	}

	row, err := encodeAnnotation(ann)
	if err != nil {
		return err
	}

	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO annotations (`+annotationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, row...)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				return fmt.Errorf("%w: id %s already exists", ErrInvalidAnnotation, ann.ID)
			}
			return fmt.Errorf("failed to insert annotation: %w", err)
		}
		return nil
	})
}

// Get retrieves an annotation by ID, falling back to its local tag.
func (r *AnnotationRepository) Get(ctx context.Context, key string) (*models.Annotation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+annotationColumns+` FROM annotations
		WHERE id = ? OR (tag != '' AND tag = ?)
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END
		LIMIT 1
	`, key, key, key)

	ann, err := scanAnnotation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnnotationNotFound
		}
		return nil, err
	}
	return ann, nil
}

// Update replaces the mutable fields of a stored annotation.
func (r *AnnotationRepository) Update(ctx context.Context, ann *models.Annotation) error {
	if ann == nil || ann.ID == "" {
		return ErrInvalidAnnotation
	}
	ann.Updated = time.Now().UTC()
	if err := ann.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAnnotation, err)
	}

	tagsJSON, err := encodeJSON(ann.Tags)
	if err != nil {
		return err
	}
	targetJSON, err := encodeJSON(ann.Target)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE annotations
		SET text = ?, tags_json = ?, target_json = ?, hidden = ?, updated_at = ?
		WHERE id = ?
	`, ann.Text, tagsJSON, targetJSON, boolToInt(ann.Hidden), ann.Updated.Format(timeFormat), ann.ID)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes an annotation by ID.
func (r *AnnotationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete annotation: %w", err)
	}
	return expectOneRow(result)
}

// ListByURI returns every annotation on a document in creation order.
func (r *AnnotationRepository) ListByURI(ctx context.Context, uri string) ([]*models.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+annotationColumns+` FROM annotations
		WHERE uri = ?
		ORDER BY created_at, id
	`, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	var out []*models.Annotation
	for rows.Next() {
		ann, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ann)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotations: %w", err)
	}
	return out, nil
}

// DocumentSummary counts annotations on one document.
type DocumentSummary struct {
	URI     string    `json:"uri"`
	Count   int       `json:"count"`
	Updated time.Time `json:"updated"`
}

// ListURIs returns every annotated document, most recently updated first.
func (r *AnnotationRepository) ListURIs(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT uri, COUNT(*), MAX(updated_at) FROM annotations
		GROUP BY uri
		ORDER BY MAX(updated_at) DESC, uri
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var summary DocumentSummary
		var updated string
		if err := rows.Scan(&summary.URI, &summary.Count, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		summary.Updated = parseTime(updated)
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(row rowScanner) (*models.Annotation, error) {
	var ann models.Annotation
	var tagsJSON, refsJSON, targetJSON sql.NullString
	var hidden int
	var created, updated string

	if err := row.Scan(
		&ann.ID,
		&ann.Tag,
		&ann.URI,
		&ann.User,
		&ann.Text,
		&tagsJSON,
		&refsJSON,
		&targetJSON,
		&hidden,
		&created,
		&updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan annotation: %w", err)
	}

	if err := decodeJSON(tagsJSON, &ann.Tags); err != nil {
		return nil, fmt.Errorf("annotation %s tags: %w", ann.ID, err)
	}
	if err := decodeJSON(refsJSON, &ann.References); err != nil {
		return nil, fmt.Errorf("annotation %s references: %w", ann.ID, err)
	}
	if err := decodeJSON(targetJSON, &ann.Target); err != nil {
		return nil, fmt.Errorf("annotation %s target: %w", ann.ID, err)
	}
	ann.Hidden = hidden != 0
	ann.Created = parseTime(created)
	ann.Updated = parseTime(updated)

	return &ann, nil
}

func encodeAnnotation(ann *models.Annotation) ([]any, error) {
	tagsJSON, err := encodeJSON(ann.Tags)
	if err != nil {
		return nil, err
	}
	refsJSON, err := encodeJSON(ann.References)
	if err != nil {
		return nil, err
	}
	targetJSON, err := encodeJSON(ann.Target)
	if err != nil {
		return nil, err
	}
	return []any{
		ann.ID,
		ann.Tag,
		ann.URI,
		ann.User,
		ann.Text,
		tagsJSON,
		refsJSON,
		targetJSON,
		boolToInt(ann.Hidden),
		ann.Created.UTC().Format(timeFormat),
		ann.Updated.UTC().Format(timeFormat),
	}, nil
}

// encodeJSON stores empty slices as NULL.
func encodeJSON[T any](v []T) (*string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	s := string(data)
	return &s, nil
}

func decodeJSON(col sql.NullString, dest any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dest)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return ErrAnnotationNotFound
	}
	return nil
}
