package source

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/margin/internal/events"
	"github.com/tOgg1/margin/internal/logging"
	"github.com/tOgg1/margin/internal/models"
)

// Service runs the annotation lifecycle against a source and announces each
// step on the event bus.
type Service struct {
	src    Source
	pub    events.Publisher
	logger zerolog.Logger
}

// NewService creates a service. pub may be nil.
func NewService(src Source, pub events.Publisher) *Service {
	return &Service{
		src:    src,
		pub:    pub,
		logger: logging.Component("source"),
	}
}

// Source returns the backing source.
func (s *Service) Source() Source {
	return s.src
}

// Begin announces a new annotation before it is stored. Unsaved annotations
// get a local tag so listeners can find the thread created for them.
func (s *Service) Begin(ctx context.Context, ann *models.Annotation) {
	if ann == nil {
		return
	}
	if ann.ID == "" && ann.Tag == "" {
		ann.Tag = "t" + uuid.New().String()[:8]
	}
	s.publish(ctx, models.NewAnnotationEvent(models.EventTypeBeforeAnnotationCreated, ann))
}

// Save stores an annotation previously announced with Begin.
func (s *Service) Save(ctx context.Context, ann *models.Annotation) error {
	if err := s.src.Create(ctx, ann); err != nil {
		s.publishError(ctx, err, "create")
		return fmt.Errorf("create annotation: %w", err)
	}
	s.logger.Debug().Str("id", ann.ID).Str("uri", ann.URI).Msg("annotation created")
	s.publish(ctx, models.NewAnnotationEvent(models.EventTypeAnnotationCreated, ann))
	return nil
}

// Create announces and stores an annotation in one step.
func (s *Service) Create(ctx context.Context, ann *models.Annotation) error {
	s.Begin(ctx, ann)
	return s.Save(ctx, ann)
}

// Update stores changes to an existing annotation.
func (s *Service) Update(ctx context.Context, ann *models.Annotation) error {
	if err := s.src.Update(ctx, ann); err != nil {
		s.publishError(ctx, err, "update")
		return fmt.Errorf("update annotation: %w", err)
	}
	s.publish(ctx, models.NewAnnotationEvent(models.EventTypeAnnotationUpdated, ann))
	return nil
}

// Delete removes an annotation.
func (s *Service) Delete(ctx context.Context, ann *models.Annotation) error {
	if ann == nil {
		return ErrNotFound
	}
	if err := s.src.Delete(ctx, ann.ID); err != nil {
		s.publishError(ctx, err, "delete")
		return fmt.Errorf("delete annotation: %w", err)
	}
	s.publish(ctx, models.NewAnnotationEvent(models.EventTypeAnnotationDeleted, ann))
	return nil
}

// Load reads every annotation on uri.
func (s *Service) Load(ctx context.Context, uri string) ([]*models.Annotation, error) {
	annotations, err := s.src.Load(ctx, uri)
	if err != nil {
		s.publishError(ctx, err, "load")
		return nil, fmt.Errorf("load annotations: %w", err)
	}

	event := &models.Event{Type: models.EventTypeAnnotationsLoaded, URI: uri}
	if payload, err := json.Marshal(models.AnnotationsLoadedPayload{
		Count:  len(annotations),
		Source: s.src.Name(),
	}); err == nil {
		event.Payload = payload
	}
	s.publish(ctx, event)
	return annotations, nil
}

func (s *Service) publish(ctx context.Context, event *models.Event) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, event)
}

func (s *Service) publishError(ctx context.Context, err error, op string) {
	s.logger.Warn().Err(err).Str("op", op).Msg("source operation failed")
	if s.pub == nil {
		return
	}
	event := &models.Event{Type: models.EventTypeError}
	if payload, mErr := json.Marshal(models.ErrorPayload{Error: err.Error(), Context: op}); mErr == nil {
		event.Payload = payload
	}
	s.pub.Publish(ctx, event)
}
