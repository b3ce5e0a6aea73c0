package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/models"
)

// StreamConfig configures event streaming behavior.
type StreamConfig struct {
	// PollInterval is how often to check for new events.
	PollInterval time.Duration

	// EventTypes filters to specific event types (nil = all).
	EventTypes []models.EventType

	// URI filters to one document.
	URI string

	// Since streams events at or after this timestamp.
	Since *time.Time

	// IncludeExisting includes events before streaming starts.
	IncludeExisting bool

	// BatchSize is the max events per poll.
	BatchSize int
}

// DefaultStreamConfig returns sensible defaults for streaming.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 500 * time.Millisecond,
		BatchSize:    100,
	}
}

// EventStreamer streams events to an output writer in JSONL format.
type EventStreamer struct {
	repo   *db.EventRepository
	out    io.Writer
	config StreamConfig
	logger func(string, ...any)
}

// NewEventStreamer creates a new event streamer.
func NewEventStreamer(repo *db.EventRepository, out io.Writer, config StreamConfig) *EventStreamer {
	if config.PollInterval == 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &EventStreamer{
		repo:   repo,
		out:    out,
		config: config,
		logger: func(format string, args ...any) {
			if IsVerbose() {
				fmt.Fprintf(os.Stderr, format+"\n", args...)
			}
		},
	}
}

// Stream writes events until the context is cancelled or the process is
// interrupted. Returns nil on graceful shutdown.
func (s *EventStreamer) Stream(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cursor string
	since := s.config.Since
	if !s.config.IncludeExisting {
		now := time.Now().UTC()
		since = &now
	}

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger("Starting event stream (poll interval: %v)", s.config.PollInterval)

	for {
		// Drain every page before waiting for the next tick.
		for {
			events, last, more, err := s.poll(ctx, cursor, since)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("failed to poll events: %w", err)
			}
			for _, event := range events {
				if err := s.writeEvent(event); err != nil {
					return fmt.Errorf("failed to write event: %w", err)
				}
			}
			if last != "" {
				cursor = last
				since = nil
			}
			if !more {
				break
			}
		}

		select {
		case <-ctx.Done():
			s.logger("Event stream stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches the next batch of events after cursor. It returns the ID of
// the last event read, before type filtering, and whether more are waiting.
func (s *EventStreamer) poll(ctx context.Context, cursor string, since *time.Time) ([]*models.Event, string, bool, error) {
	query := db.EventQuery{
		Cursor: cursor,
		Since:  since,
		Limit:  s.config.BatchSize,
	}
	if len(s.config.EventTypes) == 1 {
		query.Type = &s.config.EventTypes[0]
	}
	if s.config.URI != "" {
		query.URI = &s.config.URI
	}

	page, err := s.repo.Query(ctx, query)
	if err != nil {
		return nil, "", false, err
	}
	if len(page.Events) == 0 {
		return nil, "", false, nil
	}

	last := page.Events[len(page.Events)-1].ID
	events := page.Events
	if len(s.config.EventTypes) > 1 {
		events = slices.DeleteFunc(slices.Clone(events), func(e *models.Event) bool {
			return !slices.Contains(s.config.EventTypes, e.Type)
		})
	}
	return events, last, page.NextCursor != "", nil
}

// writeEvent writes a single event as JSONL.
func (s *EventStreamer) writeEvent(event *models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

// StreamEvents streams events with the default config until interrupted.
func StreamEvents(ctx context.Context, repo *db.EventRepository, out io.Writer) error {
	return NewEventStreamer(repo, out, DefaultStreamConfig()).Stream(ctx)
}
