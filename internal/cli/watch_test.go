package cli

import (
	"bufio"
	"bytes"
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/margin/internal/db"
	"github.com/tOgg1/margin/internal/models"
	"github.com/tOgg1/margin/internal/testutil"
)

func seedEvents(t *testing.T, repo *db.EventRepository, base time.Time, events ...*models.Event) {
	t.Helper()
	for i, event := range events {
		event.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(context.Background(), event))
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []models.Event {
	t.Helper()
	var out []models.Event
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var event models.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		out = append(out, event)
	}
	return out
}

func TestEventStreamerWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	streamer := NewEventStreamer(db.NewEventRepository(testutil.OpenDB(t)), &buf, DefaultStreamConfig())

	event := &models.Event{
		ID:           "evt-1",
		Timestamp:    time.Now().UTC(),
		Type:         models.EventTypeAnnotationCreated,
		URI:          "https://example.com/doc",
		AnnotationID: "a1",
	}
	require.NoError(t, streamer.writeEvent(event))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "evt-1", lines[0].ID)
	require.Equal(t, models.EventTypeAnnotationCreated, lines[0].Type)
	require.Equal(t, "a1", lines[0].AnnotationID)
}

func TestEventStreamerPollPages(t *testing.T) {
	repo := db.NewEventRepository(testutil.OpenDB(t))
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	var events []*models.Event
	for range 5 {
		events = append(events, &models.Event{Type: models.EventTypeAnnotationCreated, URI: "doc"})
	}
	seedEvents(t, repo, base, events...)

	config := DefaultStreamConfig()
	config.BatchSize = 2
	streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)

	ctx := context.Background()
	got, last, more, err := streamer.poll(ctx, "", &base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, more)
	require.Equal(t, events[1].ID, last)

	got, last, more, err = streamer.poll(ctx, last, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, more)

	got, _, more, err = streamer.poll(ctx, last, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.False(t, more)
}

func TestEventStreamerPollFilters(t *testing.T) {
	repo := db.NewEventRepository(testutil.OpenDB(t))
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedEvents(t, repo, base,
		&models.Event{Type: models.EventTypeAnnotationCreated, URI: "doc-a"},
		&models.Event{Type: models.EventTypeAnnotationDeleted, URI: "doc-a"},
		&models.Event{Type: models.EventTypeAnnotationsLoaded, URI: "doc-a"},
		&models.Event{Type: models.EventTypeAnnotationCreated, URI: "doc-b"},
	)

	tests := []struct {
		name   string
		config func(*StreamConfig)
		want   int
	}{
		{"all", func(*StreamConfig) {}, 4},
		{"by uri", func(c *StreamConfig) { c.URI = "doc-b" }, 1},
		{"single type", func(c *StreamConfig) {
			c.EventTypes = []models.EventType{models.EventTypeAnnotationCreated}
		}, 2},
		{"several types", func(c *StreamConfig) {
			c.EventTypes = []models.EventType{models.EventTypeAnnotationCreated, models.EventTypeAnnotationDeleted}
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultStreamConfig()
			tt.config(&config)
			streamer := NewEventStreamer(repo, &bytes.Buffer{}, config)
			got, last, _, err := streamer.poll(context.Background(), "", &base)
			require.NoError(t, err)
			require.Len(t, got, tt.want)
			require.NotEmpty(t, last)
		})
	}
}

func TestEventStreamerStreamIncludesExisting(t *testing.T) {
	repo := db.NewEventRepository(testutil.OpenDB(t))
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	seedEvents(t, repo, base,
		&models.Event{Type: models.EventTypeAnnotationCreated, URI: "doc"},
		&models.Event{Type: models.EventTypeAnnotationUpdated, URI: "doc"},
	)

	var buf bytes.Buffer
	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond
	config.IncludeExisting = true
	config.BatchSize = 1

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEventStreamer(repo, &buf, config).Stream(ctx))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, models.EventTypeAnnotationCreated, lines[0].Type)
	require.Equal(t, models.EventTypeAnnotationUpdated, lines[1].Type)
}

func TestEventStreamerStreamSkipsExistingByDefault(t *testing.T) {
	repo := db.NewEventRepository(testutil.OpenDB(t))
	seedEvents(t, repo, time.Now().UTC().Add(-time.Hour),
		&models.Event{Type: models.EventTypeAnnotationCreated, URI: "doc"},
	)

	var buf bytes.Buffer
	config := DefaultStreamConfig()
	config.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEventStreamer(repo, &buf, config).Stream(ctx))
	require.Zero(t, buf.Len())
}
