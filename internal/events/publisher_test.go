package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/margin/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	created := &models.Event{
		Type:         models.EventTypeAnnotationCreated,
		URI:          "https://example.com/a",
		AnnotationID: "ann-1",
	}

	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{name: "empty filter matches any event", filter: Filter{}, event: created, want: true},
		{name: "nil event returns false", filter: Filter{}, event: nil, want: false},
		{
			name:   "event type filter matches",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeAnnotationCreated}},
			event:  created,
			want:   true,
		},
		{
			name:   "event type filter rejects non-matching",
			filter: Filter{EventTypes: []models.EventType{models.EventTypeBeforeAnnotationCreated}},
			event:  created,
			want:   false,
		},
		{
			name: "multiple event types - matches any",
			filter: Filter{EventTypes: []models.EventType{
				models.EventTypeAnnotationDeleted,
				models.EventTypeAnnotationCreated,
			}},
			event: created,
			want:  true,
		},
		{name: "uri filter matches", filter: Filter{URI: "https://example.com/a"}, event: created, want: true},
		{name: "uri filter rejects", filter: Filter{URI: "https://example.com/b"}, event: created, want: false},
		{name: "annotation filter rejects", filter: Filter{AnnotationID: "ann-2"}, event: created, want: false},
		{
			name: "combined filters - all must match",
			filter: Filter{
				EventTypes:   []models.EventType{models.EventTypeAnnotationCreated},
				URI:          "https://example.com/a",
				AnnotationID: "ann-1",
			},
			event: created,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestInMemoryPublisher_Subscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	handler := func(event *models.Event) {}

	require.NoError(t, pub.Subscribe("sub-1", Filter{}, handler))
	require.Equal(t, 1, pub.SubscriberCount())

	require.Equal(t, ErrSubscriptionExists, pub.Subscribe("sub-1", Filter{}, handler))
	require.Equal(t, ErrInvalidSubscriptionID, pub.Subscribe("", Filter{}, handler))
	require.Equal(t, ErrNilHandler, pub.Subscribe("sub-2", Filter{}, nil))
}

func TestInMemoryPublisher_Unsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("sub-1", Filter{}, func(event *models.Event) {})

	require.NoError(t, pub.Unsubscribe("sub-1"))
	require.Zero(t, pub.SubscriberCount())
	require.Equal(t, ErrSubscriptionNotFound, pub.Unsubscribe("sub-1"))
}

func TestInMemoryPublisher_PublishWithFilter(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	var before, created int
	_ = pub.Subscribe("before", Filter{
		EventTypes: []models.EventType{models.EventTypeBeforeAnnotationCreated},
	}, func(event *models.Event) { before++ })
	_ = pub.Subscribe("created", Filter{
		EventTypes: []models.EventType{models.EventTypeAnnotationCreated},
	}, func(event *models.Event) { created++ })

	ann := &models.Annotation{Tag: "t1", URI: "u"}
	pub.Publish(ctx, models.NewAnnotationEvent(models.EventTypeBeforeAnnotationCreated, ann))
	pub.Publish(ctx, models.NewAnnotationEvent(models.EventTypeAnnotationCreated, ann))
	pub.Publish(ctx, models.NewAnnotationEvent(models.EventTypeAnnotationCreated, ann))
	pub.Publish(ctx, nil)

	require.Equal(t, 1, before)
	require.Equal(t, 2, created)
}

func TestInMemoryPublisher_UpdateSubscription(t *testing.T) {
	pub := NewInMemoryPublisher()
	ctx := context.Background()

	count := 0
	_ = pub.Subscribe("sub-1", Filter{URI: "a"}, func(event *models.Event) { count++ })

	pub.Publish(ctx, &models.Event{Type: models.EventTypeAnnotationCreated, URI: "a"})
	require.NoError(t, pub.UpdateSubscription("sub-1", Filter{URI: "b"}))
	pub.Publish(ctx, &models.Event{Type: models.EventTypeAnnotationCreated, URI: "a"})
	pub.Publish(ctx, &models.Event{Type: models.EventTypeAnnotationCreated, URI: "b"})

	require.Equal(t, 2, count)
	require.Equal(t, ErrSubscriptionNotFound, pub.UpdateSubscription("missing", Filter{}))
}

func TestInMemoryPublisher_HandlerMayUnsubscribe(t *testing.T) {
	pub := NewInMemoryPublisher()
	calls := 0
	_ = pub.Subscribe("once", Filter{}, func(event *models.Event) {
		calls++
		_ = pub.Unsubscribe("once")
	})

	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeAnnotationCreated})
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeAnnotationCreated})
	require.Equal(t, 1, calls)
}

type recordingRepo struct {
	mu     sync.Mutex
	events []*models.Event
	err    error
}

func (r *recordingRepo) Create(_ context.Context, event *models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestInMemoryPublisher_PersistsBestEffort(t *testing.T) {
	repo := &recordingRepo{err: errors.New("disk full")}
	pub := NewInMemoryPublisher(WithRepository(repo))

	delivered := false
	_ = pub.Subscribe("sub", Filter{}, func(event *models.Event) { delivered = true })
	pub.Publish(context.Background(), &models.Event{Type: models.EventTypeAnnotationDeleted})

	require.True(t, delivered)
	require.Len(t, repo.events, 1)
}

func TestScopedUnsubscribeIsIdempotent(t *testing.T) {
	pub := NewInMemoryPublisher()
	unsubscribe, err := Scoped(pub, Filter{}, func(event *models.Event) {})
	require.NoError(t, err)
	require.Equal(t, 1, pub.SubscriberCount())

	unsubscribe()
	unsubscribe()
	require.Zero(t, pub.SubscriberCount())

	_, err = Scoped(pub, Filter{}, nil)
	require.Equal(t, ErrNilHandler, err)
}

func TestInMemoryPublisher_Close(t *testing.T) {
	pub := NewInMemoryPublisher()
	_ = pub.Subscribe("a", Filter{}, func(event *models.Event) {})
	_ = pub.Subscribe("b", Filter{}, func(event *models.Event) {})
	pub.Close()
	require.Zero(t, pub.SubscriberCount())
}
