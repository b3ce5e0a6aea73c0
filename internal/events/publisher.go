// Package events provides in-process publish/subscribe for annotation
// lifecycle notifications.
package events

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/margin/internal/logging"
	"github.com/tOgg1/margin/internal/models"
)

// EventHandler is a callback function invoked when an event matches a subscription.
type EventHandler func(event *models.Event)

// Repository persists published events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// Filter defines criteria for matching events.
type Filter struct {
	// EventTypes filters by event type (nil = all types).
	EventTypes []models.EventType

	// URI filters to a single document (empty = all).
	URI string

	// AnnotationID filters to a specific annotation (empty = all).
	AnnotationID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *models.Event) bool {
	if event == nil {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, event.Type) {
		return false
	}
	if f.URI != "" && event.URI != f.URI {
		return false
	}
	if f.AnnotationID != "" && event.AnnotationID != f.AnnotationID {
		return false
	}
	return true
}

// subscription represents an active event subscription.
type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Publisher defines the interface for event publishing and subscription.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event *models.Event)

	// Subscribe registers a handler to receive events matching the filter.
	Subscribe(id string, filter Filter, handler EventHandler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	repo          Repository
	logger        zerolog.Logger
}

// PublisherOption configures an InMemoryPublisher.
type PublisherOption func(*InMemoryPublisher)

// WithRepository configures the publisher to also persist events.
func WithRepository(repo Repository) PublisherOption {
	return func(p *InMemoryPublisher) {
		p.repo = repo
	}
}

// NewInMemoryPublisher creates a new in-memory event publisher.
func NewInMemoryPublisher(opts ...PublisherOption) *InMemoryPublisher {
	p := &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
		logger:        logging.Component("events"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to all matching subscribers.
// If a repository is configured, the event is also persisted.
func (p *InMemoryPublisher) Publish(ctx context.Context, event *models.Event) {
	if event == nil {
		return
	}

	if p.repo != nil {
		// Best effort: a failed write never blocks delivery.
		if err := p.repo.Create(ctx, event); err != nil {
			p.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("persist event")
		}
	}

	p.mu.RLock()
	var handlers []EventHandler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock so handlers may unsubscribe.
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	p.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}
	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// UpdateSubscription updates the filter for an existing subscription.
func (p *InMemoryPublisher) UpdateSubscription(id string, filter Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, exists := p.subscriptions[id]
	if !exists {
		return ErrSubscriptionNotFound
	}

	sub.filter = filter
	return nil
}

// Close removes all subscriptions.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Scoped subscribes under a generated id and returns the matching unsubscribe
// func, for subscriptions tied to a component's lifetime.
func Scoped(pub Publisher, filter Filter, handler EventHandler) (func(), error) {
	id := "sub-" + uuid.NewString()
	if err := pub.Subscribe(id, filter, handler); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { _ = pub.Unsubscribe(id) })
	}, nil
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
