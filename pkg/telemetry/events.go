package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence in a scoring process.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	Problem    string `json:"problem,omitempty"`
	PassID     string `json:"pass_id,omitempty"`
	Constraint string `json:"constraint,omitempty"`

	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	Data map[string]any `json:"data,omitempty"`
}

// Event types.
const (
	EventTypePassCompleted    = "pass.completed"
	EventTypePassFailed       = "pass.failed"
	EventTypeConstraintFailed = "constraint.failed"
	EventTypePolicyViolation  = "policy.violation"
	EventTypeDatasetReloaded  = "dataset.reloaded"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers, synchronously or through a
// buffered channel drained in batches.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event %s dropped", event.Type)
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishPassCompleted publishes the outcome of a scoring pass.
func (ep *EventPublisher) PublishPassCompleted(problem, passID, score string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypePassCompleted,
		Source:  "engine",
		Problem: problem,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s scored %s", passID, score),
		Level:   EventLevelInfo,
		Data: map[string]any{
			"score":       score,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// PublishPassFailed publishes a pass that returned an error.
func (ep *EventPublisher) PublishPassFailed(problem, passID string, failed int, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePassFailed,
		Source:  "engine",
		Problem: problem,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s failed: %s", passID, reason),
		Level:   EventLevelError,
		Data:    map[string]any{"failed_constraints": failed},
	})
}

// PublishConstraintFailed publishes a constraint whose evaluation failed.
func (ep *EventPublisher) PublishConstraintFailed(problem, passID, constraint, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeConstraintFailed,
		Source:     "engine",
		Problem:    problem,
		PassID:     passID,
		Constraint: constraint,
		Message:    fmt.Sprintf("Constraint %s failed: %s", constraint, reason),
		Level:      EventLevelError,
	})
}

// PublishPolicyViolation publishes a policy finding against a constraint set.
func (ep *EventPublisher) PublishPolicyViolation(problem, constraint, policyName, level, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypePolicyViolation,
		Source:     "policy",
		Problem:    problem,
		Constraint: constraint,
		Message:    fmt.Sprintf("Policy %s: %s", policyName, reason),
		Level:      level,
		Data:       map[string]any{"policy": policyName},
	})
}

// PublishDatasetReloaded publishes a dataset rescored after a file change.
func (ep *EventPublisher) PublishDatasetReloaded(problem, path string) error {
	return ep.Publish(Event{
		Type:    EventTypeDatasetReloaded,
		Source:  "watcher",
		Problem: problem,
		Message: fmt.Sprintf("Dataset %s reloaded", path),
		Level:   EventLevelInfo,
		Data:    map[string]any{"path": path},
	})
}

// Subscribe registers a subscriber with an optional filter.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents drains the buffer, delivering whatever is queued as a batch.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch[:0], event)
		fill:
			for len(batch) < ep.config.MaxBatchSize {
				select {
				case next := <-ep.buffer:
					batch = append(batch, next)
				default:
					break fill
				}
			}
			ep.flushBatch(batch)

		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent calls every matching subscriber in order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown delivers buffered events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel allows events of minLevel or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType allows events of the given types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByProblem allows events about one problem.
func FilterByProblem(problem string) EventFilter {
	return func(event Event) bool {
		return event.Problem == problem
	}
}
