package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event is one published provisioning event.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Project is the associated project name, if applicable.
	Project string `json:"project,omitempty"`

	// Resource is the associated resource name, if applicable.
	Resource string `json:"resource,omitempty"`

	// State is the provisioning state for status events.
	State engine.ProvisioningState `json:"state,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeStatusChanged    = "status.changed"
	EventTypeResourceRealized = "resource.realized"
	EventTypePolicyViolation  = "policy.violation"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles events. Subscribers are called in publish order.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans provisioning events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

var _ engine.StatusPublisher = (*EventPublisher)(nil)

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.Enabled && cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			cancel()
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
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

	if ep.buffer == nil {
		ep.deliverEvent(event)
		return nil
	}

	select {
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishStatus publishes a state transition of an orchestration run.
func (ep *EventPublisher) PublishStatus(_ context.Context, update engine.StatusUpdate) error {
	level := EventLevelInfo
	if update.Style == engine.StyleError {
		level = EventLevelError
	}

	event := Event{
		Type:      EventTypeStatusChanged,
		Source:    "orchestrator",
		RunID:     update.RunID,
		Project:   update.Project,
		State:     update.State,
		Message:   update.Message,
		Level:     level,
		Timestamp: update.Timestamp,
		Data: map[string]interface{}{
			"style": string(update.Style),
		},
	}
	if update.Error != "" {
		event.Data["error"] = update.Error
	}

	return ep.Publish(event)
}

// PublishResource publishes a realized resource.
func (ep *EventPublisher) PublishResource(record engine.ResourceRecord) error {
	return ep.Publish(Event{
		Type:      EventTypeResourceRealized,
		Source:    "orchestrator",
		RunID:     record.RunID,
		Project:   record.Project,
		Resource:  record.Name,
		Message:   fmt.Sprintf("%s %s %s", record.Kind, record.Name, record.Outcome),
		Level:     EventLevelInfo,
		Timestamp: record.Timestamp,
		Data: map[string]interface{}{
			"kind":    string(record.Kind),
			"outcome": string(record.Outcome),
		},
	})
}

// PublishPolicyViolation publishes a policy violation.
func (ep *EventPublisher) PublishPolicyViolation(project, resource, policyName, severity, message string) error {
	level := EventLevelWarning
	if severity == "error" || severity == "critical" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:     EventTypePolicyViolation,
		Source:   "policy_engine",
		Project:  project,
		Resource: resource,
		Message:  fmt.Sprintf("Policy violation on %s: %s - %s", resource, policyName, message),
		Level:    level,
		Data: map[string]interface{}{
			"policy":   policyName,
			"severity": severity,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until shutdown, then drains the buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
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

// deliverEvent delivers an event to all subscribers.
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

// Shutdown stops the publisher after delivering buffered events.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.closeOnce.Do(ep.cancel)

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

// LogSubscriber writes every event it receives to logger, at the zerolog level
// matching the event level.
func LogSubscriber(logger *Logger) EventSubscriber {
	zlog := logger.Zerolog()
	return func(event Event) {
		var e *zerolog.Event
		switch event.Level {
		case EventLevelError:
			e = zlog.Error()
		case EventLevelWarning:
			e = zlog.Warn()
		default:
			e = zlog.Info()
		}

		e = e.Str("event_id", event.ID).
			Str("type", event.Type).
			Str("source", event.Source)
		if event.RunID != "" {
			e = e.Str("run_id", event.RunID)
		}
		if event.Project != "" {
			e = e.Str("project", event.Project)
		}
		if event.Resource != "" {
			e = e.Str("resource", event.Resource)
		}
		if event.State != "" {
			e = e.Str("state", string(event.State))
		}
		if len(event.Data) > 0 {
			e = e.Fields(event.Data)
		}
		e.Msg(event.Message)
	}
}

// JSONLinesSubscriber writes each event to w as one JSON document per line.
func JSONLinesSubscriber(w io.Writer) EventSubscriber {
	var mu sync.Mutex
	enc := json.NewEncoder(w)
	return func(event Event) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(event)
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
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

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}
