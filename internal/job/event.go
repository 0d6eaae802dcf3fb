package job

import (
	"deployd/internal/notify"
	"fmt"
	"slices"
	"time"
)

// Event types for deployment lifecycle callbacks
const (
	EventTypeStart = "deployd.deployment.start"
	EventTypeStep  = "deployd.deployment.step"
	EventTypeExit  = "deployd.deployment.exit"
)

// EventTypes lists every event a callback may subscribe to.
var EventTypes = []string{EventTypeStart, EventTypeStep, EventTypeExit}

// FilteredEvents returns true if the event type should be sent based on the filter.
// If the filter is empty, all events are allowed.
func FilteredEvents(eventType string, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	return slices.Contains(filter, eventType)
}

// EventBuilder builds CloudEvents for one deployment.
type EventBuilder struct {
	source  string
	subject string
	kind    Kind
}

// NewEventBuilder creates a new EventBuilder.
func NewEventBuilder(jobID string, kind Kind, source string) *EventBuilder {
	return &EventBuilder{source: source, subject: jobID, kind: kind}
}

// Build creates a new CloudEvent with the given type and data.
func (b *EventBuilder) Build(eventType string, data map[string]any) *notify.CloudEvent {
	eventID := fmt.Sprintf("%s-%d", b.subject, time.Now().UnixNano())
	data["deploymentId"] = b.subject
	data["type"] = b.kind
	return notify.NewEvent(eventType, b.source, b.subject, eventID, data)
}

// BuildStartEvent creates a deployment start event.
func (b *EventBuilder) BuildStartEvent(totalSteps int) *notify.CloudEvent {
	return b.Build(EventTypeStart, map[string]any{"totalSteps": totalSteps})
}

// BuildStepEvent creates a step completion event.
func (b *EventBuilder) BuildStepEvent(order int, stepType, outcome string, err error) *notify.CloudEvent {
	data := map[string]any{
		"order":    order,
		"stepType": stepType,
		"outcome":  outcome,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return b.Build(EventTypeStep, data)
}

// BuildExitEvent creates a deployment exit event.
func (b *EventBuilder) BuildExitEvent(status Status, err error) *notify.CloudEvent {
	data := map[string]any{"status": status}
	if err != nil {
		data["error"] = err.Error()
	}
	return b.Build(EventTypeExit, data)
}
