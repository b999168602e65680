package contracts

import "time"

// EventType enumerates notifier events
type EventType string

const (
	EventCycleStarted     EventType = "cycle_started"
	EventCycleCompleted   EventType = "cycle_completed"
	EventTradeExecuted    EventType = "trade_executed"
	EventSelectionUpdated EventType = "selection_updated"
	EventError            EventType = "error"
	EventReport           EventType = "report"
)

// Event is a structured, fire-and-forget notification
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	CycleID   string                 `json:"cycle_id,omitempty"`
	Symbol    string                 `json:"symbol,omitempty"`
	Stage     Phase                  `json:"stage,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent stamps an event with the current time
func NewEvent(t EventType, message string) Event {
	return Event{Type: t, Timestamp: time.Now(), Message: message}
}
