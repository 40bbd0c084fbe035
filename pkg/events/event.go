package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewChatTurnCompleted is published after a chat turn finishes streaming.
func NewChatTurnCompleted(sessionID, question string, cached bool, latencyMs int, sourceCount int) Event {
	return BaseEvent{
		Type: "CHAT_TURN_COMPLETED",
		Data: map[string]interface{}{
			"session_id":   sessionID,
			"question":     question,
			"cached":       cached,
			"latency_ms":   latencyMs,
			"source_count": sourceCount,
		},
		OccurredAt: time.Now(),
	}
}

// NewFeedbackReceived is published when a user rates an answer.
func NewFeedbackReceived(sessionID, question string, rating int) Event {
	return BaseEvent{
		Type: "FEEDBACK_RECEIVED",
		Data: map[string]interface{}{
			"session_id": sessionID,
			"question":   question,
			"rating":     rating,
		},
		OccurredAt: time.Now(),
	}
}

// NewReportIngested is published after a report PDF has been chunked and indexed.
func NewReportIngested(report string, chunks int) Event {
	return BaseEvent{
		Type: "REPORT_INGESTED",
		Data: map[string]interface{}{
			"report": report,
			"chunks": chunks,
		},
		OccurredAt: time.Now(),
	}
}
