package agent

import "subsea-agent-be/internal/entity"

type EventType string

const (
	EventThinking   EventType = "thinking"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventToken      EventType = "token"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one step of an agent turn, pushed onto the turn's channel as
// it happens. The done event is always last and carries the collected
// sources, images and follow-up questions.
type Event struct {
	Type    EventType
	Content string
	Name    string
	Input   map[string]any
	Sources []string
	Images  []entity.ImageResult
	Related []string
}
