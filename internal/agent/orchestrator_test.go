package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }
func (nopLogger) GetLogs(string, int, int) ([]logger.LogEntry, error) {
	return nil, nil
}

// fakeDecision replays a script of tool-calling responses and records
// the message history it was handed at each step.
type fakeDecision struct {
	script    []*llm.ChatResponse
	histories [][]llm.Message
	calls     int
}

func (f *fakeDecision) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.Tool, options ...llm.Option) (*llm.ChatResponse, error) {
	f.histories = append(f.histories, append([]llm.Message(nil), history...))
	if f.calls >= len(f.script) {
		return &llm.ChatResponse{Text: "done"}, nil
	}
	resp := f.script[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeDecision) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeDecision) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

type fakeStreamer struct {
	answer     string
	streamErr  error
	followups  string
	followErr  error
	streamHist []llm.Message
}

func (f *fakeStreamer) Stream(ctx context.Context, history []llm.Message, onToken func(string), options ...llm.Option) (string, error) {
	f.streamHist = append([]llm.Message(nil), history...)
	if f.streamErr != nil {
		return "", f.streamErr
	}
	for _, tok := range strings.SplitAfter(f.answer, " ") {
		onToken(tok)
	}
	return f.answer, nil
}

func (f *fakeStreamer) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if f.followErr != nil {
		return "", f.followErr
	}
	return f.followups, nil
}

type fakeRetriever struct {
	passages []entity.RetrievedPassage
	queries  []string
	err      error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int, useRerank bool) ([]entity.RetrievedPassage, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type fakeImages struct {
	results []entity.ImageResult
	queries []string
	err     error
}

func (f *fakeImages) Search(ctx context.Context, query string, k int) ([]entity.ImageResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *fakeImages) Classify(ctx context.Context, image []byte) (*entity.DefectClassification, error) {
	return nil, errors.New("not used")
}

func (f *fakeImages) ResolvePath(imagePath string) (string, bool) {
	return "", false
}

func passage(report string, page int) entity.RetrievedPassage {
	return entity.RetrievedPassage{
		Report:      report,
		Page:        page,
		Content:     "chunk content",
		SourceLabel: fmt.Sprintf("%s s.%d", report, page),
	}
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	require.Equal(t, EventDone, events[len(events)-1].Type, "done is always last")
	return events
}

func eventsOfType(events []Event, et EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == et {
			out = append(out, ev)
		}
	}
	return out
}

func newOrchestrator(decision *fakeDecision, streamer *fakeStreamer, retriever *fakeRetriever, images *fakeImages) *Orchestrator {
	return NewOrchestrator(decision, streamer, NewDefaultRegistry(retriever, images), images, "You are an inspection assistant.", nopLogger{})
}

func TestRunTurnForcesRetrievalOnUngroundedFirstResponse(t *testing.T) {
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{passage("PL-2023-044", 12)}}
	images := &fakeImages{}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{Text: "The pipeline is fine."}, // ungrounded, must be discarded
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Grounded answer.", followups: ""}

	o := newOrchestrator(decision, streamer, retriever, images)
	events := drain(t, o.RunTurn(context.Background(), "corrosion at KP 12?", nil, true))

	toolCalls := eventsOfType(events, EventToolCall)
	require.Len(t, toolCalls, 1)
	assert.Equal(t, ToolSearchReports, toolCalls[0].Name)
	assert.Equal(t, "corrosion at KP 12?", toolCalls[0].Input["query"])
	assert.Equal(t, []string{"corrosion at KP 12?"}, retriever.queries)

	// The ungrounded draft never enters the history; the tool output is
	// injected as a user message instead.
	require.Len(t, decision.histories, 2)
	second := decision.histories[1]
	last := second[len(second)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "Here are relevant report sections:")
	assert.Contains(t, last.Content, "Now answer the original question based on this information.")
	for _, m := range second {
		assert.NotEqual(t, "The pipeline is fine.", m.Content)
	}

	done := events[len(events)-1]
	assert.Equal(t, []string{"PL-2023-044 s.12"}, done.Sources)
	assert.Equal(t, "Grounded answer.", done.Content)
}

func TestRunTurnUnknownToolIsNotFatal(t *testing.T) {
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{passage("R1", 1)}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: "delete_everything", Args: map[string]any{}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer."}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Unknown tool: delete_everything", results[0].Content)
	assert.Empty(t, eventsOfType(events, EventError))
}

func TestRunTurnToolErrorBecomesToolOutput(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("vector search: connection refused")}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchReports, Args: map[string]any{"query": "q"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer."}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Tool error: vector search: connection refused", results[0].Content)
	assert.Empty(t, eventsOfType(events, EventError))
}

func TestRunTurnToolResultPreviewIsTruncated(t *testing.T) {
	long := strings.Repeat("x", 600)
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{{
		Report: "R1", Page: 1, Content: long, SourceLabel: "R1 s.1",
	}}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchReports, Args: map[string]any{"query": "q"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer."}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	results := eventsOfType(events, EventToolResult)
	require.Len(t, results, 1)
	assert.Len(t, []rune(results[0].Content), resultPreviewLen+3)
	assert.True(t, strings.HasSuffix(results[0].Content, "..."))
}

func TestRunTurnImageCandidatesAndMarkers(t *testing.T) {
	images := &fakeImages{results: []entity.ImageResult{
		{Path: "corrosion/kp12.jpg", Score: 72, Label: "external corrosion"},
		{Path: "corrosion/kp13.jpg", Score: 55, Label: "coating damage"},
	}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchImages, Args: map[string]any{"query": "corrosion", "num_results": float64(8)}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{
		answer: "See [IMAGE: corrosion/kp12.jpg] and also [IMAGE: unknown/pic.jpg].",
	}

	o := newOrchestrator(decision, streamer, &fakeRetriever{}, images)
	events := drain(t, o.RunTurn(context.Background(), "show corrosion photos", nil, true))

	done := events[len(events)-1]
	require.Len(t, done.Images, 2)
	assert.Equal(t, "corrosion/kp12.jpg", done.Images[0].Path)
	assert.Equal(t, "external corrosion", done.Images[0].Label)
	// Marker pointing outside the candidate set still comes back, as a
	// placeholder.
	assert.Equal(t, "unknown/pic.jpg", done.Images[1].Path)
	assert.Equal(t, "Agent selected", done.Images[1].Label)
	assert.Zero(t, done.Images[1].Score)

	// query and num_results from the tool call drive the candidate run.
	assert.Equal(t, []string{"corrosion"}, images.queries)
}

func TestRunTurnNoMarkersUsesLeadingCandidates(t *testing.T) {
	var results []entity.ImageResult
	for i := 0; i < 6; i++ {
		results = append(results, entity.ImageResult{Path: fmt.Sprintf("img/%d.jpg", i), Score: 50})
	}
	images := &fakeImages{results: results}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchImages, Args: map[string]any{"query": "defects"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer without markers."}

	o := newOrchestrator(decision, streamer, &fakeRetriever{}, images)
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	done := events[len(events)-1]
	assert.Len(t, done.Images, markerFallback)
	assert.Equal(t, "img/0.jpg", done.Images[0].Path)
}

func TestRunTurnDeduplicatesAndCapsSources(t *testing.T) {
	// Every retrieval returns the same 5 labels; repeated tool calls must
	// not duplicate them.
	var passages []entity.RetrievedPassage
	for i := 0; i < 5; i++ {
		passages = append(passages, passage("R1", i+1))
	}
	retriever := &fakeRetriever{passages: passages}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{
			{Name: ToolSearchReports, Args: map[string]any{"query": "a"}},
			{Name: ToolCheckStandard, Args: map[string]any{"defect_type": "corrosion"}},
		}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer."}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	done := events[len(events)-1]
	assert.Len(t, done.Sources, 5)
	assert.Equal(t, "R1 s.1", done.Sources[0])
}

func TestRunTurnStreamFailureEmitsErrorToken(t *testing.T) {
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{passage("R1", 1)}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchReports, Args: map[string]any{"query": "q"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{streamErr: errors.New("model overloaded")}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "q", nil, true))

	tokens := eventsOfType(events, EventToken)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Error: model overloaded", tokens[0].Content)
}

func TestRunTurnCancellationStopsEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision := &fakeDecision{}
	streamer := &fakeStreamer{answer: "Answer."}
	o := newOrchestrator(decision, streamer, &fakeRetriever{}, &fakeImages{})

	ch := o.RunTurn(ctx, "q", nil, true)
	var count int
	for range ch {
		count++
	}
	assert.LessOrEqual(t, count, 1, "cancelled turn stops without a done event")
}

func TestRunTurnCheckStandardContributesSources(t *testing.T) {
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{passage("DNV-RP-F116", 33)}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolCheckStandard, Args: map[string]any{"defect_type": "external corrosion"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Per the standard..."}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), "acceptance criteria?", nil, true))

	// Default standard lands in the retrieval query.
	require.Len(t, retriever.queries, 1)
	assert.Equal(t, "external corrosion acceptance criteria DNV-RP-F116 recommended action", retriever.queries[0])

	done := events[len(events)-1]
	assert.Equal(t, []string{"DNV-RP-F116 s.33"}, done.Sources)
}

func TestFilterFollowUps(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "clean lines pass",
			raw:  "What caused the corrosion at KP 12?\nWhich standard governs coating repair?\nWhen is the next inspection due?",
			want: []string{
				"What caused the corrosion at KP 12?",
				"Which standard governs coating repair?",
				"When is the next inspection due?",
			},
		},
		{
			name: "numbering is stripped",
			raw:  "1. What is the wall thickness?\n2) What anomalies were found?",
			want: []string{"What is the wall thickness?", "What anomalies were found?"},
		},
		{
			name: "markdown and second person dropped",
			raw:  "# Follow-ups\n* What about freespans?\n- bullet line?\nWhat should you do next?\nWhat repairs are planned?",
			want: []string{"What repairs are planned?"},
		},
		{
			name: "non-questions dropped",
			raw:  "The pipeline needs repair\nOk?\nWhat is the anode status?",
			want: []string{"What is the anode status?"},
		},
		{
			name: "capped at three",
			raw:  "What is A?\nWhat is B?\nWhat is C?\nWhat is D?",
			want: []string{"What is A?", "What is B?", "What is C?"},
		},
		{
			name: "numbered second person still dropped",
			raw:  "1. What is your plan?\n- Heading\nWhat corrosion rate is typical?\n",
			want: []string{"What corrosion rate is typical?"},
		},
		{
			name: "garbage yields empty",
			raw:  "I cannot suggest follow-ups.",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterFollowUps(tt.raw))
		})
	}
}

func TestCollectSources(t *testing.T) {
	result := "Sources: R1 s.1, R2 s.4\n\n[R1 s.1]\ncontent"
	assert.Equal(t, []string{"R1 s.1", "R2 s.4"}, collectSources(ToolSearchReports, result))
	assert.Equal(t, []string{"R1 s.1", "R2 s.4"}, collectSources(ToolCheckStandard, result))
	assert.Nil(t, collectSources(ToolSearchImages, result))
	assert.Nil(t, collectSources(ToolSearchReports, "No relevant report sections found."))
}

func TestHistoryWindowKeepsLastTen(t *testing.T) {
	var history []entity.ConversationTurn
	for i := 0; i < 14; i++ {
		history = append(history, entity.ConversationTurn{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	messages := historyMessages(history)
	require.Len(t, messages, historyWindow)
	assert.Equal(t, "m4", messages[0].Content)
	assert.Equal(t, "m13", messages[len(messages)-1].Content)
}

func TestNoImagesRestrictionAppended(t *testing.T) {
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchReports, Args: map[string]any{"query": "q"}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{answer: "Answer."}
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{passage("R1", 1)}}
	images := &fakeImages{results: []entity.ImageResult{{Path: "a.jpg"}}}

	o := newOrchestrator(decision, streamer, retriever, images)
	events := drain(t, o.RunTurn(context.Background(), "q", nil, false))

	done := events[len(events)-1]
	assert.Empty(t, done.Images, "image candidates disabled")
	assert.Empty(t, images.queries)
}

func TestRunTurnAcceptanceCriterionScenario(t *testing.T) {
	question := "What is the acceptance criterion for external corrosion under DNV-RP-F116?"
	retriever := &fakeRetriever{passages: []entity.RetrievedPassage{
		passage("DNV-RP-F116", 41),
		passage("PL-2023-044", 12),
	}}
	decision := &fakeDecision{script: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{Name: ToolSearchReports, Args: map[string]any{"query": question}}}},
		{Text: "done"},
	}}
	streamer := &fakeStreamer{
		answer:    "Per DNV-RP-F116 s.41, external corrosion is acceptable below 10% wall loss.",
		followups: "What inspection interval applies?\nWhich repair methods are recommended?",
	}

	o := newOrchestrator(decision, streamer, retriever, &fakeImages{})
	events := drain(t, o.RunTurn(context.Background(), question, nil, true))

	done := events[len(events)-1]
	require.NotEmpty(t, done.Sources)
	assert.Contains(t, done.Sources, "DNV-RP-F116 s.41")
	assert.NotEmpty(t, done.Content)
	assert.NotContains(t, done.Content, "I need to search")

	var streamed strings.Builder
	for _, ev := range eventsOfType(events, EventToken) {
		streamed.WriteString(ev.Content)
	}
	assert.Equal(t, streamer.answer, streamed.String())
	assert.Equal(t, []string{
		"What inspection interval applies?",
		"Which repair methods are recommended?",
	}, done.Related)
}
