package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/pkg/llm"
)

const (
	maxIterations    = 3
	historyWindow    = 10
	maxSources       = 8
	maxImages        = 16
	markerFallback   = 4
	resultPreviewLen = 200

	decisionMaxTokens  = 2048
	streamingMaxTokens = 1024
	followupMaxTokens  = 256

	defaultCallTimeout = 90 * time.Second
)

// agentBehavior is appended to the domain system prompt. It governs how
// the decision model chains tools and references images.
const agentBehavior = `

You have access to tools for searching inspection reports, searching inspection images, classifying defects in images, and checking industry standards.

TOOL CHAINING: For complex questions, chain tools. Example: search_images to find a defect photo, classify_defect on the best match, then check_standard for the acceptance criteria. Always search reports before answering factual questions about inspections.

IMAGE SELECTION: When you reference images, embed [IMAGE: path] tags using the exact paths returned by search_images. Only reference images you actually retrieved.

Answer in 200-300 words using markdown formatting. Cite report sources inline where relevant.`

const noImagesRestriction = "\n\nIMPORTANT: Do NOT call search_images or classify_defect. Answer using reports and standards only. Do not reference image file names or paths."

const synthesisInstruction = "Based on the tool results above, provide a comprehensive answer. If exact data isn't available, state what IS available and what further inspection is needed. Never say 'I need to search' as you already searched."

const forcedResultTemplate = "Here are relevant report sections:\n\n%s\n\nNow answer the original question based on this information."

// StreamingChatProvider is the answer model surface: token streaming for
// the final synthesis plus plain chat for follow-up generation.
type StreamingChatProvider interface {
	llm.StreamingProvider
	Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error)
}

// Orchestrator drives the multi-step tool loop for one chat turn and
// reports progress as a stream of events.
type Orchestrator struct {
	decision    llm.ToolCallingProvider
	streamer    StreamingChatProvider
	registry    *Registry
	images      ImageSearcher
	prompt      string
	log         logger.ILogger
	callTimeout time.Duration
}

func NewOrchestrator(decision llm.ToolCallingProvider, streamer StreamingChatProvider, registry *Registry, images ImageSearcher, prompt string, log logger.ILogger) *Orchestrator {
	return &Orchestrator{
		decision:    decision,
		streamer:    streamer,
		registry:    registry,
		images:      images,
		prompt:      prompt,
		log:         log,
		callTimeout: defaultCallTimeout,
	}
}

var (
	imageMarkerRe   = regexp.MustCompile(`\[IMAGE:\s*([^\]]+)\]`)
	listNumberRe    = regexp.MustCompile(`^\d+[\.\)]\s*`)
	secondPersonRe  = regexp.MustCompile(`(?i)\byou(r|rs)?\b`)
	sourceLinePrefix = "Sources: "
)

// RunTurn executes one agent turn. Events arrive on the returned channel
// in order; a done event is always last and the channel is then closed.
// Cancelling ctx stops the turn; no further events are sent after that.
func (o *Orchestrator) RunTurn(ctx context.Context, question string, history []entity.ConversationTurn, useImages bool) <-chan Event {
	events := make(chan Event, 8)
	go func() {
		defer close(events)
		o.runTurn(ctx, question, history, useImages, events)
	}()
	return events
}

func (o *Orchestrator) runTurn(ctx context.Context, question string, history []entity.ConversationTurn, useImages bool, events chan<- Event) {
	send := func(ev Event) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	systemPrompt := o.prompt + agentBehavior
	if !useImages {
		systemPrompt += noImagesRestriction
	}

	messages := historyMessages(history)
	messages = append(messages, llm.Message{Role: "user", Content: question})

	if !send(Event{Type: EventThinking, Content: "Planning approach..."}) {
		return
	}

	var sources []string
	var imageCandidates []entity.ImageResult

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := o.decide(ctx, messages, systemPrompt)
		if err != nil {
			o.log.Error("agent", "decision call failed", map[string]interface{}{
				"iteration": iteration,
				"error":     err.Error(),
			})
			send(Event{Type: EventError, Content: fmt.Sprintf("Error: %s", err.Error())})
			send(Event{Type: EventDone, Sources: []string{}, Images: []entity.ImageResult{}, Related: []string{}})
			return
		}

		if len(resp.ToolCalls) == 0 {
			if iteration == 0 {
				// The first response must be grounded. Run retrieval
				// ourselves and discard the ungrounded draft.
				forced := llm.ToolCall{Name: ToolSearchReports, Args: map[string]any{"query": question}}
				if !send(Event{Type: EventToolCall, Name: forced.Name, Input: forced.Args}) {
					return
				}
				result := o.execute(ctx, forced)
				sources = append(sources, collectSources(forced.Name, result)...)
				if !send(Event{Type: EventToolResult, Name: forced.Name, Content: preview(result, resultPreviewLen)}) {
					return
				}
				messages = append(messages, llm.Message{
					Role:    "user",
					Content: fmt.Sprintf(forcedResultTemplate, result),
				})
				continue
			}
			// The model is done gathering. Its intermediate text is
			// discarded; the streamed synthesis is the real answer.
			break
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})

		for _, call := range resp.ToolCalls {
			if !send(Event{Type: EventToolCall, Name: call.Name, Input: call.Args}) {
				return
			}

			result := o.execute(ctx, call)
			sources = append(sources, collectSources(call.Name, result)...)

			if call.Name == ToolSearchImages && useImages {
				imageCandidates = append(imageCandidates, o.imageCandidates(ctx, call, question)...)
			}

			if !send(Event{Type: EventToolResult, Name: call.Name, Content: preview(result, resultPreviewLen)}) {
				return
			}
			messages = append(messages, llm.Message{
				Role:       "user",
				ToolResult: &llm.ToolResult{Name: call.Name, Content: result},
			})
		}
	}

	if !send(Event{Type: EventThinking, Content: "Synthesizing answer..."}) {
		return
	}

	messages = append(messages, llm.Message{Role: "user", Content: synthesisInstruction})

	answer, err := o.stream(ctx, messages, systemPrompt, func(token string) {
		send(Event{Type: EventToken, Content: token})
	})
	if err != nil {
		o.log.Error("agent", "synthesis stream failed", map[string]interface{}{"error": err.Error()})
		answer = fmt.Sprintf("Error: %s", err.Error())
		if !send(Event{Type: EventToken, Content: answer}) {
			return
		}
	}

	finalImages := resolveImageMarkers(answer, imageCandidates)

	related := o.followUps(ctx, question, answer)

	send(Event{
		Type:    EventDone,
		Content: answer,
		Sources: capStrings(dedupeStrings(sources), maxSources),
		Images:  capImages(dedupeImages(finalImages), maxImages),
		Related: related,
	})
}

// decide asks the tool-calling model for the next step.
func (o *Orchestrator) decide(ctx context.Context, messages []llm.Message, systemPrompt string) (*llm.ChatResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.decision.ChatWithTools(callCtx, messages, o.registry.Declarations(),
		llm.WithSystemPrompt(systemPrompt),
		llm.WithMaxTokens(decisionMaxTokens),
	)
}

func (o *Orchestrator) stream(ctx context.Context, messages []llm.Message, systemPrompt string, onToken func(string)) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.streamer.Stream(callCtx, messages, onToken,
		llm.WithSystemPrompt(systemPrompt),
		llm.WithMaxTokens(streamingMaxTokens),
	)
}

// execute runs one tool call. Failures become tool output so the loop
// keeps going; the model sees the error text and can adjust.
func (o *Orchestrator) execute(ctx context.Context, call llm.ToolCall) string {
	tool, ok := o.registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", call.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	result, err := tool.Run(callCtx, call.Args)
	if err != nil {
		o.log.Warn("agent", "tool execution failed", map[string]interface{}{
			"tool":  call.Name,
			"error": err.Error(),
		})
		return fmt.Sprintf("Tool error: %s", err.Error())
	}
	return result
}

// imageCandidates re-runs the image search with the model's arguments to
// get structured results for the done event. The tool itself only
// returns text.
func (o *Orchestrator) imageCandidates(ctx context.Context, call llm.ToolCall, question string) []entity.ImageResult {
	query := stringArg(call.Args, "query")
	if query == "" {
		query = question
	}
	k := intArg(call.Args, "num_results", defaultImageResults)

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	results, err := o.images.Search(callCtx, query, k)
	if err != nil {
		o.log.Warn("agent", "image candidate search failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return results
}

// followUps asks the answer model for related questions. Any failure
// returns an empty list; follow-ups are never worth failing a turn over.
func (o *Orchestrator) followUps(ctx context.Context, question, answer string) []string {
	prompt := fmt.Sprintf(`Based on this Q&A about subsea pipeline inspection, suggest exactly 3 short follow-up questions an inspector might ask next.

Question: %s

Answer: %s

Rules: one question per line, no numbering, no bullets, no markdown, never address the reader as you or your, max 10 words each.`, question, answer)

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	raw, err := o.streamer.Chat(callCtx, []llm.Message{{Role: "user", Content: prompt}},
		llm.WithMaxTokens(followupMaxTokens),
	)
	if err != nil {
		o.log.Warn("agent", "follow-up generation failed", map[string]interface{}{"error": err.Error()})
		return []string{}
	}
	return filterFollowUps(raw)
}

// filterFollowUps keeps clean single-line questions from the raw model
// output and drops markdown artifacts and second-person phrasings.
func filterFollowUps(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "-") {
			continue
		}
		line = listNumberRe.ReplaceAllString(line, "")
		if secondPersonRe.MatchString(line) {
			continue
		}
		if len(line) > 5 && strings.HasSuffix(line, "?") {
			out = append(out, line)
		}
		if len(out) == 3 {
			break
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

// collectSources parses the "Sources: " first line that retrieval-backed
// tools prepend to their output.
func collectSources(toolName, result string) []string {
	if toolName != ToolSearchReports && toolName != ToolCheckStandard {
		return nil
	}
	firstLine, _, _ := strings.Cut(result, "\n")
	rest, found := strings.CutPrefix(firstLine, sourceLinePrefix)
	if !found {
		return nil
	}
	var sources []string
	for _, s := range strings.Split(rest, ", ") {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	return sources
}

// resolveImageMarkers maps [IMAGE: path] tags in the answer onto the
// structured candidates. A marker naming an unretrieved path still gets
// a placeholder so the client can try to render it. Without markers the
// leading candidates are used.
func resolveImageMarkers(answer string, candidates []entity.ImageResult) []entity.ImageResult {
	matches := imageMarkerRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		if len(candidates) > markerFallback {
			return candidates[:markerFallback]
		}
		return candidates
	}

	byPath := make(map[string]entity.ImageResult, len(candidates))
	for _, c := range candidates {
		byPath[c.Path] = c
	}

	var resolved []entity.ImageResult
	for _, m := range matches {
		path := strings.TrimSpace(m[1])
		if img, ok := byPath[path]; ok {
			resolved = append(resolved, img)
		} else {
			resolved = append(resolved, entity.ImageResult{Path: path, Label: "Agent selected"})
		}
	}
	return resolved
}

func historyMessages(history []entity.ConversationTurn) []llm.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	messages := make([]llm.Message, 0, len(history)+4)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func dedupeImages(in []entity.ImageResult) []entity.ImageResult {
	seen := make(map[string]struct{}, len(in))
	out := make([]entity.ImageResult, 0, len(in))
	for _, img := range in {
		if _, ok := seen[img.Path]; ok {
			continue
		}
		seen[img.Path] = struct{}{}
		out = append(out, img)
	}
	return out
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}

func capImages(in []entity.ImageResult, n int) []entity.ImageResult {
	if len(in) > n {
		return in[:n]
	}
	return in
}
