package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"subsea-agent-be/internal/agent"
	"subsea-agent-be/internal/dto"
	"subsea-agent-be/internal/entity"
	"subsea-agent-be/internal/imageindex"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/memory"
	"subsea-agent-be/internal/repository/unitofwork"
	"subsea-agent-be/internal/retrieval"
	"subsea-agent-be/internal/semcache"
	"subsea-agent-be/pkg/events"
	"subsea-agent-be/pkg/llm"
	pkgNats "subsea-agent-be/pkg/nats"

	"github.com/google/uuid"
)

const (
	// previewLen truncates tool results on the wire; the model still sees
	// the full text.
	previewLen = 150
	// fallbackSourceCap bounds the sources reported by the non-agent path.
	fallbackSourceCap = 5
	fallbackImageK    = 8
)

type IChatService interface {
	// StreamChat runs one chat turn and pushes every stream event through
	// emit. An emit error aborts the turn (client disconnected).
	StreamChat(ctx context.Context, req *dto.ChatStreamRequest, emit func(dto.StreamEventDTO) error) error
	SearchImages(ctx context.Context, req *dto.SearchImagesRequest) (*dto.SearchImagesResponse, error)
	SubmitFeedback(ctx context.Context, req *dto.FeedbackRequest) error
	ClearSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	historyRepo    *memory.HistoryRepository
	cache          *semcache.Cache     // nil disables semantic caching
	orchestrator   *agent.Orchestrator // nil disables the agent loop
	retriever      *retrieval.Pipeline
	images         *imageindex.Service
	streamer       agent.StreamingChatProvider
	eventPublisher *pkgNats.Publisher // nil disables telemetry events
	systemPrompt   string
	log            logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	historyRepo *memory.HistoryRepository,
	cache *semcache.Cache,
	orchestrator *agent.Orchestrator,
	retriever *retrieval.Pipeline,
	images *imageindex.Service,
	streamer agent.StreamingChatProvider,
	eventPublisher *pkgNats.Publisher,
	systemPrompt string,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		historyRepo:    historyRepo,
		cache:          cache,
		orchestrator:   orchestrator,
		retriever:      retriever,
		images:         images,
		streamer:       streamer,
		eventPublisher: eventPublisher,
		systemPrompt:   systemPrompt,
		log:            log,
	}
}

// turnOutcome is what a completed turn leaves behind for bookkeeping.
// partial marks a turn cut short by a client disconnect; its answer is
// logged but never cached.
type turnOutcome struct {
	answer  string
	sources []string
	cached  bool
	partial bool
}

func (cs *chatService) StreamChat(ctx context.Context, req *dto.ChatStreamRequest, emit func(dto.StreamEventDTO) error) error {
	started := time.Now()
	sessionID := req.Session()
	question := strings.TrimSpace(req.Question)

	history := cs.loadHistory(ctx, sessionID)

	// A disconnect mid-stream still returns a partial outcome; what
	// already streamed gets recorded before the error propagates.
	outcome, err := cs.runTurn(ctx, sessionID, question, history, req.ImagesEnabled(), emit)
	if outcome != nil {
		elapsed := int(time.Since(started).Milliseconds())
		cs.finishTurn(ctx, sessionID, question, outcome, elapsed)
	}
	return err
}

func (cs *chatService) runTurn(ctx context.Context, sessionID, question string, history []entity.ConversationTurn, useImages bool, emit func(dto.StreamEventDTO) error) (*turnOutcome, error) {
	if cs.cache != nil {
		cached, err := cs.cache.Get(ctx, question)
		if err != nil {
			cs.log.Warn("chat", "cache lookup failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else if cached != nil {
			if err := emit(dto.StreamEventDTO{Type: "token", Content: cached.Answer}); err != nil {
				return nil, err
			}
			if err := emit(dto.StreamEventDTO{
				Type:    "done",
				Sources: emptyIfNil(cached.Sources),
				Images:  []dto.ImageResultDTO{},
				Related: []string{},
			}); err != nil {
				return nil, err
			}
			return &turnOutcome{answer: cached.Answer, sources: cached.Sources, cached: true}, nil
		}
	}

	if cs.orchestrator != nil {
		return cs.runAgentTurn(ctx, question, history, useImages, emit)
	}
	return cs.runPipelineTurn(ctx, question, history, useImages, emit)
}

// runAgentTurn relays orchestrator events onto the wire.
func (cs *chatService) runAgentTurn(ctx context.Context, question string, history []entity.ConversationTurn, useImages bool, emit func(dto.StreamEventDTO) error) (*turnOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcome := &turnOutcome{}
	var partial strings.Builder
	for ev := range cs.orchestrator.RunTurn(ctx, question, history, useImages) {
		wire := dto.StreamEventDTO{Type: string(ev.Type)}
		switch ev.Type {
		case agent.EventThinking, agent.EventToken, agent.EventError:
			wire.Content = ev.Content
		case agent.EventToolCall:
			wire.Name = ev.Name
			wire.Input = ev.Input
		case agent.EventToolResult:
			wire.Name = ev.Name
			wire.Preview = truncate(ev.Content, previewLen)
		case agent.EventDone:
			outcome.answer = ev.Content
			outcome.sources = ev.Sources
			wire.Sources = emptyIfNil(ev.Sources)
			wire.Images = mapImages(ev.Images)
			wire.Related = emptyIfNil(ev.Related)
		}
		if err := emit(wire); err != nil {
			// Client is gone; cancelling stops the producer goroutine.
			cancel()
			if partial.Len() == 0 {
				return nil, err
			}
			return &turnOutcome{answer: partial.String(), partial: true}, err
		}
		if ev.Type == agent.EventToken {
			partial.WriteString(ev.Content)
		}
	}
	return outcome, nil
}

// runPipelineTurn is the plain retrieve-then-answer path used when the
// agent loop is disabled.
func (cs *chatService) runPipelineTurn(ctx context.Context, question string, history []entity.ConversationTurn, useImages bool, emit func(dto.StreamEventDTO) error) (*turnOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := emit(dto.StreamEventDTO{Type: "thinking", Content: "Searching reports..."}); err != nil {
		return nil, err
	}

	passages, err := cs.retriever.Retrieve(ctx, question, retrieval.TopK, true)
	if err != nil {
		cs.log.Error("chat", "retrieval failed", map[string]interface{}{"error": err.Error()})
		passages = nil
	}
	sources := make([]string, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, p.SourceLabel)
	}
	if len(sources) > fallbackSourceCap {
		sources = sources[:fallbackSourceCap]
	}

	var imgs []entity.ImageResult
	if useImages {
		imgs, err = cs.images.Search(ctx, question, fallbackImageK)
		if err != nil {
			cs.log.Warn("chat", "image search failed", map[string]interface{}{"error": err.Error()})
			imgs = nil
		}
	}

	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: buildPipelinePrompt(question, passages, imgs)})

	// The first failed emit means the client is gone; cancelling the
	// context stops the provider stream instead of consuming it to the
	// end for a dead connection.
	var emitErr error
	var partial strings.Builder
	answer, err := cs.streamer.Stream(ctx, messages, func(token string) {
		if emitErr != nil {
			return
		}
		if eerr := emit(dto.StreamEventDTO{Type: "token", Content: token}); eerr != nil {
			emitErr = eerr
			cancel()
			return
		}
		partial.WriteString(token)
	}, llm.WithSystemPrompt(cs.systemPrompt))
	if emitErr != nil {
		return &turnOutcome{answer: partial.String(), sources: sources, partial: true}, emitErr
	}
	if err != nil {
		cs.log.Error("chat", "stream failed", map[string]interface{}{"error": err.Error()})
		answer = fmt.Sprintf("Error: %s", err.Error())
		if eerr := emit(dto.StreamEventDTO{Type: "token", Content: answer}); eerr != nil {
			return nil, eerr
		}
	}

	if err := emit(dto.StreamEventDTO{
		Type:    "done",
		Sources: emptyIfNil(sources),
		Images:  mapImages(imgs),
		Related: []string{},
	}); err != nil {
		return nil, err
	}
	return &turnOutcome{answer: answer, sources: sources}, nil
}

// buildPipelinePrompt assembles the single-shot prompt of the non-agent
// path: report context, optional image hits, then the question.
func buildPipelinePrompt(question string, passages []entity.RetrievedPassage, imgs []entity.ImageResult) string {
	parts := []string{
		"Context from reports:\n" + retrieval.BuildContextBlock(passages),
	}
	if len(imgs) > 0 {
		lines := make([]string, len(imgs))
		for i, img := range imgs {
			lines[i] = fmt.Sprintf("%d. [%d%%] %s - path: %s", i+1, int(img.Score), img.Label, img.Path)
		}
		parts = append(parts, "Relevant images found:\n"+strings.Join(lines, "\n"))
	}
	parts = append(parts, "question: "+question)
	return strings.Join(parts, "\n\n---\n\n")
}

// finishTurn records the completed turn: history, durable session turns,
// cache entry, interaction log and the telemetry event. Nothing here can
// fail the request; the answer already streamed.
func (cs *chatService) finishTurn(ctx context.Context, sessionID, question string, outcome *turnOutcome, elapsedMs int) {
	if outcome.answer == "" {
		return
	}

	cs.historyRepo.Append(sessionID,
		entity.ConversationTurn{Role: "user", Content: question},
		entity.ConversationTurn{Role: "assistant", Content: outcome.answer},
	)

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	now := time.Now()
	for _, turn := range []entity.SessionTurn{
		{Id: uuid.New(), SessionId: sessionID, Role: "user", Content: question, CreatedAt: now},
		{Id: uuid.New(), SessionId: sessionID, Role: "assistant", Content: outcome.answer, CreatedAt: now},
	} {
		turn := turn
		if err := uow.SessionTurnRepository().Create(ctx, &turn); err != nil {
			cs.log.Warn("chat", "persist session turn failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if cs.cache != nil && !outcome.cached && !outcome.partial && !strings.HasPrefix(outcome.answer, "Error:") {
		sources := outcome.sources
		if len(sources) > fallbackSourceCap {
			sources = sources[:fallbackSourceCap]
		}
		if err := cs.cache.Put(ctx, question, outcome.answer, sources); err != nil {
			cs.log.Warn("chat", "cache store failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := uow.InteractionLogRepository().Create(ctx, &entity.InteractionLog{
		Id:             uuid.New(),
		SessionId:      sessionID,
		Question:       question,
		Answer:         outcome.answer,
		Sources:        outcome.sources,
		Cached:         outcome.cached,
		ResponseTimeMs: elapsedMs,
		CreatedAt:      now,
	}); err != nil {
		cs.log.Warn("chat", "interaction log failed", map[string]interface{}{"error": err.Error()})
	}

	cs.publish(ctx, events.NewChatTurnCompleted(sessionID, question, outcome.cached, elapsedMs, len(outcome.sources)))
}

func (cs *chatService) SearchImages(ctx context.Context, req *dto.SearchImagesRequest) (*dto.SearchImagesResponse, error) {
	k := req.K
	if k <= 0 {
		k = fallbackImageK
	}
	results, err := cs.images.Search(ctx, req.Query, k)
	if err != nil {
		return nil, err
	}
	return &dto.SearchImagesResponse{Images: mapImages(results)}, nil
}

func (cs *chatService) SubmitFeedback(ctx context.Context, req *dto.FeedbackRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	sessionID := req.SessionId
	if sessionID == "" {
		sessionID = "default"
	}

	if err := uow.FeedbackRepository().Create(ctx, &entity.Feedback{
		Id:        uuid.New(),
		SessionId: sessionID,
		Question:  req.Question,
		Answer:    req.Answer,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}); err != nil {
		return err
	}

	cs.publish(ctx, events.NewFeedbackReceived(sessionID, req.Question, req.Rating))
	return nil
}

func (cs *chatService) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = "default"
	}
	cs.historyRepo.Clear(sessionID)

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	return uow.SessionTurnRepository().DeleteBySession(ctx, sessionID)
}

// loadHistory prefers the in-memory window and falls back to the durable
// copy after a restart.
func (cs *chatService) loadHistory(ctx context.Context, sessionID string) []entity.ConversationTurn {
	if history := cs.historyRepo.Get(sessionID); len(history) > 0 {
		return history
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	stored, err := uow.SessionTurnRepository().FindRecentBySession(ctx, sessionID, memory.MaxTurns)
	if err != nil || len(stored) == 0 {
		return nil
	}

	turns := make([]entity.ConversationTurn, len(stored))
	for i, s := range stored {
		turns[i] = entity.ConversationTurn{Role: s.Role, Content: s.Content}
	}
	cs.historyRepo.Replace(sessionID, turns)
	return turns
}

func (cs *chatService) publish(ctx context.Context, event events.Event) {
	if cs.eventPublisher == nil {
		return
	}
	if err := cs.eventPublisher.Publish(ctx, event); err != nil {
		cs.log.Warn("chat", "event publish failed", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}

func mapImages(in []entity.ImageResult) []dto.ImageResultDTO {
	out := make([]dto.ImageResultDTO, len(in))
	for i, img := range in {
		out[i] = dto.ImageResultDTO{
			Path:     img.Path,
			Label:    img.Label,
			Score:    int(math.Round(img.Score)),
			RawScore: img.RawScore,
			Width:    img.Width,
			Height:   img.Height,
		}
	}
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func emptyIfNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
