package bootstrap

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"subsea-agent-be/internal/agent"
	"subsea-agent-be/internal/config"
	"subsea-agent-be/internal/controller"
	"subsea-agent-be/internal/imageindex"
	"subsea-agent-be/internal/pkg/logger"
	"subsea-agent-be/internal/repository/memory"
	"subsea-agent-be/internal/repository/unitofwork"
	"subsea-agent-be/internal/retrieval"
	"subsea-agent-be/internal/semcache"
	"subsea-agent-be/internal/service"
	"subsea-agent-be/internal/websocket"
	"subsea-agent-be/pkg/embedding"
	"subsea-agent-be/pkg/embedding/jina"
	"subsea-agent-be/pkg/llm/factory"
	pkgNats "subsea-agent-be/pkg/nats"
	"subsea-agent-be/pkg/pdfextract"
	"subsea-agent-be/pkg/rerank"
	"subsea-agent-be/pkg/vision"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds every wired component the server needs. Construction
// is explicit so the dependency graph is visible in one place.
type Container struct {
	Logger logger.ILogger

	// Controllers
	ChatController   controller.IChatController
	UploadController controller.IUploadController
	AuthController   controller.IAuthController
	AdminController  controller.IAdminController
	HealthController controller.IHealthController

	// WebSocket
	ChatWsHandler *websocket.ChatHandler

	// Background services (main.go starts these)
	IngestService service.IIngestService

	// Shared infrastructure main.go shuts down
	NatsPublisher *pkgNats.Publisher

	// Exposed for the ingest CLI
	ImageIndex *imageindex.Service
	ChunkStore unitofwork.RepositoryFactory
	Embedder   embedding.EmbeddingProvider
	Extractor  *pdfextract.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	uowFactory := unitofwork.NewRepositoryFactory(db)

	// Event bus for report ingestion
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	// Embedding provider. One instance feeds the cache, the retrieval
	// pipeline and ingestion so they share a vector space.
	var embeddingProvider embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbeddingModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbeddingModel)
	case "jina":
		embeddingProvider = jina.NewJinaProvider(cfg.Keys.Jina)
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
	default:
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, "")
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}
	cachedEmbedder := embedding.NewCachedProvider(embeddingProvider, 512, time.Hour)

	// LLM provider, used as both the decision model and the streamer.
	llmProvider, err := factory.NewLLMProvider(
		context.Background(),
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	streamer, ok := llmProvider.(agent.StreamingChatProvider)
	if !ok {
		log.Fatalf("[FATAL] LLM Provider %s does not support streaming", cfg.Ai.LLMProvider)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// NATS telemetry publisher, optional
	natsPub, err := pkgNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// Redis backs the semantic cache across restarts, optional
	var rdb *redis.Client
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb = redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// Semantic response cache
	var cache *semcache.Cache
	if cfg.Agent.CacheEnabled {
		cache = semcache.New(cachedEmbedder, rdb, sysLogger)
		cache.Restore(context.Background())
	}

	// Retrieval pipeline with optional rerank stage
	var reranker retrieval.Reranker
	if cfg.Ai.RerankEnabled && cfg.Keys.Jina != "" {
		reranker = rerank.NewClient(cfg.Keys.Jina, cfg.Ai.RerankBaseURL, cfg.Ai.RerankModel)
	}
	retriever := retrieval.NewPipeline(
		uowFactory.NewUnitOfWork(context.Background()).ReportChunkRepository(),
		cachedEmbedder,
		reranker,
		sysLogger,
	)

	// Visual index over the CLIP sidecar
	clipClient := vision.NewClient(cfg.Vision.ClipBaseURL, cfg.Vision.ClassifierURL)
	imageIndex := imageindex.NewService(clipClient, cfg.Vision.ImagesDir, cfg.Vision.IndexPath, sysLogger)
	if err := imageIndex.Load(context.Background()); err != nil {
		log.Printf("[WARN] Image index unavailable: %v", err)
	}

	// Agent loop
	systemPrompt := loadSystemPrompt(cfg.Agent.PromptFilePath)
	var orchestrator *agent.Orchestrator
	if cfg.Agent.Enabled {
		// Tool traces go to their own file so the main log stays readable.
		agentLogger := logger.NewIsolatedLogger("logs/agent.log")
		registry := agent.NewDefaultRegistry(retriever, imageIndex)
		orchestrator = agent.NewOrchestrator(llmProvider, streamer, registry, imageIndex, systemPrompt, agentLogger)
	}

	historyRepo := memory.NewHistoryRepository()
	extractor := pdfextract.NewClient(cfg.Ingest.TikaBaseURL)

	chatService := service.NewChatService(
		uowFactory,
		historyRepo,
		cache,
		orchestrator,
		retriever,
		imageIndex,
		streamer,
		natsPub,
		systemPrompt,
		sysLogger,
	)
	ingestService := service.NewIngestService(
		pubSub,
		cfg.Ingest.TopicName,
		uowFactory,
		extractor,
		cachedEmbedder,
		natsPub,
		sysLogger,
	)
	visionService := service.NewVisionService(imageIndex)
	adminService := service.NewAdminService(uowFactory, cache, imageIndex, sysLogger)
	authService := service.NewAuthService(cfg.Auth)

	return &Container{
		Logger: sysLogger,

		ChatController:   controller.NewChatController(chatService, sysLogger),
		UploadController: controller.NewUploadController(ingestService, visionService, cfg.Ingest.ReportsDir),
		AuthController:   controller.NewAuthController(authService),
		AdminController:  controller.NewAdminController(adminService),
		HealthController: controller.NewHealthController(),

		ChatWsHandler: websocket.NewChatHandler(chatService, sysLogger),

		IngestService: ingestService,
		NatsPublisher: natsPub,

		ImageIndex: imageIndex,
		ChunkStore: uowFactory,
		Embedder:   cachedEmbedder,
		Extractor:  extractor,
	}
}

// loadSystemPrompt reads the domain prompt. Config validates its
// existence at startup; a read failure here still gets a usable default.
func loadSystemPrompt(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARN] Failed to read system prompt: %v", err)
		return "You are a subsea pipeline inspection assistant. Answer questions using the retrieved report context."
	}
	return strings.TrimSpace(string(raw))
}
