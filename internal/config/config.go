package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Agent    AgentConfig
	Vision   VisionConfig
	Ingest   IngestConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	GoogleGemini string
	Jina         string
}

type AIConfig struct {
	EmbeddingProvider    string // "gemini", "ollama" or "jina"
	OllamaBaseURL        string
	OllamaEmbeddingModel string
	LLMProvider          string // "gemini" or "ollama"
	LLMModel             string // e.g. "gemini-2.0-flash", "qwen2.5"
	RerankEnabled        bool
	RerankBaseURL        string
	RerankModel          string
}

type AgentConfig struct {
	Enabled        bool
	CacheEnabled   bool
	PromptFilePath string
}

type VisionConfig struct {
	ClipBaseURL   string
	ClassifierURL string // optional fine-tuned defect classifier
	ImagesDir     string
	IndexPath     string
}

type IngestConfig struct {
	TikaBaseURL string
	ReportsDir  string
	TopicName   string
}

type AuthConfig struct {
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string // bcrypt
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GEMINI_API_KEY", ""),
			Jina:         getEnv("JINA_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:    getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
			LLMProvider:          getEnv("LLM_PROVIDER", "gemini"),
			LLMModel:             getEnv("LLM_MODEL", "gemini-2.0-flash"),
			RerankEnabled:        getEnvAsBool("RERANK_ENABLED", true),
			RerankBaseURL:        getEnv("RERANK_BASE_URL", ""),
			RerankModel:          getEnv("RERANK_MODEL", ""),
		},
		Agent: AgentConfig{
			Enabled:        getEnvAsBool("AGENT_ENABLED", true),
			CacheEnabled:   getEnvAsBool("CACHE_ENABLED", true),
			PromptFilePath: getEnv("PROMPT_FILE_PATH", "prompts/system_prompt.txt"),
		},
		Vision: VisionConfig{
			ClipBaseURL:   getEnv("CLIP_BASE_URL", "http://localhost:8001"),
			ClassifierURL: getEnv("DEFECT_CLASSIFIER_URL", ""),
			ImagesDir:     getEnv("IMAGES_DIR", "data/images"),
			IndexPath:     getEnv("IMAGE_INDEX_PATH", "data/image_index.gob"),
		},
		Ingest: IngestConfig{
			TikaBaseURL: getEnv("TIKA_BASE_URL", "http://localhost:9998"),
			ReportsDir:  getEnv("REPORTS_DIR", "data/reports"),
			TopicName:   getEnv("INGEST_REPORT_TOPIC_NAME", "INGEST_REPORT"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
	}

	// The chat surface cannot run without its model key or its system prompt.
	if cfg.Ai.LLMProvider == "gemini" && cfg.Keys.GoogleGemini == "" {
		log.Fatal("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
	}
	if _, err := os.Stat(cfg.Agent.PromptFilePath); err != nil {
		log.Fatalf("system prompt file not found: %s", cfg.Agent.PromptFilePath)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
