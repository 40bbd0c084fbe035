package factory

import (
	"context"
	"fmt"

	"subsea-agent-be/pkg/llm"
	"subsea-agent-be/pkg/llm/gemini"
	"subsea-agent-be/pkg/llm/ollama"
)

// NewLLMProvider builds the configured chat backend. Both backends
// satisfy ToolCallingProvider and StreamingProvider so the agent loop
// does not care which one it got.
func NewLLMProvider(ctx context.Context, providerType, modelName, baseURL, apiKey string) (llm.ToolCallingProvider, error) {
	switch providerType {
	case "gemini":
		return gemini.NewGeminiProvider(ctx, apiKey, modelName)
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
