package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"subsea-agent-be/pkg/llm"
)

// GeminiProvider backs the agent's decision and synthesis models.
type GeminiProvider struct {
	client    *genai.Client
	ModelName string
}

var _ llm.ToolCallingProvider = &GeminiProvider{}
var _ llm.StreamingProvider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:    client,
		ModelName: modelName,
	}, nil
}

func (g *GeminiProvider) buildConfig(options *llm.Options, tools []llm.Tool) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(options.Temperature)),
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = int32(options.MaxTokens)
	}
	if options.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: options.SystemPrompt}},
		}
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: mapTools(tools),
		}}
	}
	return config
}

func mapTools(tools []llm.Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		properties := make(map[string]*genai.Schema, len(t.Parameters))
		var required []string
		for _, p := range t.Parameters {
			properties[p.Name] = &genai.Schema{
				Type:        mapParamType(p.Type),
				Description: p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
				Required:   required,
			},
		})
	}
	return decls
}

func mapParamType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// mapHistory converts provider-agnostic messages to Gemini contents.
// System messages are folded into the returned system instruction since
// Gemini only accepts user and model roles in the content list.
func mapHistory(history []llm.Message) ([]*genai.Content, string) {
	contents := make([]*genai.Content, 0, len(history))
	var system strings.Builder

	for _, msg := range history {
		switch {
		case msg.Role == "system":
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case msg.ToolResult != nil:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name: msg.ToolResult.Name,
						Response: map[string]any{
							"result": msg.ToolResult.Content,
						},
					},
				}},
			})
		case len(msg.ToolCalls) > 0:
			parts := make([]*genai.Part, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: call.Name,
						Args: call.Args,
					},
				})
			}
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: parts,
			})
		default:
			role := genai.RoleUser
			if msg.Role == "assistant" || msg.Role == "model" {
				role = genai.RoleModel
			}
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return contents, system.String()
}

func (g *GeminiProvider) resolve(opts []llm.Option) (*llm.Options, string) {
	options := &llm.Options{
		Temperature: 0.2,
	}
	for _, opt := range opts {
		opt(options)
	}
	model := g.ModelName
	if options.Model != "" {
		model = options.Model
	}
	return options, model
}

func (g *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options, model := g.resolve(opts)
	contents, system := mapHistory(history)
	if system != "" && options.SystemPrompt == "" {
		options.SystemPrompt = system
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.buildConfig(options, nil))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func (g *GeminiProvider) ChatWithTools(ctx context.Context, history []llm.Message, tools []llm.Tool, opts ...llm.Option) (*llm.ChatResponse, error) {
	options, model := g.resolve(opts)
	contents, system := mapHistory(history)
	if system != "" && options.SystemPrompt == "" {
		options.SystemPrompt = system
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, g.buildConfig(options, tools))
	if err != nil {
		return nil, fmt.Errorf("gemini generate with tools: %w", err)
	}

	out := &llm.ChatResponse{
		Text: strings.TrimSpace(resp.Text()),
	}
	for _, call := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			Name: call.Name,
			Args: call.Args,
		})
	}
	return out, nil
}

func (g *GeminiProvider) Stream(ctx context.Context, history []llm.Message, onToken func(string), opts ...llm.Option) (string, error) {
	options, model := g.resolve(opts)
	contents, system := mapHistory(history)
	if system != "" && options.SystemPrompt == "" {
		options.SystemPrompt = system
	}

	var full strings.Builder
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, model, contents, g.buildConfig(options, nil)) {
		if err != nil {
			return full.String(), fmt.Errorf("gemini stream: %w", err)
		}
		token := chunk.Text()
		if token == "" {
			continue
		}
		full.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
	return full.String(), nil
}
