package agent

import (
	"context"

	"subsea-agent-be/pkg/llm"
)

// Tool is one capability the decision model can invoke. Parameters
// describe the argument schema handed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  []llm.ToolParam
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the tool set in a fixed declaration order.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if _, exists := r.tools[t.Name]; exists {
			continue
		}
		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
	}
	return r
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns the provider-agnostic tool schemas in
// registration order.
func (r *Registry) Declarations() []llm.Tool {
	decls := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, llm.Tool{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return decls
}
