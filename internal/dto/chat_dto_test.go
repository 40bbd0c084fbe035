package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEventWireShape(t *testing.T) {
	tests := []struct {
		name  string
		event StreamEventDTO
		want  string
	}{
		{
			name: "done keeps empty collections",
			event: StreamEventDTO{
				Type:    "done",
				Sources: []string{},
				Images:  []ImageResultDTO{},
				Related: []string{},
			},
			want: `{"type":"done","sources":[],"images":[],"related":[]}`,
		},
		{
			name: "done carries gathered data",
			event: StreamEventDTO{
				Type:    "done",
				Sources: []string{"PL-2023-044 s.12"},
				Images:  []ImageResultDTO{},
				Related: []string{"What repairs are planned?"},
			},
			want: `{"type":"done","sources":["PL-2023-044 s.12"],"images":[],"related":["What repairs are planned?"]}`,
		},
		{
			name:  "token omits the collections",
			event: StreamEventDTO{Type: "token", Content: "corrosion"},
			want:  `{"type":"token","content":"corrosion"}`,
		},
		{
			name:  "tool result omits the collections",
			event: StreamEventDTO{Type: "tool_result", Name: "search_reports", Preview: "Sources: ..."},
			want:  `{"type":"tool_result","name":"search_reports","preview":"Sources: ..."}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(payload))
		})
	}
}
