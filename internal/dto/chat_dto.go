package dto

// ChatStreamRequest starts one SSE (or websocket) chat turn.
type ChatStreamRequest struct {
	Question  string `json:"question" validate:"required"`
	SessionId string `json:"session_id"`
	UseImages *bool  `json:"use_images"` // nil means true
}

func (r *ChatStreamRequest) ImagesEnabled() bool {
	return r.UseImages == nil || *r.UseImages
}

func (r *ChatStreamRequest) Session() string {
	if r.SessionId == "" {
		return "default"
	}
	return r.SessionId
}

// StreamEventDTO is the wire shape of one SSE data line. Which fields are
// set depends on Type:
//
//	thinking, token, error -> Content
//	tool_call              -> Name, Input
//	tool_result            -> Name, Preview
//	done                   -> Sources, Images, Related
//
// The done fields use omitzero so a done frame always carries all three
// collections, as empty arrays when nothing was gathered, while the
// other frame types leave them out entirely.
type StreamEventDTO struct {
	Type    string           `json:"type"`
	Content string           `json:"content,omitempty"`
	Name    string           `json:"name,omitempty"`
	Input   map[string]any   `json:"input,omitempty"`
	Preview string           `json:"preview,omitempty"`
	Sources []string         `json:"sources,omitzero"`
	Images  []ImageResultDTO `json:"images,omitzero"`
	Related []string         `json:"related,omitzero"`
}

type ImageResultDTO struct {
	Path     string  `json:"path"`
	Label    string  `json:"label"`
	Score    int     `json:"score"`
	RawScore float64 `json:"raw_score"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type SearchImagesRequest struct {
	Query string `json:"query" validate:"required"`
	K     int    `json:"k" validate:"omitempty,min=1,max=32"`
}

type SearchImagesResponse struct {
	Images []ImageResultDTO `json:"images"`
}

type FeedbackRequest struct {
	SessionId string `json:"session_id"`
	Question  string `json:"question" validate:"required"`
	Answer    string `json:"answer"`
	Rating    int    `json:"rating" validate:"required,oneof=-1 1"`
	Comment   string `json:"comment"`
}

type ClearSessionRequest struct {
	SessionId string `json:"session_id"`
}
