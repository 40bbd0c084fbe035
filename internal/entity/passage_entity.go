package entity

// RetrievedPassage is what the retrieval pipeline hands to the agent and
// the API. Content is already truncated for display; internal fields like
// the full chunk text and rerank score never leave the pipeline.
type RetrievedPassage struct {
	Report      string
	Page        int
	Content     string
	SourceLabel string
	Score       float64
}
