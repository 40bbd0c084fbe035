package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrClassifierUnavailable is returned by ClassifyFineTuned when no
// fine-tuned classifier endpoint is configured. Callers fall back to
// zero-shot captions.
var ErrClassifierUnavailable = errors.New("fine-tuned classifier not configured")

// Client talks to the CLIP sidecar service. The sidecar owns the model
// weights; this process only moves vectors around.
type Client struct {
	BaseURL       string
	ClassifierURL string
	httpClient    *http.Client
}

func NewClient(baseURL, classifierURL string) *Client {
	return &Client{
		BaseURL:       baseURL,
		ClassifierURL: classifierURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type embedImageRequest struct {
	ImageB64 string `json:"image_b64"`
}

type embedImageResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedTextRequest struct {
	Texts []string `json:"texts"`
}

type embedTextResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// FineTunedResult is the top prediction of the fine-tuned defect classifier.
type FineTunedResult struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) post(ctx context.Context, url string, payload any, out any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clip service request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip service error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// EmbedImage returns the CLIP embedding of one image. The sidecar
// L2-normalizes before returning.
func (c *Client) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	var res embedImageResponse
	err := c.post(ctx, c.BaseURL+"/embed/image", embedImageRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
	}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding from clip service")
	}
	return res.Embedding, nil
}

// EmbedText returns CLIP text embeddings for a batch of prompts, in input order.
func (c *Client) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var res embedTextResponse
	err := c.post(ctx, c.BaseURL+"/embed/text", embedTextRequest{Texts: texts}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("clip service returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}
	return res.Embeddings, nil
}

// ClassifyFineTuned asks the optional fine-tuned classifier for its top
// label. Configured separately from the CLIP base model.
func (c *Client) ClassifyFineTuned(ctx context.Context, image []byte) (*FineTunedResult, error) {
	if c.ClassifierURL == "" {
		return nil, ErrClassifierUnavailable
	}
	var res FineTunedResult
	err := c.post(ctx, c.ClassifierURL+"/classify", embedImageRequest{
		ImageB64: base64.StdEncoding.EncodeToString(image),
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
