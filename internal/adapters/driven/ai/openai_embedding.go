package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

const (
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"

	// The embeddings endpoint rejects larger input arrays
	maxInputsPerRequest = 2048
	maxResponseBytes    = 64 << 20
)

// OpenAIEmbedding talks to any server implementing the OpenAI /embeddings
// protocol (OpenAI, Azure-compatible gateways, vLLM, LocalAI).
type OpenAIEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	// sendDimensions is set when a text-embedding-3 model is asked for shortened vectors
	sendDimensions bool
	client         *http.Client
}

// Native output sizes of the hosted models
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewOpenAIEmbedding validates settings up front. dimensions may be 0 for
// the hosted models; any other model must state its vector size.
func NewOpenAIEmbedding(apiKey, model, baseURL string, dimensions int) (*OpenAIEmbedding, error) {
	if apiKey == "" {
		return nil, errors.New("openai embeddings: api key is required")
	}
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	native, known := openAIModelDimensions[model]
	switch {
	case dimensions <= 0 && !known:
		return nil, fmt.Errorf("openai embeddings: dimensions required for model %s", model)
	case dimensions <= 0:
		dimensions = native
	}

	return &OpenAIEmbedding{
		apiKey:         apiKey,
		model:          model,
		baseURL:        strings.TrimRight(baseURL, "/"),
		dimensions:     dimensions,
		sendDimensions: known && dimensions != native,
		client:         &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
	Error *apiError       `json:"error,omitempty"`
}

// Embed returns one vector per text in input order, splitting large inputs
// across several requests. Every vector must have Dimensions() components.
func (e *OpenAIEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxInputsPerRequest {
		end := min(start+maxInputsPerRequest, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedding) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{Input: texts, Model: e.model, EncodingFormat: "float"}
	if e.sendDimensions {
		req.Dimensions = e.dimensions
	}

	resp, err := e.post(ctx, req)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			continue
		}
		if len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: model %s returned %d components, expected %d",
				domain.ErrEmbeddingDimensionMismatch, e.model, len(d.Embedding), e.dimensions)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai embeddings: no vector for input %d", i)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single question
func (e *OpenAIEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedding) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedding) Model() string { return e.model }

// HealthCheck embeds a probe string, which also verifies the vector size
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close drops pooled connections
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// post sends one request. Rate limiting and server-side failures are
// reported as domain.ErrServiceUnavailable; other rejections are returned
// with the provider's message.
func (e *OpenAIEmbedding) post(ctx context.Context, payload embeddingRequest) (*embeddingResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: read response: %v", domain.ErrServiceUnavailable, err)
	}

	var parsed embeddingResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil {
			msg = fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Code)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: openai embeddings: status %d: %s", domain.ErrServiceUnavailable, resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("openai embeddings: status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("openai embeddings: decode response: %w", decodeErr)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("openai embeddings: %s (%s)", parsed.Error.Message, parsed.Error.Code)
	}
	return &parsed, nil
}
