// Package llm provides clients for the text-generation and embedding
// endpoints the planner depends on.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/errors"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
)

// GenerateRequest describes a single non-streaming completion call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OllamaClient talks to an Ollama-compatible HTTP API. It implements both
// Generator and Embedder against the same server.
type OllamaClient struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logger.Logger
}

// NewOllamaClient creates a client from LLM config.
func NewOllamaClient(cfg config.LLMConfig, log *logger.Logger) *OllamaClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}

	return &OllamaClient{
		baseURL:    cfg.BaseURL,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends a prompt and returns the raw completion text.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}

	var resp generateResponse
	if err := c.post(ctx, "/api/generate", body, &resp); err != nil {
		return "", err
	}

	if resp.Response == "" {
		return "", errors.ModelError(fmt.Sprintf("model %s returned empty completion", req.Model), nil)
	}

	return resp.Response, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates a dense embedding for text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp embedResponse
	if err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embedModel, Prompt: text}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding) == 0 {
		return nil, errors.ModelError("embedding endpoint returned empty vector", nil)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

func (c *OllamaClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.InternalError("marshaling request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errors.InternalError("creating request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Do not reclassify caller cancellation as a model failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.ModelError("model endpoint unreachable", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return errors.ModelError(
			fmt.Sprintf("model endpoint returned %d: %s", httpResp.StatusCode, string(msg)), nil)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return errors.ModelError("decoding model response", err)
	}

	c.log.Debug("model call completed", "path", path, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
