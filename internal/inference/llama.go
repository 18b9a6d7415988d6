package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultModel is the summarization model served by the local
	// inference server.
	DefaultModel = "distilbart-cnn-12-6"

	// DefaultServerURL is where the local OpenAI-compatible server
	// listens.
	DefaultServerURL = "http://localhost:8081"

	// summarizerSystemPrompt instructs the model to produce a plain
	// condensed summary and nothing else.
	summarizerSystemPrompt = `You summarize news and social media ` +
		`content. Produce a single concise summary paragraph of the ` +
		`provided material. Do not add commentary, preamble, or ` +
		`formatting beyond plain sentences.`
)

// LlamaConfig configures the local model server engine.
type LlamaConfig struct {
	// ServerURL is the base URL of the OpenAI-compatible server
	// (vLLM, llama-server, or similar) hosting the summarization
	// model.
	ServerURL string

	// Model is the model identifier passed through to the server.
	Model string

	// HTTPTimeout bounds a single completion call at the transport
	// level; callers normally bound it tighter via ctx.
	HTTPTimeout time.Duration
}

// DefaultLlamaConfig returns a LlamaConfig with standard settings.
func DefaultLlamaConfig() LlamaConfig {
	return LlamaConfig{
		ServerURL:   DefaultServerURL,
		Model:       DefaultModel,
		HTTPTimeout: 120 * time.Second,
	}
}

// LlamaEngine talks to a local OpenAI-compatible inference server. The
// model behind it is memory heavy and slow to start, which is why the
// Manager gates access and defers initialization to first use.
type LlamaEngine struct {
	cfg    LlamaConfig
	client *http.Client
	log    *slog.Logger

	// lastRun holds per-run buffers (request/response payloads)
	// dropped by Reclaim.
	lastRun []byte
}

// NewLlamaEngine creates an engine for the given server.
func NewLlamaEngine(cfg LlamaConfig, log *slog.Logger) *LlamaEngine {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &LlamaEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		log:    log.With("component", "llama-engine"),
	}
}

// Warm verifies the model server is reachable and the model loaded.
func (e *LlamaEngine) Warm(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, e.cfg.ServerURL+"/health", nil,
	)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server not ready: status %d",
			resp.StatusCode)
	}

	e.log.Info("Model server ready",
		"url", e.cfg.ServerURL, "model", e.cfg.Model,
	)

	return nil
}

// chatRequest is the OpenAI chat completions request shape.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the completions response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Summarize posts one chat completion call to the model server.
func (e *LlamaEngine) Summarize(ctx context.Context, req Request) (string,
	error) {

	payload := chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summarizerSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Summarize the following in at most %d "+
					"words:\n\n%s",
				req.MaxLength, req.Content,
			)},
		},
		// Roughly 1.5 tokens per word of requested output.
		MaxTokens:   req.MaxLength * 3 / 2,
		Temperature: 0.2,
	}

	reqJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	e.lastRun = reqJSON

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		e.cfg.ServerURL+"/v1/chat/completions",
		bytes.NewReader(reqJSON),
	)
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model server returned status %d: %s",
			resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	summary := strings.TrimSpace(parsed.Choices[0].Message.Content)

	e.log.Debug("Summarization complete",
		"duration", time.Since(start),
		"tokens", parsed.Usage.TotalTokens,
		"finish_reason", parsed.Choices[0].FinishReason,
	)

	return summary, nil
}

// Reclaim drops the per-run buffers so the engine sits idle without
// holding onto request payloads between leases.
func (e *LlamaEngine) Reclaim() {
	e.lastRun = nil
}
