package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

// New builds a client for the Ollama HTTP API. A nil executor disables
// retries and circuit breaking.
func New(baseURL, model string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// generateJSON asks the model for a JSON-formatted completion and returns the
// raw response text.
func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	const operation = "generate"
	req := generateRequest{Model: c.model, Prompt: prompt, Format: "json"}

	resp, err := resilience.Call(ctx, c.executor, "ollama_"+operation, func(attemptCtx context.Context) (generateResponse, error) {
		return postJSON[generateResponse](attemptCtx, c, operation, "/api/generate", req)
	}, classifyOllamaError)
	if err != nil {
		return "", resilience.AsTemporary("ollama "+operation, err, classifyOllamaError)
	}
	return strings.TrimSpace(resp.Response), nil
}
