package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient plans against a local Ollama daemon. No auth; the daemon is
// assumed to be loopback-only.
type OllamaClient struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOllamaClient creates a planner client for a local Ollama instance.
// baseURL may be empty for the default daemon address.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []Message          `json:"messages"`
	Stream   bool               `json:"stream"`
	Format   string             `json:"format,omitempty"`
	Options  *ollamaChatOptions `json:"options,omitempty"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Error   string  `json:"error,omitempty"`
}

// IsRunning probes the daemon with a short deadline so startup checks do
// not hang when Ollama is not installed.
func (c *OllamaClient) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// RequestPlan sends the instruction and file summaries to the local model.
// format=json constrains the output, but the decoder still treats the
// result as untrusted.
func (c *OllamaClient) RequestPlan(ctx context.Context, instruction string, files []models.FileSummary) (models.RawPlan, error) {
	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: BuildMessages(instruction, files),
		Stream:   false,
		Format:   "json",
		Options:  &ollamaChatOptions{Temperature: planTemperature},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	log.WithField("model", c.model).Debug("Requesting organization plan from Ollama")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if chat.Error != "" {
		return "", &Error{Provider: "ollama", Err: fmt.Errorf("api error: %s", chat.Error)}
	}

	content := chat.Message.Content
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("response", truncate(content, 300)).Trace("Planner response received")
	}
	return models.RawPlan(content), nil
}
