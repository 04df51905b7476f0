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

const (
	defaultOpenAIBaseURL = "https://api.openai.com"

	// Low temperature keeps folder assignments reproducible; 4000 tokens
	// is enough for a full plan over a 300-file summary.
	planTemperature = 0.1
	planMaxTokens   = 4000
)

// OpenAIClient speaks the OpenAI-compatible chat completions API. Any
// backend exposing /v1/chat/completions with bearer auth works, which
// covers OpenAI itself and the usual gateway proxies.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAIClient creates a planner client for an OpenAI-compatible
// endpoint. baseURL may be empty for the public API.
func NewOpenAIClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []Message           `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// RequestPlan sends the instruction and file summaries to the model and
// returns the raw response content. The response_format hint nudges the
// model toward bare JSON, but the decoder still treats the result as an
// untrusted blob.
func (c *OpenAIClient) RequestPlan(ctx context.Context, instruction string, files []models.FileSummary) (models.RawPlan, error) {
	reqBody := chatCompletionRequest{
		Model:          c.model,
		Messages:       BuildMessages(instruction, files),
		Temperature:    planTemperature,
		MaxTokens:      planMaxTokens,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("marshaling request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.WithField("model", c.model).Debug("Requesting organization plan from OpenAI")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if completion.Error != nil {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("api error: %s", completion.Error.Message)}
	}
	if len(completion.Choices) == 0 {
		return "", &Error{Provider: "openai", Err: fmt.Errorf("response contained no choices")}
	}

	content := completion.Choices[0].Message.Content
	if logger.IsLevelEnabled(logrus.TraceLevel) {
		log.WithField("response", truncate(content, 300)).Trace("Planner response received")
	}
	return models.RawPlan(content), nil
}
