package planner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidyfolder/tidyfolder/internal/models"
	"github.com/tidyfolder/tidyfolder/pkg/home"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("planner")
}

// AutoOrganizePrefix marks instructions that demand full coverage: every
// file must land in some folder, leftovers go to "misc".
const AutoOrganizePrefix = "[AUTO-ORGANIZE]"

// IsAutoOrganize reports whether the instruction runs in auto-organize mode.
func IsAutoOrganize(instruction string) bool {
	return strings.HasPrefix(instruction, AutoOrganizePrefix)
}

// Message is one chat message sent to a planner backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client requests an organization plan from a model backend. The returned
// blob is whatever the model said; decoding and every safety decision
// happen downstream.
type Client interface {
	RequestPlan(ctx context.Context, instruction string, files []models.FileSummary) (models.RawPlan, error)
}

// Error wraps any failure to obtain a plan: network, auth, timeout, or an
// unusable response. Callers treat it as "no plan available" and never
// retry in a loop.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("planner %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewFromConfig builds the planner client the configuration names.
func NewFromConfig(cfg *home.PlannerConfig) (Client, error) {
	switch cfg.Provider {
	case "openai", "":
		apiKey := ""
		if cfg.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		if apiKey == "" {
			return nil, fmt.Errorf("planner API key missing: environment variable %q is not set", cfg.APIKeyEnv)
		}
		return NewOpenAIClient(cfg.BaseURL, apiKey, cfg.Model, cfg.Timeout()), nil
	case "ollama", "local":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Provider)
	}
}
