package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/config"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOffline   = "offline"
)

var (
	ErrEmptyResponse = errors.New("empty completion response")
	ErrOffline       = errors.New("language model is disabled")
)

type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer turns a prompt into text. The text carries no structural
// guarantee: it may be prose, truncated JSON or JSON wrapped in markdown.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// NewCompleter builds the configured provider wrapped with retries
func NewCompleter(cfg *config.LLMConfig, logger *zap.Logger) (Completer, error) {
	timeout := config.ParseDuration(cfg.Timeout, 60*time.Second)

	var base Completer
	switch strings.ToLower(cfg.Provider) {
	case ProviderGroq, ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm api key is required for provider %s", cfg.Provider)
		}
		base = NewOpenAIClient(strings.ToLower(cfg.Provider), cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm api key is required for provider %s", cfg.Provider)
		}
		base = NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Model, timeout)
	case ProviderOffline:
		logger.Warn("Language model is offline, every generation uses local fallbacks")
		return Offline(cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	retryDelay := config.ParseDuration(cfg.RetryDelay, time.Second)
	return NewRetrying(base, cfg.RetryAttempts, retryDelay, logger), nil
}

// Func adapts a function into a Completer
type Func struct {
	Provider  string
	ModelName string
	Fn        func(ctx context.Context, req Request) (string, error)
}

func (f *Func) Complete(ctx context.Context, req Request) (string, error) {
	return f.Fn(ctx, req)
}

func (f *Func) Name() string  { return f.Provider }
func (f *Func) Model() string { return f.ModelName }

// Offline is a Completer that always fails, so callers fall back to their
// local defaults
func Offline(model string) *Func {
	return &Func{
		Provider:  ProviderOffline,
		ModelName: model,
		Fn: func(context.Context, Request) (string, error) {
			return "", ErrOffline
		},
	}
}
