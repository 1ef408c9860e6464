package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/service/llm"
	"github.com/ifuryst/repurpose/pkg/util"
)

// Result is one platform's generated content with its scoring
type Result struct {
	Platform     string
	Content      map[string]interface{}
	UsedFallback bool
	Quality      float64
	Validation   map[string]interface{}
	Metadata     map[string]interface{}
}

type Service struct {
	completer   llm.Completer
	registry    *Registry
	validator   *Validator
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

type Options struct {
	Temperature float64
	MaxTokens   int
	// Timeout bounds a single completion call, zero means no bound
	Timeout time.Duration
}

func NewService(completer llm.Completer, registry *Registry, opts Options, logger *zap.Logger) *Service {
	return &Service{
		completer:   completer,
		registry:    registry,
		validator:   NewValidator(),
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		logger:      logger,
	}
}

func (s *Service) Registry() *Registry {
	return s.registry
}

func (s *Service) complete(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.completer.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	})
}

// Analyze extracts insights, tone and audience. It never fails: any
// completion or decode problem yields DefaultAnalysis.
func (s *Service) Analyze(ctx context.Context, text string) Analysis {
	resp, err := s.complete(ctx, analysisPrompt(text))
	if err != nil {
		s.logger.Warn("Content analysis failed, using default analysis", zap.Error(err))
		return DefaultAnalysis()
	}

	raw, ok := util.DecodeBestEffort[map[string]interface{}](resp, nil)
	if !ok {
		s.logger.Warn("Could not decode content analysis, using default analysis")
		return DefaultAnalysis()
	}
	return analysisFromMap(raw).withDefaults()
}

// Generate produces the content for one platform. Only an unknown platform
// is an error; model failures fall back to locally built content.
func (s *Service) Generate(ctx context.Context, platform string, in Input) (*Result, error) {
	gen, err := s.registry.GetGenerator(platform)
	if err != nil {
		return nil, err
	}

	var content map[string]interface{}
	usedFallback := false

	resp, err := s.complete(ctx, gen.Prompt(in))
	if err != nil {
		s.logger.Warn("Completion failed, using fallback content",
			zap.String("platform", platform),
			zap.Error(err))
	} else {
		decoded, ok := util.DecodeBestEffort[map[string]interface{}](resp, nil)
		if ok && decoded != nil {
			content = decoded
		} else {
			s.logger.Warn("Could not decode generated content, using fallback content",
				zap.String("platform", platform))
		}
	}

	if content == nil {
		content = gen.Fallback(in)
		usedFallback = true
	}

	gen.Finalize(content)
	content, err = normalize(content)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s content: %w", platform, err)
	}

	return &Result{
		Platform:     platform,
		Content:      content,
		UsedFallback: usedFallback,
		Quality:      QualityScore(gen.RequiredFields(), content),
		Validation:   s.validator.Validate(gen, content),
		Metadata: map[string]interface{}{
			"processor": s.completer.Name(),
			"model":     s.completer.Model(),
		},
	}, nil
}

// normalize round-trips content through JSON so nested values are plain
// JSON types ([]interface{}, float64) before validation and storage
func normalize(content map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quality scores content for a platform, 1.0 when the platform is unknown
func (s *Service) Quality(platform string, content map[string]interface{}) float64 {
	gen, err := s.registry.GetGenerator(platform)
	if err != nil {
		return 1.0
	}
	return QualityScore(gen.RequiredFields(), content)
}
