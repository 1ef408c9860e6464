package generator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/pkg/util"
)

// Input is everything a platform generator sees about one job
type Input struct {
	Text        string
	Analysis    Analysis
	Preferences map[string]interface{}
}

// Generator shapes content for a single platform
type Generator interface {
	Platform() string
	Prompt(in Input) string
	// RequiredFields are the top-level keys a usable output must carry
	RequiredFields() []string
	// Fallback builds an output locally when the model gives nothing usable
	Fallback(in Input) map[string]interface{}
	// Finalize fills derived fields such as counts
	Finalize(out map[string]interface{})
	Schema() string
}

// Registry maps platform names to their generators
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
	logger     *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		generators: make(map[string]Generator),
		logger:     logger,
	}
}

// NewDefaultRegistry registers linkedin, twitter, blog and email
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	for _, g := range []Generator{&LinkedIn{}, &Twitter{}, &Blog{}, &Email{}} {
		if err := r.RegisterGenerator(g); err != nil {
			logger.Error("Failed to register generator", zap.String("platform", g.Platform()), zap.Error(err))
		}
	}
	return r
}

func (r *Registry) RegisterGenerator(g Generator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	platform := g.Platform()
	if _, exists := r.generators[platform]; exists {
		return fmt.Errorf("generator for platform %s already registered", platform)
	}
	r.generators[platform] = g
	r.logger.Debug("Generator registered", zap.String("platform", platform))
	return nil
}

func (r *Registry) GetGenerator(platform string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, exists := r.generators[platform]
	if !exists {
		return nil, fmt.Errorf("generator for platform %s not found", platform)
	}
	return g, nil
}

// Platforms lists the registered platform names in sorted order
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// preferencesLine renders user preferences for a prompt, empty when there are none
func preferencesLine(prefs map[string]interface{}) string {
	if len(prefs) == 0 {
		return ""
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return ""
	}
	return "\nUser preferences: " + string(raw) + "\n"
}

func firstInsights(a Analysis, n int) []string {
	if n >= 0 && len(a.KeyInsights) > n {
		return a.KeyInsights[:n]
	}
	return a.KeyInsights
}

func excerpt(text string, n int) string {
	return util.TruncateRunes(text, n)
}

func joinInsights(insights []string) string {
	return strings.Join(insights, ", ")
}

// toInt reads a JSON number that may have been decoded as float64
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
