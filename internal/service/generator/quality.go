package generator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// QualityScore deducts 0.2 for every required field that is missing or empty
func QualityScore(required []string, content map[string]interface{}) float64 {
	missing := 0
	for _, field := range required {
		if isEmpty(content[field]) {
			missing++
		}
	}
	score := 1.0 - 0.2*float64(missing)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func isEmpty(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	case []string:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}
	return false
}

// Validator checks generated content against each platform's JSON Schema
type Validator struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{schemas: make(map[string]*jsonschema.Schema)}
}

func (v *Validator) schema(gen Generator) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	platform := gen.Platform()
	if s, ok := v.schemas[platform]; ok {
		return s, nil
	}

	compiler := jsonschema.NewCompiler()
	name := platform + ".json"
	if err := compiler.AddResource(name, strings.NewReader(gen.Schema())); err != nil {
		return nil, fmt.Errorf("failed to add %s schema: %w", platform, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s schema: %w", platform, err)
	}
	v.schemas[platform] = s
	return s, nil
}

// Validate returns the validation_results document stored on an output
func (v *Validator) Validate(gen Generator, content map[string]interface{}) map[string]interface{} {
	errs := []interface{}{}

	s, err := v.schema(gen)
	if err != nil {
		errs = append(errs, err.Error())
	} else if err := s.Validate(content); err != nil {
		for _, msg := range validationMessages(err) {
			errs = append(errs, msg)
		}
	}

	return map[string]interface{}{
		"status":        "generated",
		"schema_valid":  len(errs) == 0,
		"schema_errors": errs,
	}
}

func validationMessages(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}

	var msgs []string
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	sort.Strings(msgs)
	return msgs
}
