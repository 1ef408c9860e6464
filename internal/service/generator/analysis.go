package generator

import (
	"fmt"
	"strings"
)

// Analysis is the model's reading of the source content
type Analysis struct {
	KeyInsights []string `json:"key_insights"`
	Tone        string   `json:"tone"`
	Audience    string   `json:"audience"`
	ContentType string   `json:"content_type"`
}

func DefaultAnalysis() Analysis {
	return Analysis{
		KeyInsights: []string{"Key insight 1", "Key insight 2", "Key insight 3"},
		Tone:        "professional",
		Audience:    "general audience",
		ContentType: "general",
	}
}

// analysisFromMap keeps every usable field of a decoded analysis. Values of
// an unexpected type are converted to text rather than dropped.
func analysisFromMap(raw map[string]interface{}) Analysis {
	var a Analysis
	switch v := raw["key_insights"].(type) {
	case []interface{}:
		for _, item := range v {
			if item != nil {
				a.KeyInsights = append(a.KeyInsights, toText(item))
			}
		}
	case nil:
	default:
		a.KeyInsights = []string{toText(v)}
	}
	a.Tone = toText(raw["tone"])
	a.Audience = toText(raw["audience"])
	a.ContentType = toText(raw["content_type"])
	return a
}

func toText(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// withDefaults fills empty fields of a decoded analysis from DefaultAnalysis
func (a Analysis) withDefaults() Analysis {
	def := DefaultAnalysis()
	var insights []string
	for _, insight := range a.KeyInsights {
		if strings.TrimSpace(insight) != "" {
			insights = append(insights, insight)
		}
	}
	a.KeyInsights = insights
	if len(a.KeyInsights) == 0 {
		a.KeyInsights = def.KeyInsights
	}
	if a.Tone == "" {
		a.Tone = def.Tone
	}
	if a.Audience == "" {
		a.Audience = def.Audience
	}
	if a.ContentType == "" {
		a.ContentType = def.ContentType
	}
	return a
}

func (a Analysis) Map() map[string]interface{} {
	insights := make([]interface{}, len(a.KeyInsights))
	for i, s := range a.KeyInsights {
		insights[i] = s
	}
	return map[string]interface{}{
		"key_insights": insights,
		"tone":         a.Tone,
		"audience":     a.Audience,
		"content_type": a.ContentType,
	}
}

func analysisPrompt(text string) string {
	return fmt.Sprintf(`Analyze this content and extract key information:

Content: %s

Provide a JSON response with:
- key_insights: array of 3-5 main insights
- tone: professional/casual/technical/inspirational
- audience: target audience description
- content_type: tutorial/opinion/case-study/news/guide

Return only valid JSON, no other text.`, excerpt(text, 3000))
}
