package generator

import (
	"fmt"

	"github.com/ifuryst/repurpose/pkg/util"
)

type Email struct{}

func (g *Email) Platform() string { return "email" }

func (g *Email) Prompt(in Input) string {
	return fmt.Sprintf(`Create a 3-email sequence based on this content:

Content: %s
Key insights: %s

Requirements:
- Email 1: introduction, 200-300 words
- Email 2: main value, 300-400 words
- Email 3: call to action, 200-300 words
- A compelling subject line for each email
%s
Return JSON: {"emails": [{"number": 1, "subject": "...", "content": "...", "word_count": 250}]}`,
		excerpt(in.Text, 2000),
		joinInsights(in.Analysis.KeyInsights),
		preferencesLine(in.Preferences))
}

func (g *Email) RequiredFields() []string {
	return []string{"emails"}
}

func (g *Email) Fallback(in Input) map[string]interface{} {
	first := "Important information"
	if len(in.Analysis.KeyInsights) > 0 {
		first = in.Analysis.KeyInsights[0]
	}
	content := "Hello! I wanted to share some key insights: " + first
	return map[string]interface{}{
		"emails": []interface{}{
			map[string]interface{}{
				"number":     1,
				"subject":    "Introduction to Key Insights",
				"content":    content,
				"word_count": util.WordCount(content),
			},
		},
	}
}

func (g *Email) Finalize(out map[string]interface{}) {
	emails, ok := out["emails"].([]interface{})
	if !ok {
		return
	}
	for _, item := range emails {
		email, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if _, has := toInt(email["word_count"]); has {
			continue
		}
		content, _ := email["content"].(string)
		email["word_count"] = util.WordCount(content)
	}
}

func (g *Email) Schema() string {
	return `{
  "type": "object",
  "required": ["emails"],
  "properties": {
    "emails": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["subject", "content"],
        "properties": {
          "number": {"type": "integer"},
          "subject": {"type": "string"},
          "content": {"type": "string"},
          "word_count": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`
}
