package generator

import (
	"fmt"

	"github.com/ifuryst/repurpose/pkg/util"
)

type Twitter struct{}

func (g *Twitter) Platform() string { return "twitter" }

func (g *Twitter) Prompt(in Input) string {
	return fmt.Sprintf(`Turn this content into a Twitter thread:

Content: %s
Key insights: %s

Requirements:
- 3-5 tweets
- Every tweet at most 280 characters
- Number the tweets (1/n, 2/n, ...)
- Use relevant hashtags
%s
Return JSON: {"tweets": [{"number": 1, "text": "...", "char_count": 120}]}`,
		excerpt(in.Text, 2000),
		joinInsights(firstInsights(in.Analysis, 4)),
		preferencesLine(in.Preferences))
}

func (g *Twitter) RequiredFields() []string {
	return []string{"tweets"}
}

func (g *Twitter) Fallback(in Input) map[string]interface{} {
	insights := firstInsights(in.Analysis, 3)
	tweets := make([]interface{}, 0, len(insights))
	for i, insight := range insights {
		text := fmt.Sprintf("%d/%d %s", i+1, len(insights), insight)
		tweets = append(tweets, map[string]interface{}{
			"number":     i + 1,
			"text":       text,
			"char_count": util.RuneLen(text),
		})
	}
	return map[string]interface{}{"tweets": tweets}
}

func (g *Twitter) Finalize(out map[string]interface{}) {
	tweets, ok := out["tweets"].([]interface{})
	if !ok {
		return
	}
	for _, item := range tweets {
		tweet, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if _, has := tweet["char_count"]; has {
			continue
		}
		text, _ := tweet["text"].(string)
		tweet["char_count"] = util.RuneLen(text)
	}
}

func (g *Twitter) Schema() string {
	return `{
  "type": "object",
  "required": ["tweets"],
  "properties": {
    "tweets": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "number": {"type": "integer"},
          "text": {"type": "string", "maxLength": 280},
          "char_count": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`
}
