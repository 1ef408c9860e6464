package generator

import (
	"fmt"
	"strings"

	"github.com/ifuryst/repurpose/pkg/util"
)

type LinkedIn struct{}

func (g *LinkedIn) Platform() string { return "linkedin" }

func (g *LinkedIn) Prompt(in Input) string {
	return fmt.Sprintf(`Write a LinkedIn post based on this content:

Content: %s
Key insights: %s
Tone: %s

Requirements:
- At most 1300 characters
- Open with a line that makes people stop scrolling
- End with a clear call to action
- Include 3-5 relevant hashtags
%s
Return JSON: {"post": "...", "hashtags": ["#tag1", "#tag2"], "cta": "..."}`,
		excerpt(in.Text, 2000),
		joinInsights(firstInsights(in.Analysis, 3)),
		in.Analysis.Tone,
		preferencesLine(in.Preferences))
}

func (g *LinkedIn) RequiredFields() []string {
	return []string{"post", "hashtags", "cta"}
}

func (g *LinkedIn) Fallback(in Input) map[string]interface{} {
	post := fmt.Sprintf("Key insights: %s. What are your thoughts?",
		strings.Join(firstInsights(in.Analysis, 2), ". "))
	return map[string]interface{}{
		"post":     post,
		"hashtags": []interface{}{"#business", "#insights", "#professional"},
		"cta":      "Share your thoughts!",
	}
}

func (g *LinkedIn) Finalize(out map[string]interface{}) {
	post, _ := out["post"].(string)
	out["character_count"] = util.RuneLen(post)
}

func (g *LinkedIn) Schema() string {
	return `{
  "type": "object",
  "required": ["post", "hashtags", "cta"],
  "properties": {
    "post": {"type": "string", "minLength": 1},
    "hashtags": {"type": "array", "items": {"type": "string"}},
    "cta": {"type": "string"},
    "character_count": {"type": "integer", "minimum": 0}
  }
}`
}
