package generator

import (
	"fmt"
	"strings"

	"github.com/ifuryst/repurpose/pkg/util"
)

type Blog struct{}

func (g *Blog) Platform() string { return "blog" }

func (g *Blog) Prompt(in Input) string {
	return fmt.Sprintf(`Write a blog post based on this content:

Content: %s
Key insights: %s
Tone: %s

Requirements:
- 500-700 words
- SEO-friendly title
- Meta description of about 150 characters
- Markdown headings for structure
%s
Return JSON: {"title": "...", "content": "...", "meta_description": "...", "word_count": 600}`,
		excerpt(in.Text, 3000),
		joinInsights(in.Analysis.KeyInsights),
		in.Analysis.Tone,
		preferencesLine(in.Preferences))
}

func (g *Blog) RequiredFields() []string {
	return []string{"title", "content", "meta_description"}
}

func (g *Blog) Fallback(in Input) map[string]interface{} {
	var b strings.Builder
	b.WriteString("# Key Insights\n\n")
	for _, insight := range in.Analysis.KeyInsights {
		b.WriteString("- " + insight + "\n")
	}
	b.WriteString("\nThese insights provide valuable perspective on the topic.")

	content := b.String()
	return map[string]interface{}{
		"title":            "Key Insights and Analysis",
		"content":          content,
		"meta_description": "Discover key insights and analysis on this important topic.",
		"word_count":       util.WordCount(content),
	}
}

func (g *Blog) Finalize(out map[string]interface{}) {
	if _, ok := toInt(out["word_count"]); ok {
		return
	}
	content, _ := out["content"].(string)
	out["word_count"] = util.WordCount(content)
}

func (g *Blog) Schema() string {
	return `{
  "type": "object",
  "required": ["title", "content", "meta_description"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "content": {"type": "string", "minLength": 1},
    "meta_description": {"type": "string"},
    "word_count": {"type": "integer", "minimum": 0}
  }
}`
}
