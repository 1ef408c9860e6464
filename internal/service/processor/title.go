package processor

import (
	"fmt"
	"strings"

	"github.com/ifuryst/repurpose/pkg/util"
)

const maxTitleLength = 40

type topicKeywords struct {
	topic    string
	keywords []string
}

// topics are scored in this order, the first best score wins
var topics = []topicKeywords{
	{"marketing", []string{"marketing", "campaign", "advertising", "promotion", "brand", "seo"}},
	{"business", []string{"business", "entrepreneur", "startup", "company", "strategy", "revenue"}},
	{"technology", []string{"technology", "tech", "ai", "software", "digital", "automation"}},
	{"guide", []string{"guide", "tutorial", "how-to", "step-by-step", "instructions", "comprehensive"}},
	{"tips", []string{"tips", "advice", "recommendations", "best practices", "insights", "essential"}},
	{"analysis", []string{"analysis", "research", "study", "report", "findings"}},
	{"news", []string{"news", "announcement", "update", "release", "launch", "breaking"}},
	{"case study", []string{"case study", "example", "success story", "experience"}},
	{"review", []string{"review", "evaluation", "assessment", "comparison"}},
}

var stopWords = map[string]bool{
	"this": true, "is": true, "a": true, "an": true, "the": true, "about": true,
	"on": true, "for": true, "in": true, "with": true, "to": true, "and": true,
	"or": true, "but": true, "our": true, "here": true, "are": true,
}

// GenerateTitle builds a short job title from the content and target
// platforms. It is deterministic and never longer than 40 characters.
func GenerateTitle(text string, platforms []string) string {
	topic := detectTopic(strings.ToLower(strings.TrimSpace(text)))
	desc := describe(text, topic)

	if topic != "content" && !strings.Contains(strings.ToLower(desc), topic) {
		switch topic {
		case "guide", "tips", "analysis", "news", "review":
			desc += " " + util.TitleCase(topic)
		case "case study":
			desc += " Case Study"
		}
	}

	if util.RuneLen(desc) > 22 {
		desc = util.TruncateRunes(desc, 19) + "..."
	}

	part := platformPart(platforms)
	title := desc + " " + part

	if util.RuneLen(title) > maxTitleLength {
		switch len(platforms) {
		case 1:
			title = desc + " for " + util.TitleCase(platforms[0])
		case 2:
			title = desc + " for " + util.TitleCase(platforms[0]) + "+" + util.TitleCase(platforms[1])
		default:
			title = desc + " Multi-Platform"
		}

		if util.RuneLen(title) > maxTitleLength {
			available := maxTitleLength - util.RuneLen(" "+part)
			switch {
			case available > 8:
				title = util.TruncateRunes(desc, available-3) + "... " + part
			case available > 5:
				title = util.TruncateRunes(desc, available) + " " + part
			default:
				title = "Content " + part
			}
		}
	}

	return util.TruncateRunes(title, maxTitleLength)
}

func detectTopic(lower string) string {
	best, bestScore := "content", 0
	for _, t := range topics {
		score := 0
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = t.topic, score
		}
	}
	return best
}

// describe joins the first meaningful leading words of the text
func describe(text, topic string) string {
	var words []string
	for _, word := range firstN(strings.Fields(text), 12) {
		clean := strings.Trim(strings.ToLower(word), `.,!?;:"()[]{}`)
		if !stopWords[clean] && util.RuneLen(clean) > 2 {
			words = append(words, word)
		}
		if len(words) >= 4 {
			break
		}
	}

	if len(words) == 0 {
		return util.TitleCase(topic)
	}
	return util.CapitalizeFirst(strings.Join(firstN(words, 3), " "))
}

func platformPart(platforms []string) string {
	switch len(platforms) {
	case 1:
		return "for " + util.TitleCase(platforms[0])
	case 2:
		return "for " + util.TitleCase(platforms[0]) + " & " + util.TitleCase(platforms[1])
	case 3:
		return fmt.Sprintf("for %d Platforms", len(platforms))
	default:
		return "Multi-Platform"
	}
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
