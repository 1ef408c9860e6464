package processor

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		platforms []string
		want      string
	}{
		{
			name:      "long descriptor is abbreviated",
			text:      "This is a comprehensive guide about marketing automation for startups",
			platforms: []string{"linkedin"},
			want:      "Comprehensive guide... for Linkedin",
		},
		{
			name:      "three platforms",
			text:      "Zebras gallop quickly across savannah plains",
			platforms: []string{"blog", "email", "twitter"},
			want:      "Zebras gallop quickly for 3 Platforms",
		},
		{
			name:      "empty text",
			text:      "",
			platforms: []string{"linkedin", "twitter"},
			want:      "Content for Linkedin & Twitter",
		},
		{
			name:      "topic suffix",
			text:      "Small teams need tips",
			platforms: []string{"blog"},
			want:      "Small teams need Tips for Blog",
		},
		{
			name:      "four platforms",
			text:      "Small teams need tips",
			platforms: []string{"linkedin", "twitter", "blog", "email"},
			want:      "Small teams need Tips Multi-Platform",
		},
		{
			name:      "descriptor shortened to fit",
			text:      "Understanding distributed consensus protocols deeply",
			platforms: []string{"linkedin", "twitter"},
			want:      "Understanding ... for Linkedin & Twitter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateTitle(tt.text, tt.platforms)
			if got != tt.want {
				t.Errorf("GenerateTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateTitleBounds(t *testing.T) {
	texts := []string{
		"",
		"a an the",
		strings.Repeat("supercalifragilistic ", 20),
		"Breaking news: the launch of our new AI software release changes everything",
		"Überraschende Ergebnisse einer großen Studie über Künstliche Intelligenz",
		"Case study: how one startup grew revenue with a brand campaign",
	}
	platformSets := [][]string{
		{"linkedin"},
		{"linkedin", "twitter"},
		{"blog", "email", "twitter"},
		{"linkedin", "twitter", "blog", "email"},
		{"averyveryverylongplatformname", "anotherextremelylongplatform"},
	}

	for _, text := range texts {
		for _, platforms := range platformSets {
			first := GenerateTitle(text, platforms)
			if first == "" {
				t.Fatalf("empty title for %q %v", text, platforms)
			}
			if n := utf8.RuneCountInString(first); n > 40 {
				t.Fatalf("title %q is %d characters", first, n)
			}
			if again := GenerateTitle(text, platforms); again != first {
				t.Fatalf("title is not deterministic: %q vs %q", first, again)
			}
		}
	}
}

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"nothing to see", "content"},
		{"our brand campaign and seo", "marketing"},
		// marketing and business tie at one, marketing comes first
		{"brand company", "marketing"},
		{"a step-by-step tutorial guide", "guide"},
		{"research findings report", "analysis"},
	}

	for _, tt := range tests {
		if got := detectTopic(tt.text); got != tt.want {
			t.Errorf("detectTopic(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}
