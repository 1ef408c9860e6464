package generator

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/service/llm"
)

func scripted(responses map[string]string, fail bool) *llm.Func {
	return &llm.Func{
		Provider:  "scripted",
		ModelName: "test-model",
		Fn: func(ctx context.Context, req llm.Request) (string, error) {
			if fail {
				return "", errors.New("upstream unavailable")
			}
			for marker, resp := range responses {
				if strings.Contains(req.Prompt, marker) {
					return resp, nil
				}
			}
			return "no idea", nil
		},
	}
}

func newTestService(c llm.Completer) *Service {
	logger := zap.NewNop()
	return NewService(c, NewDefaultRegistry(logger), Options{Temperature: 0.7, MaxTokens: 500}, logger)
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name     string
		response string
		fail     bool
		want     Analysis
	}{
		{
			name:     "pure json",
			response: `{"key_insights":["a","b","c"],"tone":"casual","audience":"founders","content_type":"guide"}`,
			want:     Analysis{KeyInsights: []string{"a", "b", "c"}, Tone: "casual", Audience: "founders", ContentType: "guide"},
		},
		{
			name:     "json in prose",
			response: "Sure! Here it is:\n```json\n{\"key_insights\":[\"x\"],\"tone\":\"technical\"}\n```\nHope that helps.",
			want:     Analysis{KeyInsights: []string{"x"}, Tone: "technical", Audience: "general audience", ContentType: "general"},
		},
		{
			name:     "loosely typed fields",
			response: `{"key_insights":[1,"Two",null,3.5],"tone":"casual","audience":42}`,
			want:     Analysis{KeyInsights: []string{"1", "Two", "3.5"}, Tone: "casual", Audience: "42", ContentType: "general"},
		},
		{
			name:     "single insight string",
			response: `{"key_insights":"Only one","tone":"technical"}`,
			want:     Analysis{KeyInsights: []string{"Only one"}, Tone: "technical", Audience: "general audience", ContentType: "general"},
		},
		{
			name:     "garbage",
			response: "I cannot analyze that",
			want:     DefaultAnalysis(),
		},
		{
			name: "completion error",
			fail: true,
			want: DefaultAnalysis(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(scripted(map[string]string{"Analyze this content": tt.response}, tt.fail))
			got := svc.Analyze(context.Background(), "some text")

			if strings.Join(got.KeyInsights, "|") != strings.Join(tt.want.KeyInsights, "|") {
				t.Errorf("insights = %v, want %v", got.KeyInsights, tt.want.KeyInsights)
			}
			if got.Tone != tt.want.Tone || got.Audience != tt.want.Audience || got.ContentType != tt.want.ContentType {
				t.Errorf("analysis = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGenerateFallbacks(t *testing.T) {
	svc := newTestService(scripted(nil, true))
	in := Input{Text: "text", Analysis: DefaultAnalysis()}

	linkedin, err := svc.Generate(context.Background(), "linkedin", in)
	if err != nil {
		t.Fatalf("generate linkedin: %v", err)
	}
	if !linkedin.UsedFallback {
		t.Fatalf("expected fallback content")
	}
	wantPost := "Key insights: Key insight 1. Key insight 2. What are your thoughts?"
	if linkedin.Content["post"] != wantPost {
		t.Errorf("post = %q", linkedin.Content["post"])
	}
	if linkedin.Content["character_count"] != float64(len(wantPost)) {
		t.Errorf("character_count = %v", linkedin.Content["character_count"])
	}
	if linkedin.Quality != 1.0 {
		t.Errorf("quality = %v", linkedin.Quality)
	}
	if linkedin.Validation["schema_valid"] != true {
		t.Errorf("fallback must satisfy its schema: %v", linkedin.Validation["schema_errors"])
	}
	if linkedin.Metadata["processor"] != "scripted" || linkedin.Metadata["model"] != "test-model" {
		t.Errorf("metadata = %v", linkedin.Metadata)
	}

	twitter, err := svc.Generate(context.Background(), "twitter", in)
	if err != nil {
		t.Fatalf("generate twitter: %v", err)
	}
	tweets := twitter.Content["tweets"].([]interface{})
	if len(tweets) != 3 {
		t.Fatalf("expected 3 tweets, got %d", len(tweets))
	}
	first := tweets[0].(map[string]interface{})
	if first["text"] != "1/3 Key insight 1" || first["number"] != float64(1) {
		t.Errorf("first tweet = %v", first)
	}

	blog, err := svc.Generate(context.Background(), "blog", in)
	if err != nil {
		t.Fatalf("generate blog: %v", err)
	}
	if blog.Content["title"] != "Key Insights and Analysis" {
		t.Errorf("blog title = %v", blog.Content["title"])
	}
	if !strings.HasPrefix(blog.Content["content"].(string), "# Key Insights\n\n- Key insight 1\n") {
		t.Errorf("blog content = %q", blog.Content["content"])
	}

	email, err := svc.Generate(context.Background(), "email", Input{Text: "text", Analysis: Analysis{}})
	if err != nil {
		t.Fatalf("generate email: %v", err)
	}
	emails := email.Content["emails"].([]interface{})
	if len(emails) != 1 {
		t.Fatalf("expected exactly one fallback email, got %d", len(emails))
	}
	body := emails[0].(map[string]interface{})
	if body["content"] != "Hello! I wanted to share some key insights: Important information" {
		t.Errorf("email content = %v", body["content"])
	}
}

func TestGenerateUsesModelOutput(t *testing.T) {
	svc := newTestService(scripted(map[string]string{
		"Twitter thread": `Here you go: {"tweets":[{"number":1,"text":"hello world"},{"number":2,"text":"second","char_count":6}]}`,
		"blog post":      `{"title":"T","content":"one two three","meta_description":"m"}`,
	}, false))

	twitter, err := svc.Generate(context.Background(), "twitter", Input{Text: "x", Analysis: DefaultAnalysis()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if twitter.UsedFallback {
		t.Fatalf("model output should have been used")
	}
	tweets := twitter.Content["tweets"].([]interface{})
	if tweets[0].(map[string]interface{})["char_count"] != float64(11) {
		t.Errorf("char_count not backfilled: %v", tweets[0])
	}

	blog, err := svc.Generate(context.Background(), "blog", Input{Text: "x", Analysis: DefaultAnalysis()})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if blog.Content["word_count"] != float64(3) {
		t.Errorf("word_count = %v", blog.Content["word_count"])
	}
}

func TestGenerateUnknownPlatform(t *testing.T) {
	svc := newTestService(scripted(nil, false))
	if _, err := svc.Generate(context.Background(), "myspace", Input{}); err == nil {
		t.Fatalf("expected an error for an unknown platform")
	}
	if svc.Quality("myspace", nil) != 1.0 {
		t.Fatalf("unknown platform must score 1.0")
	}
}

func TestQualityScore(t *testing.T) {
	li := (&LinkedIn{}).RequiredFields()

	tests := []struct {
		name    string
		content map[string]interface{}
		want    float64
	}{
		{"complete", map[string]interface{}{"post": "p", "hashtags": []interface{}{"#a"}, "cta": "c"}, 1.0},
		{"missing post and hashtags", map[string]interface{}{"cta": "c"}, 0.6},
		{"empty values", map[string]interface{}{"post": "  ", "hashtags": []interface{}{}, "cta": ""}, 0.4},
		{"nothing", map[string]interface{}{}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QualityScore(li, tt.content)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}

	many := []string{"a", "b", "c", "d", "e", "f"}
	if got := QualityScore(many, map[string]interface{}{}); got != 0 {
		t.Errorf("score must clamp at 0, got %v", got)
	}
}

func TestValidatorReportsSchemaErrors(t *testing.T) {
	v := NewValidator()

	long := strings.Repeat("a", 300)
	res := v.Validate(&Twitter{}, map[string]interface{}{
		"tweets": []interface{}{map[string]interface{}{"text": long}},
	})
	if res["schema_valid"] != false {
		t.Fatalf("a 300 character tweet must fail validation")
	}
	if errs := res["schema_errors"].([]interface{}); len(errs) == 0 {
		t.Fatalf("expected schema errors")
	}
	if res["status"] != "generated" {
		t.Errorf("status = %v", res["status"])
	}

	res = v.Validate(&Blog{}, map[string]interface{}{"title": "t", "content": "c", "meta_description": "m"})
	if res["schema_valid"] != true {
		t.Fatalf("blog should be valid: %v", res["schema_errors"])
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(zap.NewNop())

	if got := strings.Join(r.Platforms(), ","); got != "blog,email,linkedin,twitter" {
		t.Fatalf("platforms = %s", got)
	}
	if err := r.RegisterGenerator(&Blog{}); err == nil {
		t.Fatalf("duplicate registration must fail")
	}
	if _, err := r.GetGenerator("email"); err != nil {
		t.Fatalf("get email: %v", err)
	}
}

func TestPromptsCarryPreferences(t *testing.T) {
	in := Input{Text: "body", Analysis: DefaultAnalysis(), Preferences: map[string]interface{}{"tone": "witty"}}
	for _, g := range []Generator{&LinkedIn{}, &Twitter{}, &Blog{}, &Email{}} {
		if !strings.Contains(g.Prompt(in), `"tone":"witty"`) {
			t.Errorf("%s prompt is missing preferences", g.Platform())
		}
	}
	if strings.Contains((&Blog{}).Prompt(Input{Analysis: DefaultAnalysis()}), "User preferences") {
		t.Errorf("empty preferences should not be rendered")
	}
}
