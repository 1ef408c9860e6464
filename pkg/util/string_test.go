package util

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "hello-world", GenerateSlug("Hello, World!"))
	assert.Equal(t, "", GenerateSlug("!!!"))

	long := GenerateSlug("a very long title that keeps going and going well past the fifty character limit")
	if len(long) > 50 {
		t.Fatalf("slug too long: %q", long)
	}
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "my-report-final.pdf", SafeFilename("My Report (Final).PDF"))
	assert.Equal(t, "notes.txt", SafeFilename("../../etc/notes.txt"))
	assert.Equal(t, "upload.docx", SafeFilename("???.docx"))
}

func TestParseList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"linkedin, twitter", []string{"linkedin", "twitter"}},
		{`["blog","email"]`, []string{"blog", "email"}},
		{"['blog', '']", []string{"blog"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseList(tt.in))
	}
}

func TestRunes(t *testing.T) {
	assert.Equal(t, 4, RuneLen("café"))
	assert.Equal(t, "caf", TruncateRunes("café", 3))
	assert.Equal(t, "café", TruncateRunes("café", 10))
	assert.Equal(t, "", TruncateRunes("café", 0))
	assert.Equal(t, 3, WordCount("  one two\tthree\n"))
}

func TestCasing(t *testing.T) {
	assert.Equal(t, "Ébauche", CapitalizeFirst("ébauche"))
	assert.Equal(t, "", CapitalizeFirst(""))
	assert.Equal(t, "Case-Study Of Ai", TitleCase("case-study of AI"))
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b", NormalizeText("  a\x00b \n"))
	assert.Equal(t, "ok", NormalizeText("ok\xff"))
}
