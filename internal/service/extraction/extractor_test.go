package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestExtractor() *Extractor {
	return NewExtractor(5*time.Second, zap.NewNop())
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractTXT(t *testing.T) {
	e := newTestExtractor()

	result, err := e.Extract([]byte("first line\nsecond line here\n"), "notes.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Title != "notes" || result.SourceType != "txt" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Metadata["word_count"] != 5 || result.Metadata["line_count"] != 2 {
		t.Fatalf("unexpected metadata %v", result.Metadata)
	}
	if result.Metadata["file_size"] != 28 {
		t.Fatalf("unexpected file size %v", result.Metadata["file_size"])
	}
}

func TestExtractTXTLatin1Fallback(t *testing.T) {
	e := newTestExtractor()

	result, err := e.Extract([]byte{'c', 'a', 'f', 0xe9}, "menu.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "café" {
		t.Fatalf("expected latin-1 decoding, got %q", result.Text)
	}
}

func TestExtractErrors(t *testing.T) {
	e := newTestExtractor()

	if _, err := e.Extract([]byte("data"), "image.png"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := e.Extract([]byte("data"), "noextension"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := e.Extract([]byte("  \n\t "), "blank.txt"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := e.Extract([]byte("not a pdf at all"), "broken.pdf"); err == nil {
		t.Fatalf("expected an error for a malformed pdf")
	}
}

func TestExtractDOCX(t *testing.T) {
	e := newTestExtractor()
	data := buildZip(t, map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Growth plan</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t xml:space="preserve">Ship the </w:t></w:r><w:r><w:t>beta</w:t></w:r></w:p>
  </w:body>
</w:document>`,
		"docProps/core.xml": `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Roadmap 2026</dc:title>
</cp:coreProperties>`,
	})

	result, err := e.Extract(data, "roadmap.docx")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.Text != "Growth plan\n\nShip the beta" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Title != "Roadmap 2026" {
		t.Fatalf("expected core title, got %q", result.Title)
	}
	if result.Metadata["paragraph_count"] != 2 {
		t.Fatalf("unexpected paragraph count %v", result.Metadata["paragraph_count"])
	}
}

func TestExtractPPTX(t *testing.T) {
	e := newTestExtractor()
	slide := func(text string) string {
		return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
	}
	data := buildZip(t, map[string]string{
		"ppt/slides/slide10.xml": slide("Closing"),
		"ppt/slides/slide2.xml":  slide("Agenda"),
		"ppt/slides/slide1.xml":  slide("Welcome"),
	})

	result, err := e.Extract(data, "deck.pptx")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "--- Slide 1 ---\nWelcome\n\n--- Slide 2 ---\nAgenda\n\n--- Slide 3 ---\nClosing"
	if result.Text != want {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Metadata["slide_count"] != 3 || result.Title != "deck" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExtractURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Write([]byte(`<html><head><title> Launch notes </title><script>var x = 1;</script></head>
<body>
<nav>Home | About</nav>
<div class="sidebar">Ads</div>
<main>
  <h1>We shipped</h1>
  <p>The new release is
  out today.</p>
</main>
<footer>Copyright</footer>
</body></html>`))
		case "/empty":
			w.Write([]byte(`<html><body><nav>only nav</nav></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newTestExtractor()
	ctx := context.Background()

	result, err := e.ExtractURL(ctx, srv.URL+"/article")
	if err != nil {
		t.Fatalf("extract url: %v", err)
	}
	if result.Title != "Launch notes" || result.SourceType != "url" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Text != "We shipped\n\nThe new release is\n\nout today." {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if strings.Contains(result.Text, "Ads") || strings.Contains(result.Text, "Home") {
		t.Fatalf("text should only come from <main>: %q", result.Text)
	}
	if result.Metadata["url"] != srv.URL+"/article" {
		t.Fatalf("missing url metadata")
	}

	if _, err := e.ExtractURL(ctx, srv.URL+"/missing"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if _, err := e.ExtractURL(ctx, srv.URL+"/empty"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := e.ExtractURL(ctx, "ftp://example.com/file"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch for a non-http url, got %v", err)
	}
}
