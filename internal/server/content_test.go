package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/google/uuid"

	"github.com/ifuryst/repurpose/internal/models"
)

var longText = strings.Repeat("Automation lets small teams publish more without hiring. ", 5)

type createResponse struct {
	ContentID uuid.UUID `json:"content_id"`
	JobID     uuid.UUID `json:"job_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

func (ts *testServer) createText(t *testing.T, platforms ...string) createResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/content/text", map[string]interface{}{
		"title":       "Scaling with automation",
		"text":        longText,
		"platforms":   platforms,
		"preferences": map[string]interface{}{"tone": "casual"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create text: %d %s", w.Code, w.Body.String())
	}
	return decode[createResponse](t, w)
}

func TestCreateTextContent(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	resp := ts.createText(t, "linkedin", "Twitter", "linkedin")
	assert.Equal(t, models.JobStatusPending, resp.Status)

	content, err := ts.store.Contents.Get(ctx, resp.ContentID)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	assert.Equal(t, ts.user, content.UserID)
	assert.Equal(t, models.SourceTypeText, content.SourceType)
	assert.Equal(t, float64(40), content.Metadata["word_count"])

	job, err := ts.store.Jobs.Get(ctx, resp.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	assert.Equal(t, content.ID, job.ContentID)
	assert.Equal(t, models.StringArray{"linkedin", "twitter"}, job.Platforms)
	assert.Equal(t, "casual", job.UserPreferences["tone"])
	assert.Equal(t, []uuid.UUID{resp.JobID}, ts.notifier.notified())
}

func TestCreateTextContentValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"short text", map[string]interface{}{"title": "t", "text": "too short", "platforms": []string{"blog"}}},
		{"no platforms", map[string]interface{}{"title": "t", "text": longText, "platforms": []string{}}},
		{"unknown platform", map[string]interface{}{"title": "t", "text": longText, "platforms": []string{"myspace"}}},
		{"missing title", map[string]interface{}{"text": longText, "platforms": []string{"blog"}}},
		{"bad json", []byte(`{"title":`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/v1/content/text", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, 0, len(ts.notifier.notified()))
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return body, mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, filename string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(w, req)
	return w
}

func TestUploadContent(t *testing.T) {
	ts := newTestServer(t, withUploadLimitMB(1))

	w := ts.upload(t, "notes.txt", []byte(longText), map[string]string{
		"platforms":   `["blog","email"]`,
		"preferences": `{"length":"short"}`,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode[createResponse](t, w)

	content, err := ts.store.Contents.Get(context.Background(), resp.ContentID)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	assert.Equal(t, "notes", content.Title)
	assert.Equal(t, models.SourceTypeTXT, content.SourceType)
	assert.Equal(t, int64(len(longText)), content.FileSizeBytes)
	assert.Equal(t, "notes.txt", content.Metadata["original_filename"])

	job, err := ts.store.Jobs.Get(context.Background(), resp.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	assert.Equal(t, models.StringArray{"blog", "email"}, job.Platforms)
	assert.Equal(t, "short", job.UserPreferences["length"])
}

func TestUploadContentRejects(t *testing.T) {
	ts := newTestServer(t, withUploadLimitMB(1))

	w := ts.upload(t, "image.png", []byte("png"), map[string]string{"platforms": `["blog"]`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	big := bytes.Repeat([]byte("a"), 1024*1024+10)
	w = ts.upload(t, "big.txt", big, map[string]string{"platforms": `["blog"]`})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.upload(t, "notes.txt", []byte(longText), map[string]string{"platforms": `["blog"]`, "preferences": "{oops"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.upload(t, "notes.txt", []byte(longText), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.upload(t, "empty.txt", []byte("   "), map[string]string{"platforms": `["blog"]`})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateURLContent(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>Automation Notes</title></head><body><main><p>%s</p></main></body></html>", longText)
	}))
	defer page.Close()

	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/content/url", map[string]interface{}{
		"url":       page.URL + "/post",
		"platforms": []string{"twitter"},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode[createResponse](t, w)

	content, err := ts.store.Contents.Get(context.Background(), resp.ContentID)
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	assert.Equal(t, "Automation Notes", content.Title)
	assert.Equal(t, models.SourceTypeURL, content.SourceType)
	assert.Equal(t, page.URL+"/post", content.SourceURL)

	w = ts.do(t, http.MethodPost, "/api/v1/content/url", map[string]interface{}{
		"url":       "ftp://example.com/file",
		"platforms": []string{"twitter"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestContentCRUD(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createText(t, "blog")
	ts.createText(t, "email")

	w := ts.do(t, http.MethodGet, "/api/v1/content/"+first.ContentID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Content](t, w)
	assert.Equal(t, "Scaling with automation", got.Title)

	w = ts.do(t, http.MethodGet, "/api/v1/content?limit=1&source_type=text", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	page := decode[Page[models.Content]](t, w)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 1, len(page.Items))

	w = ts.do(t, http.MethodPut, "/api/v1/content/"+first.ContentID.String(), map[string]interface{}{
		"title":    "Renamed",
		"metadata": map[string]interface{}{"tag": "growth"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	updated := decode[models.Content](t, w)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "growth", updated.Metadata["tag"])

	// another user can neither read nor delete it
	other := tokenFor(t, uuid.New())
	w = ts.doAs(t, other, http.MethodGet, "/api/v1/content/"+first.ContentID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.doAs(t, other, http.MethodDelete, "/api/v1/content/"+first.ContentID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.doAs(t, other, http.MethodGet, "/api/v1/content", nil)
	assert.Equal(t, int64(0), decode[Page[models.Content]](t, w).Total)

	w = ts.do(t, http.MethodDelete, "/api/v1/content/"+first.ContentID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/v1/content/"+first.ContentID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/content/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
