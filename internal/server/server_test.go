package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/internal/service/extraction"
	"github.com/ifuryst/repurpose/internal/service/generator"
	"github.com/ifuryst/repurpose/internal/service/llm"
	"github.com/ifuryst/repurpose/internal/service/processor"
	"github.com/ifuryst/repurpose/internal/service/store"
)

const testJWTSecret = "server-test-secret"

// recordingNotifier remembers the jobs it was told about
type recordingNotifier struct {
	mu   sync.Mutex
	jobs []uuid.UUID
}

func (n *recordingNotifier) Notify(_ context.Context, jobID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, jobID)
	return nil
}

func (n *recordingNotifier) notified() []uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uuid.UUID(nil), n.jobs...)
}

type testServer struct {
	srv      *Server
	store    *store.Store
	notifier *recordingNotifier
	user     uuid.UUID
	token    string
}

type serverOption func(cfg *config.Config, deps *Dependencies)

func withEngine() serverOption {
	return func(_ *config.Config, deps *Dependencies) {
		deps.Engine = processor.NewEngine(processor.Config{
			BatchSize:         5,
			PollInterval:      time.Hour,
			ErrorBackoff:      time.Hour,
			MaxConcurrentJobs: 1,
			JobTimeout:        time.Minute,
			PersistenceMode:   processor.PersistencePartial,
		}, deps.Store, deps.Generator, deps.Monitoring, zap.NewNop())
	}
}

func withTOTP(secret string) serverOption {
	return func(cfg *config.Config, _ *Dependencies) {
		cfg.Auth.TOTPSecret = secret
	}
}

func withUploadLimitMB(mb int) serverOption {
	return func(cfg *config.Config, _ *Dependencies) {
		cfg.Upload.MaxFileSizeMB = mb
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "server.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := service.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Server.Mode = gin.TestMode
	cfg.Auth.JWTSecret = testJWTSecret

	log := zap.NewNop()
	st := store.New(db)
	completer := llm.Offline("test-model")
	notifier := &recordingNotifier{}
	deps := &Dependencies{
		DB:         db,
		Store:      st,
		Extractor:  extraction.NewExtractor(5*time.Second, log),
		Completer:  completer,
		Generator:  generator.NewService(completer, generator.NewDefaultRegistry(log), generator.Options{}, log),
		Monitoring: service.NewMonitoringService(db, log),
		Notifier:   notifier,
	}
	deps.StatsUpdater = service.NewStatsUpdater(deps.Monitoring, log, time.Hour, 30)

	for _, opt := range opts {
		opt(cfg, deps)
	}
	deps.Auth = service.NewAuthService(&cfg.Auth, log)

	user := uuid.New()
	return &testServer{
		srv:      NewServer(cfg, deps, log),
		store:    st,
		notifier: notifier,
		user:     user,
		token:    tokenFor(t, user),
	}
}

func tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// do sends a request as the test user. body may be nil, a []byte or any
// value that is encoded as JSON.
func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doAs(t, ts.token, method, path, body)
}

func (ts *testServer) doAs(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doAs(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestDetailedHealth(t *testing.T) {
	ts := newTestServer(t, withEngine())

	w := ts.doAs(t, "", http.MethodGet, "/health/detailed", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	body := decode[struct {
		Status   string                 `json:"status"`
		Services map[string]interface{} `json:"services"`
	}](t, w)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Services["database"])
	assert.Equal(t, "disabled", body.Services["storage"])
	assert.Equal(t, "disabled", body.Services["redis"])
	assert.Equal(t, "stopped", body.Services["job_processor"])

	llmStatus := body.Services["llm"].(map[string]interface{})
	assert.Equal(t, "offline", llmStatus["status"])
	assert.Equal(t, "test-model", llmStatus["model"])
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.doAs(t, "", http.MethodGet, "/api/v1/content", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.doAs(t, "invalid", http.MethodGet, "/api/v1/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/content", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 20},
		{"page=3&limit=10", 3, 10},
		{"page=0&limit=0", 1, 1},
		{"page=-2&limit=1000", 1, 100},
		{"page=abc&limit=xyz", 1, 20},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		p := parsePagination(c)
		assert.Equal(t, tt.wantPage, p.page)
		assert.Equal(t, tt.wantLimit, p.limit)
	}

	page := newPage([]int{1, 2}, 45, pagination{page: 1, limit: 20})
	assert.Equal(t, 3, page.Pages)

	empty := newPage[int](nil, 0, pagination{page: 1, limit: 20})
	assert.Equal(t, 0, empty.Pages)
	assert.Equal(t, 0, len(empty.Items))
}
