package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/config"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims(userID uuid.UUID) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    "https://auth.example.com",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func TestVerifyToken(t *testing.T) {
	auth := NewAuthService(&config.AuthConfig{
		JWTSecret: testJWTSecret,
		Issuer:    "https://auth.example.com",
		Audience:  "authenticated",
	}, zap.NewNop())
	userID := uuid.New()

	expired := validClaims(userID)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims(userID)
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims(userID)
	wrongIssuer.Issuer = "https://evil.example.com"

	wrongAudience := validClaims(userID)
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	badSubject := validClaims(userID)
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signToken(t, jwt.SigningMethodHS256, testJWTSecret, validClaims(userID)), false},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, "other", validClaims(userID)), true},
		{"wrong algorithm", signToken(t, jwt.SigningMethodHS512, testJWTSecret, validClaims(userID)), true},
		{"expired", signToken(t, jwt.SigningMethodHS256, testJWTSecret, expired), true},
		{"no expiry", signToken(t, jwt.SigningMethodHS256, testJWTSecret, noExpiry), true},
		{"wrong issuer", signToken(t, jwt.SigningMethodHS256, testJWTSecret, wrongIssuer), true},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, testJWTSecret, wrongAudience), true},
		{"subject is not a uuid", signToken(t, jwt.SigningMethodHS256, testJWTSecret, badSubject), true},
		{"garbage", "not.a.token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.VerifyToken(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got user %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assert.Equal(t, userID, got)
		})
	}
}

func TestVerifyTokenWithoutSecret(t *testing.T) {
	auth := NewAuthService(&config.AuthConfig{}, zap.NewNop())
	if _, err := auth.VerifyToken(signToken(t, jwt.SigningMethodHS256, "whatever", validClaims(uuid.New()))); err == nil {
		t.Fatalf("a missing secret must reject every token")
	}
}

func newAuthRouter(auth *AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", auth.UserMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	r.GET("/admin", auth.OperatorMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestUserMiddleware(t *testing.T) {
	auth := NewAuthService(&config.AuthConfig{JWTSecret: testJWTSecret}, zap.NewNop())
	r := newAuthRouter(auth)
	userID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testJWTSecret, claims))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"user_id":"`+userID.String()+`"}`, w.Body.String())
}

func TestOperatorMiddleware(t *testing.T) {
	disabled := newAuthRouter(NewAuthService(&config.AuthConfig{}, zap.NewNop()))
	w := httptest.NewRecorder()
	disabled.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	probe := NewAuthService(&config.AuthConfig{}, zap.NewNop())
	secret, err := probe.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret: %v", err)
	}
	r := newAuthRouter(NewAuthService(&config.AuthConfig{TOTPSecret: secret}, zap.NewNop()))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-TOTP-Code", "000000x")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-TOTP-Code", code)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateQRCode(t *testing.T) {
	auth := NewAuthService(&config.AuthConfig{}, zap.NewNop())
	url, err := auth.GenerateQRCode("Repurpose", "ops@example.com", "supersecretvalue")
	if err != nil {
		t.Fatalf("qr code: %v", err)
	}
	if len(url) < len("otpauth://") || url[:len("otpauth://")] != "otpauth://" {
		t.Fatalf("unexpected url %s", url)
	}
}
