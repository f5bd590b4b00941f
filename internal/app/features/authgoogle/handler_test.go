package authgoogle_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/GoFast-Athlete-Training/crewhub/internal/app/features/authgoogle"
	uierrors "github.com/GoFast-Athlete-Training/crewhub/internal/app/features/errors"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/audit"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/store/oauthstate"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auditlog"
	"github.com/GoFast-Athlete-Training/crewhub/internal/app/system/auth"
	"github.com/GoFast-Athlete-Training/crewhub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, clientID, clientSecret string) *authgoogle.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	errLog := uierrors.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db", Join: "db"})

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	return authgoogle.NewHandler(db, sessionMgr, errLog, auditLog,
		oauthstate.New(db), clientID, clientSecret, "http://localhost:8080", logger)
}

func TestServeLogin_NotConfigured(t *testing.T) {
	handler := newTestHandler(t, "", "")

	req := httptest.NewRequest("GET", "/auth/google", nil)
	rec := httptest.NewRecorder()
	handler.ServeLogin(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login?error=google_not_configured" {
		t.Errorf("Location: got %q", got)
	}
}

func TestServeLogin_RedirectsToGoogle(t *testing.T) {
	handler := newTestHandler(t, "test-client-id", "test-client-secret")

	req := httptest.NewRequest("GET", "/auth/google?return=/join/continue", nil)
	rec := httptest.NewRecorder()
	handler.ServeLogin(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected status %d, got %d", http.StatusTemporaryRedirect, rec.Code)
	}

	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect location: %v", err)
	}
	if loc.Host != "accounts.google.com" {
		t.Errorf("expected redirect to accounts.google.com, got %q", loc.Host)
	}
	if loc.Query().Get("state") == "" {
		t.Error("expected a state parameter in the authorization URL")
	}
	if got := loc.Query().Get("client_id"); got != "test-client-id" {
		t.Errorf("client_id: got %q", got)
	}
}

func TestServeCallback_MissingState(t *testing.T) {
	handler := newTestHandler(t, "test-client-id", "test-client-secret")

	req := httptest.NewRequest("GET", "/auth/google/callback?code=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeCallback(rec, req)

	if got := rec.Header().Get("Location"); got != "/login?error=invalid_state" {
		t.Errorf("Location: got %q", got)
	}
}

func TestServeCallback_UnknownState(t *testing.T) {
	handler := newTestHandler(t, "test-client-id", "test-client-secret")

	req := httptest.NewRequest("GET", "/auth/google/callback?state=never-saved&code=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeCallback(rec, req)

	if got := rec.Header().Get("Location"); got != "/login?error=invalid_state" {
		t.Errorf("Location: got %q", got)
	}
}

func TestServeCallback_ProviderError(t *testing.T) {
	handler := newTestHandler(t, "test-client-id", "test-client-secret")

	req := httptest.NewRequest("GET", "/auth/google/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	handler.ServeCallback(rec, req)

	if got := rec.Header().Get("Location"); got != "/login?error=google_denied" {
		t.Errorf("Location: got %q", got)
	}
}
