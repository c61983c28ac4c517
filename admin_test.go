package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAdminAuth_Tokens(t *testing.T) {
	auth := NewAdminAuth(AdminConfig{Username: "admin", Password: "pw", Secret: "k"}, testLogger())

	token, err := auth.IssueToken(time.Now())
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := auth.ValidateToken(token); err != nil {
		t.Errorf("fresh token rejected: %v", err)
	}

	old, _ := auth.IssueToken(time.Now().Add(-2 * adminTokenTTL))
	if err := auth.ValidateToken(old); !errors.Is(err, ErrAdminTokenExpired) {
		t.Errorf("expired token: got %v", err)
	}

	other := NewAdminAuth(AdminConfig{Username: "admin", Password: "pw", Secret: "other"}, testLogger())
	if err := other.ValidateToken(token); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Errorf("foreign signature: got %v", err)
	}
	if err := auth.ValidateToken("garbage"); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Errorf("garbage token: got %v", err)
	}
}

func TestAdminAuth_Credentials(t *testing.T) {
	auth := NewAdminAuth(AdminConfig{Username: "admin", Password: "pw"}, testLogger())
	if !auth.CheckCredentials("admin", "pw") {
		t.Error("valid credentials rejected")
	}
	if auth.CheckCredentials("admin", "nope") || auth.CheckCredentials("root", "pw") {
		t.Error("invalid credentials accepted")
	}

	// Outside debug mode there is no fallback password.
	disabled := NewAdminAuth(AdminConfig{}, testLogger())
	if disabled.Enabled() || disabled.CheckCredentials("admin", "admin123") {
		t.Error("login should be disabled without a password")
	}
}

func login(t *testing.T, router http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(router, req)
}

func TestAdminRoutes_LoginFlow(t *testing.T) {
	srv, router := newTestServer(t, testServerOptions{})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/login" {
		t.Fatalf("unauthenticated dashboard: %d %q", w.Code, w.Header().Get("Location"))
	}

	if w := login(t, router, "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", w.Code)
	}

	w = login(t, router, "s3cret")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/admin/dashboard" {
		t.Fatalf("login: %d %q", w.Code, w.Header().Get("Location"))
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == adminCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("admin cookie missing or not HttpOnly: %+v", cookie)
	}

	srv.store.RecordEvent(testContext(t), EventChat, StatusOK, 50*time.Millisecond)

	for _, path := range []string{"/admin/dashboard", "/admin/visitors", "/admin/api/stats", "/admin/export/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(cookie)
		w := serve(router, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
		if path == "/admin/export/stats" && !strings.Contains(w.Header().Get("Content-Disposition"), "admin-stats.json") {
			t.Error("export is not an attachment")
		}
		if path == "/admin/api/stats" && !strings.Contains(w.Body.String(), `"chat_requests":1`) {
			t.Errorf("stats body %s", w.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/privacy/cleanup", nil)
	req.AddCookie(cookie)
	if w := serve(router, req); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"deleted":0`) {
		t.Errorf("cleanup: %d %s", w.Code, w.Body.String())
	}
}

func TestVisitorTracking(t *testing.T) {
	srv, router := newTestServer(t, testServerOptions{})

	get := func(path string, dnt bool) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if dnt {
			req.Header.Set("DNT", "1")
		}
		serve(router, req)
	}
	get("/", false)
	get("/", true)
	get("/healthz", false)
	get("/static/css/site.css", false)

	eventually(t, func() bool {
		stats, err := srv.store.Stats(testContext(t))
		return err == nil && stats.TotalVisitors == 1
	})
	// Let any stray goroutine land before checking nothing else was tracked.
	time.Sleep(50 * time.Millisecond)
	stats, _ := srv.store.Stats(testContext(t))
	if stats.TotalVisitors != 1 {
		t.Errorf("tracked %d visits, want 1", stats.TotalVisitors)
	}
}

func TestAdminAuth_DebugDefaults(t *testing.T) {
	gin.SetMode(gin.DebugMode)
	defer gin.SetMode(gin.TestMode)

	auth := NewAdminAuth(AdminConfig{}, testLogger())
	if !auth.CheckCredentials("admin", "admin123") {
		t.Error("debug mode should fall back to the default login")
	}
}
