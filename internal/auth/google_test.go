package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	sharedauth "rowshare-backend/internal/shared/auth"
)

func newGoogleTestServer(t *testing.T, email string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "42",
			"email":          email,
			"verified_email": true,
			"name":           "Store Owner",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(t *testing.T, upstream *httptest.Server) (*GoogleService, *sharedauth.Signer, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := sharedauth.NewSigner("test-secret", "dev")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	svc := NewGoogleService(GoogleConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		RedirectURL:   "http://api.local/auth/google/callback",
		UIRedirectURL: "http://ui.local/admin",
		AdminEmails:   []string{" Owner@Example.com "},
	}, signer)
	svc.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:   upstream.URL + "/auth",
		TokenURL:  upstream.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	svc.userInfoURL = upstream.URL + "/userinfo"

	r := gin.New()
	svc.RegisterRoutes(r.Group("/"))
	return svc, signer, r
}

func startLogin(t *testing.T, r http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/start", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("start status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatalf("missing state in %s", loc)
	}
	return state
}

func TestGoogleCallbackIssuesAdminToken(t *testing.T) {
	upstream := newGoogleTestServer(t, "owner@example.com")
	_, signer, r := newTestGoogle(t, upstream)
	state := startLogin(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=abc", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("callback status = %d body=%s", rec.Code, rec.Body.String())
	}
	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "http://ui.local/admin#token=") {
		t.Fatalf("unexpected redirect %q", loc)
	}
	claims, err := signer.Verify(strings.TrimPrefix(loc, "http://ui.local/admin#token="))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Sub != "google:42" || claims.Email != "owner@example.com" || !claims.Admin {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// States are single use.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replayed state status = %d", rec.Code)
	}
}

func TestGoogleCallbackRejectsNonAdmins(t *testing.T) {
	upstream := newGoogleTestServer(t, "visitor@example.com")
	_, _, r := newTestGoogle(t, upstream)
	state := startLogin(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+state+"&code=abc", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGoogleStartRequiresConfiguration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewGoogleService(GoogleConfig{}, nil)
	r := gin.New()
	svc.RegisterRoutes(r.Group("/"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google/start", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStateStoreExpires(t *testing.T) {
	s := newStateStore()
	s.put("old", time.Now().Add(-time.Second))
	if s.consume("old") {
		t.Fatal("expired state accepted")
	}
	s.put("fresh", time.Now().Add(time.Minute))
	if !s.consume("fresh") {
		t.Fatal("fresh state rejected")
	}
	if s.consume("fresh") {
		t.Fatal("state consumed twice")
	}
}

func TestAppendTokenUsesFragment(t *testing.T) {
	got, err := appendToken("https://ui.example.com/admin?tab=products", "a.b.c")
	if err != nil {
		t.Fatalf("appendToken: %v", err)
	}
	if got != "https://ui.example.com/admin?tab=products#token=a.b.c" {
		t.Fatalf("got %q", got)
	}
	if _, err := appendToken("", "x"); err == nil {
		t.Fatal("expected error for empty url")
	}
}
