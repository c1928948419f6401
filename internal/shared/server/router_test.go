package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rowshare-backend/internal/catalog"
	"rowshare-backend/internal/rows"
	"rowshare-backend/internal/shared/auth"
	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/server/middleware"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.Signer) {
	t.Helper()
	signer, err := auth.NewSigner("router-secret", "dev")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	cfg := config.Config{Env: "dev", Store: config.StoreMemory, AdminEmails: []string{"owner@example.com"}}
	rowsSvc := &rows.Service{Repo: rows.NewMemoryRepo()}
	catalogSvc := &catalog.Service{Repo: catalog.NewMemoryRepo()}
	r := NewRouter(RouterDeps{
		Config:  cfg,
		Signer:  signer,
		Rows:    rows.NewHandler(rowsSvc, true, "cron"),
		Catalog: catalog.NewHandler(catalogSvc, middleware.RequireAdmin(cfg.AdminEmails)),
	})
	return r, signer
}

func serve(r http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesMountedAtRootAndAPI(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/health", "/api/health", "/data", "/api/data", "/tables", "/api/catalog/products"} {
		rec := serve(r, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d body=%s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestUploadThroughAPIPrefix(t *testing.T) {
	r, _ := newTestRouter(t)
	payload, _ := json.Marshal(map[string]string{
		"file":     base64.StdEncoding.EncodeToString([]byte("Name,Qty\nPen,3\n")),
		"filename": "stock.csv",
	})
	rec := serve(r, http.MethodPost, "/api/upload", payload, map[string]string{"Content-Type": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d body=%s", rec.Code, rec.Body.String())
	}

	rec = serve(r, http.MethodGet, "/data", nil, nil)
	var data struct {
		Data      []map[string]any `json:"data"`
		TableName string           `json:"tableName"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Data) != 1 || data.TableName != rows.MergedTableName {
		t.Fatalf("unexpected data: %+v", data)
	}
}

func TestMethodNotAllowedAndPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := serve(r, http.MethodPut, "/upload", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"error":"Method not allowed"}` {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	rec = serve(r, http.MethodOptions, "/api/upload", nil, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "{}" {
		t.Fatalf("preflight: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}
}

func TestMeReportsTokenIdentity(t *testing.T) {
	r, signer := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	token, err := signer.Sign(auth.Claims{Sub: "google:7", Email: "owner@example.com", Admin: true})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec = serve(r, http.MethodGet, "/api/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}
	var me map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me["email"] != "owner@example.com" || me["admin"] != true {
		t.Fatalf("unexpected me: %v", me)
	}
}

func TestCronAcceptsSecretAlongsideIdentity(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := serve(r, http.MethodPost, "/api/cron/auto-delete", nil, map[string]string{"Authorization": "Bearer cron"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cron status %d body=%s", rec.Code, rec.Body.String())
	}
	rec = serve(r, http.MethodGet, "/cron/auto-delete", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9000": ":9000", ":7000": ":7000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
