package bootstrap

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"rowshare-backend/internal/rows"
	"rowshare-backend/internal/shared/auth"
	"rowshare-backend/internal/shared/config"
)

func testConfig(t *testing.T, store string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Env:             "dev",
		Store:           store,
		SQLitePath:      filepath.Join(dir, "rowshare.db"),
		RetentionDays:   30,
		CronSecret:      "cron",
		ObjectStoreType: "local",
		LocalStoreDir:   filepath.Join(dir, "objects"),
		PublicBaseURL:   "http://localhost:8080",
		AdminEmails:     []string{"owner@example.com"},
	}
}

func upload(t *testing.T, h http.Handler, name, csv string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"file":     base64.StdEncoding.EncodeToString([]byte(csv)),
		"filename": name,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildWiresStores(t *testing.T) {
	for _, store := range []string{config.StoreMemory, config.StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			app, err := Build(testConfig(t, store))
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.Close() })

			require.NotNil(t, app.RowsService.Repo)
			require.NotNil(t, app.CatalogHandler)

			rec := upload(t, app.Router, "Stock.csv", "Name,Qty\nPen,3\nInk,4\n")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			req := httptest.NewRequest(http.MethodGet, "/tables", nil)
			rec = httptest.NewRecorder()
			app.Router.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			var tables struct {
				Tables []struct {
					Name     string `json:"name"`
					RowCount int    `json:"rowCount"`
				} `json:"tables"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
			require.Len(t, tables.Tables, 1)
			assert.Equal(t, "Stock", tables.Tables[0].Name)
			assert.Equal(t, 2, tables.Tables[0].RowCount)
		})
	}
}

func TestBuildProductionWithoutDatabaseDisablesWrites(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.Env = "production"
	cfg.JWTSecret = "prod-secret"

	app, err := Build(cfg)
	require.NoError(t, err)
	assert.Nil(t, app.CatalogHandler)

	rec := upload(t, app.Router, "Stock.csv", "Name\nPen\n")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Database not configured"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/data", nil)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[],"columns":[],"uploadDate":null,"tableName":null}`, rec.Body.String())
}

func TestBuildProductionRequiresJWTSecret(t *testing.T) {
	cfg := testConfig(t, config.StoreMemory)
	cfg.Env = "production"
	_, err := Build(cfg)
	assert.True(t, errors.Is(err, auth.ErrMissingSecret), "got %v", err)
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	repo := rows.NewMemoryRepo()
	old := time.Now().Add(-40 * 24 * time.Hour)
	_, err := repo.InsertUnique(context.Background(), rows.Upload{
		UploadID:   "upload_old",
		TableName:  "Old",
		Columns:    []string{"Name"},
		Rows:       []rows.Row{{"id": "row_1", "Name": "x"}},
		UploadDate: old,
		CreatedAt:  old,
	}, old.Add(-rows.DefaultRetention))
	require.NoError(t, err)

	app := &App{RowsService: &rows.Service{Repo: repo}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		tables, err := repo.Tables(context.Background(), nil)
		return err == nil && len(tables) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestHealthReportsPoolForSQLite(t *testing.T) {
	app, err := Build(testConfig(t, config.StoreSQLite))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "sqlite", body["store"])
	pool, ok := body["pool"].(map[string]any)
	require.True(t, ok, "pool stats missing: %v", body)
	assert.EqualValues(t, 1, pool["max_open"])
}
