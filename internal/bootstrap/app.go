package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	googleauth "rowshare-backend/internal/auth"
	"rowshare-backend/internal/catalog"
	"rowshare-backend/internal/rows"
	"rowshare-backend/internal/shared/auth"
	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/server"
	"rowshare-backend/internal/shared/server/middleware"
	"rowshare-backend/internal/shared/storage/db"
	"rowshare-backend/internal/shared/storage/object"
	localstore "rowshare-backend/internal/shared/storage/object/local"
	s3store "rowshare-backend/internal/shared/storage/object/s3"
	"rowshare-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config         config.Config
	Router         *gin.Engine
	DB             *sql.DB
	Dialect        db.Dialect
	Store          object.ObjectStore
	Signer         *auth.Signer
	UploadsRepo    rows.UploadsRepo
	CatalogRepo    catalog.Repo
	RowsService    *rows.Service
	CatalogService *catalog.Service
	RowsHandler    *rows.Handler
	CatalogHandler *catalog.Handler
	GoogleAuth     *googleauth.GoogleService
}

// Build prepares dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for connection setup.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	sqlDB, dialect, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Dialect: dialect,
		Store:   store,
		Signer:  signer,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:     app.Config,
		DB:         app.DB,
		Signer:     app.Signer,
		Rows:       app.RowsHandler,
		Catalog:    app.CatalogHandler,
		GoogleAuth: app.GoogleAuth,
	})
	return app, nil
}

// Close releases the database pool. The Lambda singleton is left open.
func (a *App) Close() error {
	if a == nil || a.DB == nil || db.IsLambdaRuntime() {
		return nil
	}
	return a.DB.Close()
}

// RunSweeper runs the retention sweep every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || a.RowsService == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.RowsService.Sweep(ctx)
			if err != nil {
				if errors.Is(err, rows.ErrNotConfigured) || ctx.Err() != nil {
					continue
				}
				telemetry.Error("sweep.failed", map[string]any{"err": err})
				continue
			}
			telemetry.Info("sweep.tick", map[string]any{"deleted": res.Deleted})
		}
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Dialect, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		if err := db.RunMigrations(ctx, sqlDB, db.DialectSQLite); err != nil {
			_ = sqlDB.Close()
			return nil, "", fmt.Errorf("sqlite migrations: %w", err)
		}
		log.Printf("bootstrap: using sqlite store at %s", cfg.SQLitePath)
		return sqlDB, db.DialectSQLite, nil
	case config.StorePostgres:
		var (
			sqlDB *sql.DB
			err   error
		)
		if db.IsLambdaRuntime() {
			sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
		} else {
			sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		}
		if err != nil {
			if isDevLike(cfg.Env) {
				log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
				return nil, "", nil
			}
			return nil, "", err
		}
		return sqlDB, db.DialectPostgres, nil
	default:
		if !isDevLike(cfg.Env) {
			log.Printf("bootstrap: no database configured for env=%s; row-share writes are disabled", cfg.Env)
		} else {
			log.Printf("bootstrap: using in-memory repositories")
		}
		return nil, "", nil
	}
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL+"/catalog/images"), nil
	}
}

func buildServices(app *App) {
	cfg := app.Config

	switch {
	case app.DB != nil && app.Dialect == db.DialectPostgres:
		app.UploadsRepo = &rows.PGRepo{DB: app.DB}
		app.CatalogRepo = &catalog.PGRepo{DB: app.DB}
	case app.DB != nil && app.Dialect == db.DialectSQLite:
		app.UploadsRepo = &rows.SQLiteRepo{DB: app.DB}
		app.CatalogRepo = &catalog.SQLiteRepo{DB: app.DB}
	case isDevLike(cfg.Env):
		app.UploadsRepo = rows.NewMemoryRepo()
		app.CatalogRepo = catalog.NewMemoryRepo()
	}

	app.RowsService = &rows.Service{
		Repo:      app.UploadsRepo,
		Archive:   app.Store,
		Retention: cfg.Retention(),
	}
	app.RowsHandler = rows.NewHandler(app.RowsService, !cfg.IsProduction(), cfg.CronSecret)

	if app.CatalogRepo != nil {
		app.CatalogService = &catalog.Service{Repo: app.CatalogRepo, Images: app.Store}
		app.CatalogHandler = catalog.NewHandler(app.CatalogService, middleware.RequireAdmin(cfg.AdminEmails))
	}

	app.GoogleAuth = googleauth.NewGoogleService(googleauth.GoogleConfig{
		ClientID:      cfg.GoogleClientID,
		ClientSecret:  cfg.GoogleClientSecret,
		RedirectURL:   cfg.GoogleRedirectURL,
		UIRedirectURL: cfg.UIRedirectURL,
		AdminEmails:   cfg.AdminEmails,
	}, app.Signer)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
