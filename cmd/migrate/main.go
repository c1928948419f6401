package main

// Run database migrations:
//   go run ./cmd/migrate            (Postgres via DATABASE_URL)
//   go run ./cmd/migrate -dialect sqlite

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"rowshare-backend/internal/shared/config"
	"rowshare-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	dialect := flag.String("dialect", string(db.DialectPostgres), "postgres or sqlite")
	flag.Parse()
	ctx := context.Background()

	var (
		sqlDB *sql.DB
		err   error
	)
	switch db.Dialect(*dialect) {
	case db.DialectSQLite:
		sqlDB, err = db.OpenSQLite(ctx, cfg.SQLitePath)
	case db.DialectPostgres:
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	default:
		log.Printf("unknown dialect %q", *dialect)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, db.Dialect(*dialect)); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}
	log.Printf("migrations applied (%s)", *dialect)
}
