package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"rowshare-backend/internal/client"
	"rowshare-backend/internal/shared/config"
)

const (
	cfgKeyEnv           = "env"
	cfgKeyStore         = "store"
	cfgKeyDatabaseURL   = "database_url"
	cfgKeySQLitePath    = "sqlite_path"
	cfgKeyRetentionDays = "retention_days"
	cfgKeyObjectStore   = "object_store"
	cfgKeyLocalStoreDir = "local_store_dir"
	cfgKeyAWSRegion     = "aws_region"
	cfgKeyS3Bucket      = "s3_bucket"
	cfgKeyS3Prefix      = "s3_prefix"
	cfgKeySSEKMSKeyID   = "sse_kms_key_id"
	cfgKeyPublicBaseURL = "public_base_url"
	cfgKeyJWTSecret     = "jwt_secret"
	cfgKeyAPIURL        = "api_url"
	cfgKeyCronSecret    = "cron_secret"
)

// loadViper reads settings from the environment and an optional YAML file.
// Without an explicit path, ./rowshare.yaml is used when present.
func loadViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyEnv, "dev")
	v.SetDefault(cfgKeyStore, config.StoreSQLite)
	v.SetDefault(cfgKeySQLitePath, "./data/rowshare.db")
	v.SetDefault(cfgKeyRetentionDays, 30)
	v.SetDefault(cfgKeyObjectStore, "local")
	v.SetDefault(cfgKeyLocalStoreDir, "./data")
	v.SetDefault(cfgKeyPublicBaseURL, "http://localhost:8080")
	v.SetDefault(cfgKeyAPIURL, client.DefaultBaseURL)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rowshare")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// appConfig maps viper settings onto the server configuration.
func appConfig(v *viper.Viper) (config.Config, error) {
	cfg := config.Config{
		Env:             v.GetString(cfgKeyEnv),
		Store:           strings.ToLower(strings.TrimSpace(v.GetString(cfgKeyStore))),
		DatabaseURL:     v.GetString(cfgKeyDatabaseURL),
		SQLitePath:      v.GetString(cfgKeySQLitePath),
		RetentionDays:   v.GetInt(cfgKeyRetentionDays),
		ObjectStoreType: v.GetString(cfgKeyObjectStore),
		LocalStoreDir:   v.GetString(cfgKeyLocalStoreDir),
		AWSRegion:       v.GetString(cfgKeyAWSRegion),
		S3Bucket:        v.GetString(cfgKeyS3Bucket),
		S3Prefix:        v.GetString(cfgKeyS3Prefix),
		SSEKMSKeyID:     v.GetString(cfgKeySSEKMSKeyID),
		PublicBaseURL:   strings.TrimRight(v.GetString(cfgKeyPublicBaseURL), "/"),
		JWTSecret:       v.GetString(cfgKeyJWTSecret),
		CronSecret:      v.GetString(cfgKeyCronSecret),
	}
	switch cfg.Store {
	case config.StorePostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return cfg, errors.New("store=postgres requires database_url")
		}
	case config.StoreSQLite, config.StoreMemory:
	default:
		return cfg, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}
