package backend

import (
	"errors"
	"fmt"

	"boqtrack/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	cfg := Config{
		Type:         StoreType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,

		ReportCache:     CacheType(appConfig.ReportCache),
		RedisAddr:       appConfig.RedisAddr,
		RedisPassword:   appConfig.RedisPassword,
		ReportCacheTTL:  appConfig.ReportCacheTTL,
		ReportCacheSize: appConfig.ReportCacheSize,

		Archive:       ArchiveType(appConfig.ArchiveBackend),
		ArchiveDir:    appConfig.ArchiveDir,
		ArchiveBucket: appConfig.ArchiveBucket,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid store type: %q", c.Type)
	}
	switch c.Type {
	case SQLiteStore:
		if c.SQLiteDBPath == "" {
			return errors.New("SQLite database path is required for sqlite store")
		}
	case PostgresStore:
		if c.PostgresDSN == "" {
			return errors.New("postgres DSN is required for postgres store")
		}
	}

	if !c.ReportCache.IsValid() {
		return fmt.Errorf("invalid report cache: %q", c.ReportCache)
	}
	if c.ReportCache == RedisCache && c.RedisAddr == "" {
		return errors.New("redis address is required for redis report cache")
	}

	if !c.Archive.IsValid() {
		return fmt.Errorf("invalid archive: %q", c.Archive)
	}
	switch c.Archive {
	case DiskArchive:
		if c.ArchiveDir == "" {
			return errors.New("archive directory is required for disk archive")
		}
	case GCSArchive:
		if c.ArchiveBucket == "" {
			return errors.New("archive bucket is required for gcs archive")
		}
	}
	return nil
}
