package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boqtrack/internal/archive"
	"boqtrack/internal/cache"
	"boqtrack/internal/log"
	"boqtrack/internal/services"
	"boqtrack/internal/storage"
	"boqtrack/internal/store/memory"
)

const reportKeyPrefix = "boqtrack:report:"

type Factory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Factory{logger: logger.WithComponent(log.ComponentStorage)}
}

// Create opens the store, report cache and archive named by config. On
// error everything already opened is closed again.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := f.openStore(ctx, config, res); err != nil {
		return nil, errors.Join(err, res.Close())
	}
	if err := f.openReportCache(ctx, config, res); err != nil {
		return nil, errors.Join(err, res.Close())
	}
	if err := f.openArchive(ctx, config, res); err != nil {
		return nil, errors.Join(err, res.Close())
	}
	return res, nil
}

func (f *Factory) openStore(ctx context.Context, config Config, res *Result) error {
	var (
		repo *storage.Repository
		err  error
	)
	switch config.Type {
	case SQLiteStore:
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite store", "db_path", config.SQLiteDBPath)
	case PostgresStore:
		repo, err = storage.NewPostgresRepository(config.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized Postgres store")
	default:
		res.Store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory store")
		return nil
	}

	res.Store = repo
	res.Probes = append(res.Probes, Probe{Name: "database", Check: repo.Ping})
	res.cleanups = append(res.cleanups, repo.Close)
	return nil
}

func (f *Factory) openReportCache(ctx context.Context, config Config, res *Result) error {
	if config.ReportCache != RedisCache {
		size := config.ReportCacheSize
		if size < 1 {
			size = 100
		}
		res.Reports = cache.NewLRUCache[services.Summary](size, ttlOrDefault(config.ReportCacheTTL))
		return nil
	}

	client, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword)
	if err != nil {
		return fmt.Errorf("failed to connect report cache: %w", err)
	}
	res.Reports = cache.NewRedisCache[services.Summary](client, reportKeyPrefix, ttlOrDefault(config.ReportCacheTTL))
	res.Probes = append(res.Probes, Probe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}})
	res.cleanups = append(res.cleanups, client.Close)
	f.logger.InfoContext(ctx, "Initialized Redis report cache", "addr", config.RedisAddr)
	return nil
}

func (f *Factory) openArchive(ctx context.Context, config Config, res *Result) error {
	switch config.Archive {
	case DiskArchive:
		res.Archive = archive.NewDisk(config.ArchiveDir)
		f.logger.InfoContext(ctx, "Archiving uploads on disk", "dir", config.ArchiveDir)
	case GCSArchive:
		gcs, err := archive.NewGCS(ctx, config.ArchiveBucket)
		if err != nil {
			return fmt.Errorf("failed to initialize GCS archive: %w", err)
		}
		res.Archive = gcs
		res.cleanups = append(res.cleanups, gcs.Close)
		f.logger.InfoContext(ctx, "Archiving uploads to GCS", "bucket", config.ArchiveBucket)
	}
	return nil
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute
	}
	return ttl
}

// Close releases everything in reverse order of opening.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}
