// Package backend builds the storage, report cache and upload archive the
// server runs on, as selected by configuration.
package backend

import (
	"context"
	"time"

	"boqtrack/internal/archive"
	"boqtrack/internal/cache"
	"boqtrack/internal/services"
	"boqtrack/internal/store"
)

// CleanupFunc releases a resource opened by the factory.
type CleanupFunc func() error

// Probe is a named readiness check on an opened resource.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// Result holds everything the factory opened. Archive is nil when uploads
// are not archived.
type Result struct {
	Store   store.Store
	Reports cache.Cache[services.Summary]
	Archive archive.Archive
	Probes  []Probe

	cleanups []CleanupFunc
}

// Config holds configuration for backend creation.
type Config struct {
	Type StoreType

	SQLiteDBPath string
	PostgresDSN  string

	ReportCache     CacheType
	RedisAddr       string
	RedisPassword   string
	ReportCacheTTL  time.Duration
	ReportCacheSize int

	Archive       ArchiveType
	ArchiveDir    string
	ArchiveBucket string
}

type StoreType string

const (
	MemoryStore   StoreType = "memory"
	SQLiteStore   StoreType = "sqlite"
	PostgresStore StoreType = "postgres"
)

func (t StoreType) String() string { return string(t) }

func (t StoreType) IsValid() bool {
	switch t {
	case MemoryStore, SQLiteStore, PostgresStore:
		return true
	default:
		return false
	}
}

type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (t CacheType) IsValid() bool { return t == MemoryCache || t == RedisCache }

type ArchiveType string

const (
	NoArchive   ArchiveType = "none"
	DiskArchive ArchiveType = "disk"
	GCSArchive  ArchiveType = "gcs"
)

func (t ArchiveType) IsValid() bool {
	switch t {
	case NoArchive, DiskArchive, GCSArchive:
		return true
	default:
		return false
	}
}
