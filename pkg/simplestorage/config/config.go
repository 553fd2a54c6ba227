package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/simple-storage/pkg/simplestorage"
	"github.com/tendant/simple-storage/pkg/simplestorage/cleanup"
	"github.com/tendant/simple-storage/pkg/simplestorage/events"
	"github.com/tendant/simple-storage/pkg/simplestorage/metrics"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/cached"
	"github.com/tendant/simple-storage/pkg/simplestorage/repo/memory"
	repopg "github.com/tendant/simple-storage/pkg/simplestorage/repo/postgres"
	reposqlite "github.com/tendant/simple-storage/pkg/simplestorage/repo/sqlite"
	fsstorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/fs"
	memorystorage "github.com/tendant/simple-storage/pkg/simplestorage/storage/memory"
	s3storage "github.com/tendant/simple-storage/pkg/simplestorage/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:                  "8080",
		Environment:           "development",
		DatabaseType:          "memory",
		DBSchema:              "storage",
		SQLitePath:            "./data/simple-storage.db",
		DefaultStorageBackend: "memory",
		StorageBackends: []StorageBackendConfig{
			{
				Name:   "memory",
				Type:   "memory",
				Config: map[string]interface{}{},
			},
		},
		CleanupInterval:    cleanup.DefaultInterval,
		TemporaryTTL:       simplestorage.DefaultTemporaryTTL,
		CacheTTL:           5 * time.Minute,
		EnableEventLogging: true,
		EventsTopic:        events.DefaultTopic,
	}
}

// ServerConfig represents configuration for the simple-storage service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres", "sqlite"
	DBSchema     string // Postgres schema to use (default: storage)
	SQLitePath   string // SQLite database file (default: ./data/simple-storage.db)
	AutoMigrate  bool   // Apply embedded Postgres migrations during Build

	// Storage configuration. Temporaries use TemporaryStorageBackend when
	// set and DefaultStorageBackend otherwise.
	DefaultStorageBackend   string
	TemporaryStorageBackend string
	StorageBackends         []StorageBackendConfig

	// Cleanup
	CleanupInterval time.Duration
	TemporaryTTL    time.Duration

	// Metadata cache; disabled when CacheSize is 0
	CacheSize int
	CacheTTL  time.Duration

	// Events
	EnableEventLogging bool // log lifecycle events through slog
	EnableEvents       bool // publish lifecycle events on an in-process watermill pub/sub
	EventsTopic        string
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("sqlite_path is required when using sqlite")
		}
	default:
		return errors.New("database_type must be 'memory', 'postgres' or 'sqlite'")
	}

	if c.findBackend(c.DefaultStorageBackend) == nil {
		return fmt.Errorf("default storage backend '%s' not found in configured backends", c.DefaultStorageBackend)
	}
	if c.TemporaryStorageBackend != "" && c.findBackend(c.TemporaryStorageBackend) == nil {
		return fmt.Errorf("temporary storage backend '%s' not found in configured backends", c.TemporaryStorageBackend)
	}

	if c.CleanupInterval <= 0 {
		return errors.New("cleanup_interval must be positive")
	}
	if c.TemporaryTTL <= 0 {
		return errors.New("temporary_ttl must be positive")
	}
	if c.CacheSize < 0 {
		return errors.New("cache_size cannot be negative")
	}
	if c.CacheSize > 0 && c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive when the cache is enabled")
	}
	return nil
}

func (c *ServerConfig) findBackend(name string) *StorageBackendConfig {
	for i := range c.StorageBackends {
		if c.StorageBackends[i].Name == name {
			return &c.StorageBackends[i]
		}
	}
	return nil
}

// App holds everything Build wires together.
type App struct {
	Service   simplestorage.Service
	Scheduler *cleanup.Scheduler
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	PubSub    *gochannel.GoChannel // nil unless EnableEvents

	pool    *pgxpool.Pool
	closers []func() error
}

// Ping checks the metadata database when it is remote.
func (a *App) Ping(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

// Close stops the scheduler and releases connections, last opened first.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build creates the service, scheduler and collectors from the configuration.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	app := &App{Metrics: m, Registry: registry}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	attachmentStore, temporaryStore, err := c.buildStores(ctx, app, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if c.CacheSize > 0 {
		attachmentStore = cached.NewAttachmentStore(attachmentStore, c.CacheSize, c.CacheTTL, m)
		temporaryStore = cached.NewTemporaryStore(temporaryStore, c.CacheSize, c.CacheTTL, m)
	}

	repoLogger := simplestorage.WithRepositoryLogger[*simplestorage.Attachment](logger)
	options := []simplestorage.Option{
		simplestorage.WithAttachmentRepository(simplestorage.NewAttachmentRepository(attachmentStore, repoLogger)),
		simplestorage.WithTemporaryRepository(simplestorage.NewTemporaryRepository(temporaryStore,
			simplestorage.WithRepositoryLogger[*simplestorage.Temporary](logger))),
		simplestorage.WithMetrics(m),
		simplestorage.WithTemporaryTTL(c.TemporaryTTL),
		simplestorage.WithLogger(logger),
	}

	// Set up storage backends
	stores := make(map[string]simplestorage.BlobStore, len(c.StorageBackends))
	for _, backendConfig := range c.StorageBackends {
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		stores[backendConfig.Name] = store
	}
	temporaryBackend := c.TemporaryStorageBackend
	if temporaryBackend == "" {
		temporaryBackend = c.DefaultStorageBackend
	}
	options = append(options,
		simplestorage.WithAttachmentBackend(simplestorage.NewAttachmentBackend(c.DefaultStorageBackend, stores[c.DefaultStorageBackend])),
		simplestorage.WithTemporaryBackend(simplestorage.NewTemporaryBackend(temporaryBackend, stores[temporaryBackend])),
	)

	// Set up event sink
	switch {
	case c.EnableEvents:
		app.PubSub = events.NewGoChannel(nil)
		app.closers = append(app.closers, app.PubSub.Close)
		options = append(options, simplestorage.WithEventSink(events.NewPublisher(app.PubSub, c.EventsTopic)))
	case c.EnableEventLogging:
		options = append(options, simplestorage.WithEventSink(simplestorage.NewLoggingEventSink(logger)))
	}

	svc, err := simplestorage.New(options...)
	if err != nil {
		return nil, err
	}
	app.Service = svc

	app.Scheduler, err = cleanup.New(svc,
		cleanup.WithInterval(c.CleanupInterval),
		cleanup.WithLogger(logger),
		cleanup.WithRecorder(m),
	)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// buildStores creates the metadata stores based on the configuration
func (c *ServerConfig) buildStores(ctx context.Context, app *App, logger *slog.Logger) (simplestorage.Store[*simplestorage.Attachment], simplestorage.Store[*simplestorage.Temporary], error) {
	switch c.DatabaseType {
	case "memory":
		return memory.NewAttachmentStore(), memory.NewTemporaryStore(), nil
	case "postgres":
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, c.DatabaseURL, c.DBSchema, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := NewPostgresPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		app.pool = pool
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		return repopg.NewAttachmentStoreWithPool(pool), repopg.NewTemporaryStoreWithPool(pool), nil
	case "sqlite":
		db, err := reposqlite.Open(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		app.closers = append(app.closers, db.Close)
		return db.Attachments(), db.Temporaries(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// NewPostgresPool creates a pgx pool whose sessions use schema as search_path.
func NewPostgresPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres. It fails if the schema
// (when provided) cannot be selected.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := NewPostgresPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (simplestorage.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3Config(config.Config))

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

// s3Config maps backend settings onto the S3 client configuration. The
// bucket is created on first use unless create_bucket_if_not_exist is false.
func s3Config(config map[string]interface{}) s3storage.Config {
	return s3storage.Config{
		Region:             getString(config, "region", "us-east-1"),
		Bucket:             getString(config, "bucket", ""),
		AccessKeyID:        getString(config, "access_key_id", ""),
		SecretAccessKey:    getString(config, "secret_access_key", ""),
		Endpoint:           getString(config, "endpoint", ""),
		UsePathStyle:       getBool(config, "use_path_style", false),
		EnableSSE:          getBool(config, "enable_sse", false),
		SSEAlgorithm:       getString(config, "sse_algorithm", "AES256"),
		SSEKMSKeyID:        getString(config, "sse_kms_key_id", ""),
		SkipBucketCreation: !getBool(config, "create_bucket_if_not_exist", true),
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
