package cli

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/kafka"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/objectstore"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/ingest"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

// stores groups the persistence adapters for one backend
type stores struct {
	folders     driven.FolderStore
	permissions driven.PermissionStore
	documents   driven.DocumentStore
	chunks      driven.ChunkStore
	chat        driven.ChatStore
	// index is nil when the backend has no native vector search
	index driven.VectorIndex
	// lock is nil for sqlite, which runs in a single process
	lock  driven.DistributedLock
	db    http.Pinger
	close func() error
}

func postgresConfig(cfg *config.Config) postgres.Config {
	pc := postgres.DefaultConfig(cfg.Database.URL)
	if cfg.Database.MaxOpenConns > 0 {
		pc.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		pc.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime
	}
	return pc
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case driverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &stores{
			folders:     sqlite.NewFolderStore(db),
			permissions: sqlite.NewPermissionStore(db),
			documents:   sqlite.NewDocumentStore(db),
			chunks:      sqlite.NewChunkStore(db, cfg.Embedding.Dimensions),
			chat:        sqlite.NewChatStore(db),
			db:          db,
			close:       db.Close,
		}, nil

	case driverPostgres:
		db, err := postgres.Connect(ctx, postgresConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.InitSchema(ctx, cfg.Embedding.Dimensions); err != nil {
			db.Close()
			return nil, err
		}
		chunks := postgres.NewChunkStore(db, cfg.Embedding.Dimensions)
		return &stores{
			folders:     postgres.NewFolderStore(db),
			permissions: postgres.NewPermissionStore(db),
			documents:   postgres.NewDocumentStore(db),
			chunks:      chunks,
			chat:        postgres.NewChatStore(db),
			index:       chunks,
			lock:        postgres.NewAdvisoryLock(db),
			db:          db,
			close:       db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// application holds everything serve needs and how to release it
type application struct {
	server  *http.Server
	runtime *runtime.Services
	closers []func() error
	logger  *zap.Logger
}

// buildApplication opens every configured backend and wires the services.
// Optional backends (redis, kafka, object store) are skipped when unset.
func buildApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (app *application, err error) {
	app = &application{logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return app, err
	}
	app.closers = append(app.closers, st.close)
	checks := map[string]http.Pinger{"database": st.db}

	var cache driven.EmbeddingCache
	lock := st.lock
	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return app, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		cache = redisadapter.NewEmbeddingCache(client)
		lock = redisadapter.NewLock(client)
		checks["redis"] = redisPinger{client}
		logger.Info("redis enabled for ingest locks and query cache")
	}

	var publisher driven.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return app, fmt.Errorf("create kafka publisher: %w", err)
		}
		app.closers = append(app.closers, p.Close)
		publisher = p
		logger.Info("audit events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	var locator driven.ObjectLocator
	if cfg.ObjectStore.Endpoint != "" {
		l, err := objectstore.NewLocator(objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			Region:    cfg.ObjectStore.Region,
			UseSSL:    cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			return app, fmt.Errorf("create object locator: %w", err)
		}
		locator = l
	}

	app.runtime = runtime.NewServices(domain.NewRuntimeConfig(cfg.Database.Driver))
	app.closers = append(app.closers, app.runtime.Close)
	if err := app.runtime.Configure(ctx, ai.NewFactory(), cfg.EmbeddingSettings(), cfg.LLMSettings(), logger); err != nil {
		return app, err
	}

	normalisers := ingest.DefaultRegistry()
	pipeline := ingest.DefaultPipeline()
	logger.Info("ingest pipeline ready",
		zap.Strings("content_types", normalisers.List()),
		zap.Strings("stages", pipeline.List()),
	)

	permissions := services.NewPermissionService(st.folders, st.permissions, publisher, logger)
	folders := services.NewFolderService(st.folders, permissions, publisher, logger)
	chat := services.NewChatService(st.chat)
	documents := services.NewDocumentService(services.DocumentServiceConfig{
		Documents:      st.documents,
		Chunks:         st.chunks,
		Permissions:    permissions,
		Services:       app.runtime,
		Normalisers:    normalisers,
		Pipeline:       pipeline,
		Lock:           lock,
		Locator:        locator,
		Publisher:      publisher,
		EmbedBatchSize: cfg.Embedding.BatchSize,
		LockTTL:        cfg.Retrieval.IngestLockTTL,
		DownloadExpiry: cfg.Retrieval.DownloadExpiry,
		Logger:         logger,
	})
	retrieval := services.NewRetrievalService(services.RetrievalConfig{
		Permissions:   permissions,
		Folders:       st.folders,
		Chunks:        st.chunks,
		Index:         st.index,
		SearchTimeout: cfg.Retrieval.SearchTimeout,
		Logger:        logger,
	})
	query := services.NewQueryService(services.QueryServiceConfig{
		Retrieval:       retrieval,
		Chat:            chat,
		Permissions:     permissions,
		Folders:         st.folders,
		Documents:       st.documents,
		Chunks:          st.chunks,
		Services:        app.runtime,
		Cache:           cache,
		CacheTTL:        cfg.Redis.CacheTTL,
		DefaultMinScore: cfg.Retrieval.MinScore,
		Logger:          logger,
	})

	app.server = http.NewServer(http.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         VersionString(),
		CORSOrigins:     cfg.Server.CORSOrigins,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, http.Services{
		Auth:        services.NewAuthService(auth.NewAdapter(cfg.Auth.JWTSecret, cfg.Auth.Issuer)),
		Folders:     folders,
		Permissions: permissions,
		Documents:   documents,
		Query:       query,
		Chat:        chat,
	}, checks, logger)

	return app, nil
}

// Close releases resources in reverse order of acquisition
func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type redisPinger struct {
	client goredis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
