// Command server runs the bazar identity and onboarding API.
//
// @title                       Bazar API
// @version                     1.0
// @description                 Identity lifecycle, onboarding, files and background tasks.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	_ "github.com/getbazar/bazar-api/docs"
	"github.com/getbazar/bazar-api/internal/api"
	"github.com/getbazar/bazar-api/internal/api/handler"
	"github.com/getbazar/bazar-api/internal/api/metrics"
	"github.com/getbazar/bazar-api/internal/core/policy"
	"github.com/getbazar/bazar-api/internal/core/ports"
	"github.com/getbazar/bazar-api/internal/core/service"
	"github.com/getbazar/bazar-api/internal/infrastructure/config"
	"github.com/getbazar/bazar-api/internal/infrastructure/db/mongo"
	"github.com/getbazar/bazar-api/internal/infrastructure/db/postgres"
	"github.com/getbazar/bazar-api/internal/infrastructure/db/redis"
	"github.com/getbazar/bazar-api/internal/infrastructure/identity/gotrue"
	"github.com/getbazar/bazar-api/internal/infrastructure/identity/local"
	"github.com/getbazar/bazar-api/internal/infrastructure/queue"
	"github.com/getbazar/bazar-api/internal/infrastructure/queue/sqs"
	"github.com/getbazar/bazar-api/internal/infrastructure/storage/minio"
	"github.com/getbazar/bazar-api/internal/infrastructure/storage/s3"
	"github.com/getbazar/bazar-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "bazar-api",
	})

	// --- Storage backends ---
	if err := postgres.ApplyMigrations(ctx, cfg.Postgres.URL); err != nil {
		return err
	}
	pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL, MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()
	if err := mongo.EnsureIndexes(ctx, mongoDB); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	// --- Adapters ---
	provider := metrics.InstrumentProvider(newIdentityProvider(cfg, mongoDB, rdb))

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	publisher, err := newTaskPublisher(ctx, cfg, rdb)
	if err != nil {
		return err
	}

	policies, err := policy.NewStore(cfg.PolicyFile, logger.Component("policy"))
	if err != nil {
		// The store denies everything until a reload succeeds.
		log.Error().Err(err).Str("path", cfg.PolicyFile).Msg("policy load failed")
	}
	go reloadOnHangup(ctx, policies)

	// --- Workers ---
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Queue.Workers, publisher, logger.Component("dispatcher"))
	dispatcher.Start(workerCtx)

	// --- Services ---
	registry := postgres.NewUserRegistry(pool)
	audit := mongo.NewAuditLog(mongoDB)

	router := api.NewRouter(api.Deps{
		Log:         log,
		CORSOrigins: cfg.CORSOrigins,
		Provider:    provider,
		Registry:    registry,
		Policies:    policies,
		Auth:        service.NewAuthService(provider, registry, logger.Component("auth")),
		Onboarding:  service.NewOnboardingService(provider, registry, audit, logger.Component("onboarding")),
		Users:       service.NewUserService(registry, audit, logger.Component("users")),
		Files:       service.NewFileService(postgres.NewFileRepository(pool), blobs, logger.Component("files")),
		Tasks:       service.NewTaskService(dispatcher, redis.NewIdempotencyStore(rdb), logger.Component("tasks")),
		Health: map[string]handler.Pinger{
			"postgres": pool,
			"mongo":    handler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
			"redis":    handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("identity_provider", cfg.Identity.Provider).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopWorkers()
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("received interruption signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	stopWorkers()
	dispatcher.Wait()
	log.Info().Msg("shutdown complete")
	return nil
}

func newIdentityProvider(cfg *config.Config, db *mongodrv.Database, rdb *goredis.Client) ports.IdentityProvider {
	id := cfg.Identity
	if id.Provider == config.ProviderGoTrue {
		return gotrue.NewClient(gotrue.Config{
			URL:         id.GoTrueURL,
			AnonKey:     id.GoTrueAnonKey,
			ServiceKey:  id.GoTrueServiceKey,
			JWTSecret:   id.JWTSecret,
			AutoConfirm: id.GoTrueAutoConfirm,
			Timeout:     id.GoTrueTimeout,
		})
	}
	return local.NewProvider(
		mongo.NewCredentialRepository(db),
		redis.NewRefreshTokenStore(rdb),
		local.Config{JWTSecret: id.JWTSecret, AccessTTL: id.AccessTokenTTL, RefreshTTL: id.RefreshTokenTTL},
	)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (ports.BlobStore, error) {
	st := cfg.Storage
	if st.Driver == config.StorageMinIO {
		return minio.New(ctx, minio.Config{
			Endpoint:  st.Endpoint,
			AccessKey: st.AccessKey,
			SecretKey: st.SecretKey,
			Bucket:    st.Bucket,
			Region:    st.Region,
			UseSSL:    st.UseSSL,
		})
	}
	return s3.New(ctx, s3.Config{
		Bucket:    st.Bucket,
		Region:    st.Region,
		Endpoint:  st.Endpoint,
		AccessKey: st.AccessKey,
		SecretKey: st.SecretKey,
	})
}

func newTaskPublisher(ctx context.Context, cfg *config.Config, rdb *goredis.Client) (ports.TaskPublisher, error) {
	if cfg.Queue.Driver == config.QueueSQS {
		return sqs.New(ctx, sqs.Config{QueueName: cfg.Queue.Name, Region: cfg.Queue.Region, Endpoint: cfg.Queue.Endpoint})
	}
	return redis.NewTaskPublisher(rdb, cfg.Queue.Name), nil
}

// reloadOnHangup re-reads the policy file on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, policies *policy.Store) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			_ = policies.Reload()
		}
	}
}
