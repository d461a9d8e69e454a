package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"childgen/internal/adapter/repo"
	"childgen/internal/domain"
	"childgen/internal/http/handlers"
	httpapi "childgen/internal/http/httpapi"
	"childgen/internal/imagegen"
	"childgen/internal/infra"
	"childgen/internal/infra/credentials"
	"childgen/internal/metrics"
	"childgen/internal/providers/replicate"
	"childgen/internal/uploads"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Postgres is optional: it backs the generation log and a stored token.
	var (
		generations domain.GenerationRepository
		recorder    imagegen.Recorder
		creds       *credentials.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		runner := infra.NewSQLRunner(pool, logger)
		genRepo := repo.NewGenerationRepository(runner)
		if err := genRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare generation log")
		}
		generations, recorder = genRepo, genRepo

		creds = credentials.NewStore(runner)
		if err := creds.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare credential store")
		}
	}

	token := cfg.ReplicateAPIToken
	if token == "" && creds != nil {
		stored, err := creds.ReplicateToken(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read stored replicate token")
		}
		token = stored
	}
	if token == "" {
		logger.Warn().Msg("REPLICATE_API_TOKEN not set, generation returns the fallback image")
	}

	store, closeStore, err := newUploadStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.UploadBackend).Msg("failed to initialise upload store")
	}
	defer closeStore()

	client := replicate.NewClient(replicate.Options{
		Token:              token,
		BaseURL:            cfg.ReplicateBaseURL,
		ModelVersion:       cfg.ReplicateModelVersion,
		Logger:             &logger,
		SubmitTimeout:      cfg.SubmitTimeout,
		PollRequestTimeout: cfg.PollRequestTimeout,
		Denylist:           cfg.OutputURLDenylist,
	})
	svc := imagegen.NewService(imagegen.Options{
		Runner:              client,
		Uploads:             store,
		Policy:              replicate.Policy{MaxAttempts: cfg.PollMaxAttempts, Interval: cfg.PollInterval},
		FallbackURL:         cfg.FallbackImageURL,
		OnUnavailable:       cfg.OnUnavailable,
		PublicBaseURL:       cfg.PublicBaseURL,
		MaxInlineImageBytes: cfg.MaxInlineImageBytes,
		Recorder:            recorder,
		Metrics:             m,
		Logger:              &logger,
	})

	app := handlers.NewApp(cfg, svc, store, &logger)
	app.Generations = generations
	app.Metrics = m

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr()).
			Str("upload_backend", cfg.UploadBackend).
			Str("on_unavailable", cfg.OnUnavailable).
			Bool("database", cfg.DatabaseURL != "").
			Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}

func newUploadStore(ctx context.Context, cfg *infra.Config) (uploads.Store, func(), error) {
	noop := func() {}
	switch cfg.UploadBackend {
	case infra.UploadBackendFile:
		store, err := uploads.NewFileStore(cfg.StoragePath)
		return store, noop, err
	case infra.UploadBackendRedis:
		client, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return uploads.NewRedisStore(client, cfg.UploadTTL), func() { _ = client.Close() }, nil
	case infra.UploadBackendS3:
		client, presign, err := infra.NewS3Clients(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		store, err := uploads.NewS3Store(client, presign, uploads.S3Options{
			Bucket:  cfg.S3Bucket,
			Expires: cfg.S3PresignExpires,
		})
		return store, noop, err
	default:
		return uploads.NewMemoryStore(), noop, nil
	}
}
