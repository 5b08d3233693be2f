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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pk55-api/config"
	"pk55-api/database"
	"pk55-api/handlers"
	"pk55-api/logger"
	"pk55-api/metrics"
	"pk55-api/middleware"
	"pk55-api/queue"
	"pk55-api/services/auth"
	"pk55-api/services/discount"
	"pk55-api/services/media"
	"pk55-api/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the discount scheduler",
	RunE:  runServe,
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFiles()...)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Encoding); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore retries the connection a few times, so the API can start
// alongside its database.
func openStore(cfg database.DatabaseConfig) (database.Store, error) {
	var store database.Store
	var err error
	for retries := 0; retries < 5; retries++ {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		store, err = database.Open(ctx, cfg)
		cancel()
		if err == nil {
			return store, nil
		}
		retryDelay := time.Duration(retries+1) * time.Second
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", retries+1),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to database after retries: %w", err)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("Connected to the database", zap.String("driver", cfg.Database.Driver))

	m := metrics.New(prometheus.DefaultRegisterer)
	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, store)

	mediaStore, err := media.New(context.Background(), cfg.Media)
	if err != nil {
		return err
	}
	if !mediaStore.Configured() {
		logger.Warn("S3_BUCKET not set, image uploads are disabled")
	}

	deps := handlers.RouterDeps{
		Store:          store,
		JWT:            jwtService,
		AllowRegister:  cfg.Auth.AllowRegister,
		Media:          mediaStore,
		Remover:        mediaStore,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
	}

	// Redis backs both the auth rate limiter and the asset cleanup queue.
	var jobQueue *queue.Queue
	var assetWorker *worker.Worker
	if cfg.Redis.URL != "" {
		jobQueue, err = queue.NewQueue(cfg.Redis.URL, queue.DefaultQueueName)
		if err != nil {
			return err
		}
		logger.Info("Connected to Redis")

		if _, err := jobQueue.RequeueProcessing(context.Background()); err != nil {
			logger.Warn("Could not requeue interrupted jobs", zap.Error(err))
		}

		assetWorker = worker.NewWorker(jobQueue, mediaStore, m)
		assetWorker.Start(cfg.Redis.WorkerConcurrency)

		deps.Remover = jobQueue
		deps.Redis = jobQueue
		deps.RateLimiter, err = middleware.NewRateLimiter(jobQueue.Client(), cfg.Server.TrustedProxies)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("REDIS_URL not set, rate limiting disabled and assets are deleted inline")
	}

	scheduler := discount.NewScheduler(store, discount.WithMetrics(m))
	go scheduler.Initialize(context.Background())
	if err := scheduler.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:           cfg.Server.Addr(),
		Handler:        handlers.NewRouter(deps),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		logger.Info("Shutdown signal received, gracefully shutting down...")
	case runErr = <-serverErr:
		logger.Error("Server error", zap.Error(runErr))
	}
	signal.Stop(stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Stopping discount scheduler...")
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Discount tick still running at shutdown")
	}

	if assetWorker != nil {
		logger.Info("Stopping asset worker...")
		assetWorker.Stop()
	}

	logger.Info("Closing database connections...")
	if err := store.Close(shutdownCtx); err != nil {
		logger.Warn("Error closing database", zap.Error(err))
	}

	if jobQueue != nil {
		logger.Info("Closing Redis connections...")
		jobQueue.Close()
	}

	logger.Info("Server exited properly")
	return runErr
}
