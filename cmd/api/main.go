package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/remindly/reminder-api/internal/config"
	dispatchHandler "github.com/remindly/reminder-api/internal/handler/dispatch"
	dlqHandler "github.com/remindly/reminder-api/internal/handler/dlq"
	healthHandler "github.com/remindly/reminder-api/internal/handler/health"
	promHandler "github.com/remindly/reminder-api/internal/handler/prometheus"
	statsHandler "github.com/remindly/reminder-api/internal/handler/stats"
	webhookHandler "github.com/remindly/reminder-api/internal/handler/webhook"
	"github.com/remindly/reminder-api/internal/middleware"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository/postgres"
	"github.com/remindly/reminder-api/internal/router"
	ackService "github.com/remindly/reminder-api/internal/service/ack"
	dlqService "github.com/remindly/reminder-api/internal/service/dlq"
	statsService "github.com/remindly/reminder-api/internal/service/stats"
	"github.com/remindly/reminder-api/internal/worker"
	"github.com/remindly/reminder-api/pkg/logger"
	"github.com/remindly/reminder-api/pkg/metrics"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	q, err := queue.New(queue.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer q.Close()

	m := metrics.New("reminder", "api")

	baseRepo := postgres.NewBaseRepository(db)
	recipientRepo := postgres.NewRecipientRepository(baseRepo)
	jobRepo := postgres.NewJobRepository(baseRepo)
	attemptRepo := postgres.NewAttemptLogRepository(baseRepo)
	integrationRepo := postgres.NewIntegrationRepository(baseRepo)

	dlqSvc := dlqService.NewService(q, recipientRepo, log)
	ackSvc := ackService.NewService(attemptRepo, jobRepo, log)
	statsSvc := statsService.NewService(q, recipientRepo, m)

	dispatcher := worker.NewDispatcher(recipientRepo, q, worker.DispatcherConfig{
		BatchSize: cfg.Worker.DispatchBatchSize,
		Interval:  cfg.Worker.DispatchInterval,
	}, log, m)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db, q),
		promHandler.New(),
		webhookHandler.NewHandler(integrationRepo, q, ackSvc, log),
		dlqHandler.NewHandler(dlqSvc),
		dispatchHandler.NewHandler(dispatcher),
		statsHandler.NewHandler(statsSvc),
		router.Config{
			RateLimit:  rate.Limit(100),
			RateBurst:  200,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
		log,
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The dispatcher runs embedded so a single api deployment keeps the
	// pipeline moving; POST /dispatcher/run stays available for operators.
	go dispatcher.Start(ctx)

	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
