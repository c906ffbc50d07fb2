package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/remindly/reminder-api/internal/provider"
	queue "github.com/remindly/reminder-api/internal/queue/redis"
	"github.com/remindly/reminder-api/internal/repository/postgres"
	"github.com/remindly/reminder-api/internal/worker"
	"github.com/remindly/reminder-api/pkg/logger"
	"github.com/remindly/reminder-api/pkg/metrics"
)

// workerEnv is the worker binary's configuration. It runs in containers
// and is configured by environment only.
type workerEnv struct {
	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true"`
	RedisURL          string        `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	PollInterval      time.Duration `envconfig:"POLL_INTERVAL" default:"1s"`
	SendTimeout       time.Duration `envconfig:"SEND_TIMEOUT" default:"15s"`
	DispatchEmbedded  bool          `envconfig:"DISPATCH_EMBEDDED" default:"false"`
	DispatchBatchSize int           `envconfig:"DISPATCH_BATCH_SIZE" default:"100"`
	DispatchInterval  time.Duration `envconfig:"DISPATCH_INTERVAL" default:"1m"`
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
	ReconcileStale    time.Duration `envconfig:"RECONCILE_STALE_AFTER" default:"10m"`
	HealthPort        string        `envconfig:"HEALTH_PORT" default:"8081"`
}

func main() {
	log := logger.NewLogger(nil)

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal(err, "failed to load worker configuration")
	}

	db, err := sqlx.Connect("postgres", env.DatabaseURL)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	q, err := queue.New(queue.Config{URL: env.RedisURL}, log)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer q.Close()

	m := metrics.New("reminder", "worker")

	baseRepo := postgres.NewBaseRepository(db)
	recipientRepo := postgres.NewRecipientRepository(baseRepo)
	jobRepo := postgres.NewJobRepository(baseRepo)
	attemptRepo := postgres.NewAttemptLogRepository(baseRepo)
	integrationRepo := postgres.NewIntegrationRepository(baseRepo)

	providers := provider.NewFactory(integrationRepo, log)

	processor := worker.NewProcessor(q, recipientRepo, jobRepo, attemptRepo, providers,
		worker.ProcessorConfig{
			PollInterval: env.PollInterval,
			SendTimeout:  env.SendTimeout,
		}, log, m)

	reconciler := worker.NewReconciler(recipientRepo, worker.ReconcilerConfig{
		Interval:   env.ReconcileInterval,
		StaleAfter: env.ReconcileStale,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startHealthServer(env.HealthPort, db, log)

	go reconciler.Start(ctx)

	if env.DispatchEmbedded {
		dispatcher := worker.NewDispatcher(recipientRepo, q, worker.DispatcherConfig{
			BatchSize: env.DispatchBatchSize,
			Interval:  env.DispatchInterval,
		}, log, m)
		go dispatcher.Start(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	processor.Start(ctx)
}

func startHealthServer(port string, db *sqlx.DB, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			log.Fatal(err, "health server failed")
		}
	}()
}
