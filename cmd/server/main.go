package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"robocomp/internal/api"
	"robocomp/internal/api/middleware"
	"robocomp/internal/app/notify"
	"robocomp/internal/app/service"
	"robocomp/internal/app/worker"
	"robocomp/internal/common/security"
	"robocomp/internal/domain/repository"
	"robocomp/internal/domain/repository/memory"
	"robocomp/internal/platform/config"
	"robocomp/internal/platform/database"
	"robocomp/internal/platform/logging"
	"robocomp/internal/platform/queue"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := map[string]func(context.Context) error{}

	// 2. Storage
	var repos repository.Repositories
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		repos = memory.New().Repositories()
		slog.Warn("using in-memory storage; data is lost on restart")
	default:
		db, err := database.Open(ctx, cfg.DBConnStr)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		repos = repository.NewPgRepositories(db)
		healthChecks["database"] = db.PingContext
	}

	// 3. Redis (optional)
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		var err error
		rdb, err = queue.Connect(ctx, queue.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// 4. Notifications: queued through Redis when available, in-process otherwise.
	recorder := worker.NewRecorder(repos.Notifications, rdb, cfg.NotificationChannelPrefix)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})

	var emitter notify.Emitter
	var joinLimiter *middleware.RateLimiter
	if rdb != nil {
		emitter = notify.NewRedisQueue(rdb, cfg.NotificationQueueName)
		notificationWorker := worker.NewNotificationWorker(rdb, cfg.NotificationQueueName, cfg.NotificationDedupeTTL, recorder)
		go func() {
			defer close(workerDone)
			notificationWorker.Start(workerCtx)
		}()
		var err error
		joinLimiter, err = middleware.NewRateLimiter(rdb, "robocomp:", cfg.JoinRateLimitPerMinute, time.Minute)
		if err != nil {
			return err
		}
	} else {
		bus := notify.NewBus()
		bus.SubscribeAll(recorder.HandleEvent)
		emitter = bus
		close(workerDone)
		slog.Warn("redis disabled; notifications are recorded in-process and join attempts are not rate limited")
	}

	// 5. Services
	activity := service.NewActivityService(repos.Activities)
	services := api.Services{
		Competitions:  service.NewCompetitionService(repos.Competitions, activity, cfg.DefaultMaxTeamSize),
		Teams:         service.NewTeamService(repos.Teams, repos.Competitions, emitter, activity, cfg.DefaultMaxTeamSize),
		Approvals:     service.NewApprovalService(repos.Teams, repos.Competitions, emitter, activity, cfg.PendingTeamsLimit),
		Users:         service.NewUserService(repos.Users, activity),
		Notifications: service.NewNotificationService(repos.Notifications),
		Activity:      activity,
	}

	// 6. Router & HTTP Server
	router := api.NewRouter(services, api.Options{
		TokenAuth:      security.NewTokenAuth(cfg.JWTKey),
		RequestTimeout: cfg.RequestTimeout,
		JoinLimiter:    joinLimiter,
		HealthChecks:   healthChecks,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.APIPort, "storage", cfg.StorageDriver, "redis", cfg.RedisEnabled())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 7. Graceful Shutdown
	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	err := server.Shutdown(shutdownCtx)

	workerCancel() // Signal worker to stop
	<-workerDone
	if err != nil {
		return err
	}
	slog.Info("server and worker stopped gracefully")
	return nil
}
