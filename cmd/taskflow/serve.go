package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/taskflow-dev/taskflow/internal/audit"
	"github.com/taskflow-dev/taskflow/internal/auth"
	"github.com/taskflow-dev/taskflow/internal/config"
	"github.com/taskflow-dev/taskflow/internal/events"
	"github.com/taskflow-dev/taskflow/internal/handlers"
	"github.com/taskflow-dev/taskflow/internal/notify"
	"github.com/taskflow-dev/taskflow/internal/recurrence"
	"github.com/taskflow-dev/taskflow/internal/repository"
	"github.com/taskflow-dev/taskflow/internal/router"
	"github.com/taskflow-dev/taskflow/internal/scheduler"
	"github.com/taskflow-dev/taskflow/internal/services"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket endpoint and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := slog.Default().With("module", "server")
	gin.SetMode(cfg.GinMode)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}

	gdb, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(gdb)

	users := repository.NewUserRepository(gdb)
	tasks := repository.NewTaskRepository(gdb)
	audits := repository.NewAuditRepository(gdb)

	alerter := services.NewWebhookAlerter(cfg.AlertWebhookURL, cfg.AlertWebhookKind)

	recorder := audit.NewRecorder(audits)
	if alerter != nil {
		recorder.WithAlerter(alerter)
	}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(brokers, cfg.KafkaAuditTopic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		// Runs before Close: background publishes must reach the writer first.
		defer recorder.Wait()

		recorder.WithSink(publisher)
		log.Info("audit events published to kafka", "topic", cfg.KafkaAuditTopic)
	}

	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(registry)

	var background sync.WaitGroup

	if cfg.RedisURL != "" {
		client, err := notify.Connect(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		broker := notify.NewRedisBroker(client, notify.DefaultRedisChannel)
		dispatcher.WithBroker(broker)

		background.Add(1)
		go func() {
			defer background.Done()
			if err := dispatcher.Serve(ctx, broker); err != nil {
				log.Error("redis notification subscriber stopped", "error", err.Error())
			}
		}()
	}

	taskService := services.NewTaskService(tasks, users, recorder, dispatcher, recurrence.NewEngine(tasks))
	if alerter != nil {
		taskService.WithAlerter(alerter)
	}

	reminders := scheduler.NewScheduler(tasks, dispatcher, cfg.ReminderInterval, cfg.ReminderWindow)
	if err := reminders.Start(ctx); err != nil {
		return err
	}
	defer reminders.Stop()

	h := handlers.New(handlers.Options{
		DB:             gdb,
		Auth:           services.NewAuthService(users, tokens),
		Tasks:          taskService,
		Analytics:      services.NewAnalyticsService(tasks),
		Users:          users,
		Audits:         audits,
		Registry:       registry,
		CookieDomain:   cfg.CookieDomain,
		CookieTTL:      tokens.TTL(),
		AllowedOrigins: cfg.Origins(),
	})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.NewRouter(router.Config{
			Handler:        h,
			Tokens:         tokens,
			Users:          users,
			AllowedOrigins: cfg.Origins(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
	}

	background.Wait()
	return nil
}
