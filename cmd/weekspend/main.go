package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"weekspend/internal/amqp"
	"weekspend/internal/backend"
	"weekspend/internal/config"
	"weekspend/internal/core"
	apphttp "weekspend/internal/http"
	applog "weekspend/internal/log"
	"weekspend/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	be, err := backend.Open(cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	// AMQP is optional; without it writes simply skip event publishing.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	categories := core.DefaultCategories()
	if names := cfg.CategoryNames(); names != nil {
		categories = core.NewCategorySet(names)
		logger.Info("Using category override", "count", categories.Len())
	}

	expenses := services.NewExpenseService(be.Expenses, categories, events)
	budgets := services.NewBudgetService(be.Budgets, events)
	summaries := services.NewSummaryService(be.Expenses, be.Budgets, categories)

	srv := apphttp.NewServer(":"+cfg.Port, expenses, budgets, summaries, apphttp.Options{
		Users:         be.Users,
		Categories:    categories,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Expired sessions are swept hourly on the multi-user backends.
	var sweeper *cron.Cron
	if be.Users != nil {
		sweeper = cron.New()
		_, err := sweeper.AddFunc("@hourly", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := be.Users.DeleteExpiredSessions(ctx)
			if err != nil {
				logger.Error("Session sweep failed", "error", err)
				return
			}
			if n > 0 {
				logger.Info("Expired sessions removed", "count", n)
			}
		})
		if err != nil {
			logger.Error("Failed to schedule session sweep", "error", err)
			os.Exit(1)
		}
		sweeper.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if sweeper != nil {
			sweeper.Stop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting weekspend server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
