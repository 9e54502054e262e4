package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/escape-engine/internal/commands"
	"github.com/jwebster45206/escape-engine/internal/config"
	"github.com/jwebster45206/escape-engine/internal/handlers"
	slackhost "github.com/jwebster45206/escape-engine/internal/host/slack"
	"github.com/jwebster45206/escape-engine/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot and the admin HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateSlack(); err != nil {
		return err
	}

	log := logger.Setup(cfg)
	log.Info("Starting escape engine",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName,
		"store_backend", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llm, err := newLLMService(cfg, log)
	if err != nil {
		return err
	}

	slack := slackhost.New(slackhost.Config{
		BotToken:      cfg.SlackBotToken,
		AppToken:      cfg.SlackAppToken,
		ParentChannel: cfg.SlackParentChannel,
	}, log)

	a, err := newApp(ctx, cfg, log, llm, slack)
	if err != nil {
		return err
	}
	defer a.Close(log)

	if err := a.engine.Resume(ctx); err != nil {
		return err
	}

	sessions := handlers.NewSessionsHandler(a.engine, log)
	health := handlers.NewHealthHandler(a.store, sessions, log)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.NewRouter(health, sessions, log),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("Admin server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := slack.Run(ctx, commands.NewDispatcher(a.engine, log).WithRoomLink(slack.RoomLink)); err != nil && ctx.Err() == nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Server is shutting down...")
	case err = <-errCh:
		log.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		log.Error("Server forced to shutdown", "error", serr)
	}

	log.Info("Server exited")
	return err
}
