package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dibs-assistant/internal/api"
	"dibs-assistant/internal/common/camunda"
	"dibs-assistant/internal/common/config"
	crmquery "dibs-assistant/internal/workers/crm/crm-query"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP API and, when a broker is configured, the crm-query worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := wireApp(ctx, cfg, 15)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	log := a.log

	checks := map[string]api.Check{"postgres": a.pg.Ping}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	if a.es != nil {
		checks["elasticsearch"] = a.es.Ping
	}

	var zeebe *camunda.Client
	if cfg.Camunda.Enabled() {
		err := retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda, log)
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			return err
		}
		checks["zeebe"] = zeebe.HealthCheck

		wcfg := config.GetWorkerConfig(cfg, crmquery.TaskType)
		handler := crmquery.NewHandler(
			crmquery.LoadConfig(wcfg, cfg.CRM),
			a.extractor,
			a.resolver,
			a.validator,
			a.obs,
			log,
		)
		zeebe.StartWorker(crmquery.TaskType, wcfg, handler.Handle)
	}

	handlers := api.NewHandlers(api.Deps{
		Chat:          a.orchestrator,
		Conversations: a.conversations,
		Clients:       a.clients,
		Validator:     a.validator,
		Checks:        checks,
	}, cfg.Chat.DemoUserID, log)

	srv := &http.Server{
		Addr:        cfg.Server.Address,
		Handler:     api.NewRouter(handlers, serviceName, cfg.Server.Debug),
		ReadTimeout: config.GetDuration(cfg.Server.ReadTimeout),
		// WriteTimeout stays at the configured value, zero by default, so long
		// token streams are not cut off.
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		log.Info("Shutdown signal received, stopping server...", nil)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
		}
	}
	log.Info("chat-server stopped gracefully", nil)
	return nil
}
