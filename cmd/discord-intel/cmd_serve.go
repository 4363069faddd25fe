package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intel.gg/discord-intel/internal/api"
	"intel.gg/discord-intel/internal/config"
	"intel.gg/discord-intel/internal/core"
	"intel.gg/discord-intel/internal/index"
)

func newServeCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only agent query API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required to serve the agent API")
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			llm, err := core.NewLLMService(cmd.Context(), cfg.GeminiAPIKey, logger)
			if err != nil {
				return err
			}
			defer llm.Close()

			pub, err := index.NewPublisher(cfg.IndexPath, llm, logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			handler := api.NewAPIHandler(st, pub, cfg.JWTSecret, logger)
			srv := &http.Server{
				Addr:         ":" + cfg.HTTPPort,
				Handler:      api.NewRouter(handler),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second, // embedding calls can take time
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("agent API listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down agent API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
