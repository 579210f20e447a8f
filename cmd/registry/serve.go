package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/attestation_layer/internal/httpapi"
	"github.com/R3E-Network/attestation_layer/internal/middleware"
	"github.com/R3E-Network/attestation_layer/internal/platform/migrations"
)

var (
	serveNoSync  bool
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and the scheduled mirror sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := newChainClient()
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			if serveMigrate {
				if err := migrations.Apply(ctx, db); err != nil {
					return err
				}
			}
		}
		store := newStore(db)

		svc, err := newService(client, store)
		if err != nil {
			return err
		}

		if !serveNoSync {
			syncer := newSyncer(svc, store)
			go func() {
				if err := syncer.Run(ctx, cfg.Mirror.Schedule); err != nil {
					logger.Error(ctx, "mirror syncer stopped", err, nil)
				}
			}()
		}

		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst, logger)
		if err := limiter.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			return err
		}
		limiter.StartCleanup(ctx, time.Minute)

		server := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpapi.NewRouter(httpapi.Options{
				Service:     svc,
				Mirror:      store,
				Logger:      logger,
				RateLimiter: limiter,
				CORSOrigins: cfg.HTTP.CORSOrigins,
				ReadOnly:    cfg.ReadOnly(),
			}),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.HTTP.ReadTimeout,
			WriteTimeout:      cfg.HTTP.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info(ctx, "registry listening", map[string]interface{}{
				"addr":      cfg.HTTP.Addr,
				"package":   cfg.Registry.PackageID,
				"read_only": cfg.ReadOnly(),
			})
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return err
			}
		case <-ctx.Done():
		}

		logger.Info(context.Background(), "shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "Disable the scheduled mirror sync")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Apply database migrations on startup")
}
