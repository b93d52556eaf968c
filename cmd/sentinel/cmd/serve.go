package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"sentinel/internal/logger"
	"sentinel/internal/query"
	"sentinel/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only query facade HTTP server",
		Long: `Start the HTTP server exposing article state, audit trails, and the
review queue to analysts. The server reads from the database populated by
'sentinel run'; it never writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")

	return cmd
}

func runServe(ctx context.Context, port int, host string) error {
	log := logger.Get()
	log.Info("starting sentinel query facade")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	entities, err := store.NewPostgresEntityStore(cfg.Database.ConnectionString, cfg.Database.MaxConnections, cfg.Database.IdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer entities.Close()

	articles := store.NewArticleRepository(entities)

	var blob store.BlobStore
	if cfg.Blob.EncryptionKey != "" {
		key, err := hex.DecodeString(cfg.Blob.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to decode blob encryption key: %w", err)
		}
		fsBlob, err := store.NewFilesystemBlobStore(cfg.Blob.Directory, key)
		if err != nil {
			return fmt.Errorf("failed to open blob store: %w", err)
		}
		blob = fsBlob
	} else {
		log.Info("blob.encryption_key not configured, article content retrieval disabled")
	}

	var registry *prometheus.Registry
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
	}
	facade := query.NewFacade(articles, blob, registry)

	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      facade,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("query facade listening", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		log.Info("shutdown initiated", "signal", sig.String())

		shutdownTimeout := serverCfg.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("server stopped successfully")
		return nil
	}
}
