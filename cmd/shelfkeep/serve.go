package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfkeep/shelfkeep"
	"github.com/shelfkeep/shelfkeep/config"
	"github.com/shelfkeep/shelfkeep/database"
	"github.com/shelfkeep/shelfkeep/filesystem"
	shelfhttp "github.com/shelfkeep/shelfkeep/http"
	"github.com/shelfkeep/shelfkeep/openlibrary"
	"github.com/shelfkeep/shelfkeep/s3store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the Shelfkeep HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP server port")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	repo, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()

	slog.Info("connected to database", "type", cfg.Database.Type)

	var assets shelfkeep.AssetStore
	var uploads http.Handler

	switch cfg.Storage.Type {
	case "filesystem":
		if err = os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
			return fmt.Errorf("create uploads directory: %w", err)
		}

		root, openErr := os.OpenRoot(cfg.Storage.Path)
		if openErr != nil {
			return fmt.Errorf("open uploads root: %w", openErr)
		}
		defer func() { _ = root.Close() }()

		assets = filesystem.NewAssetStore(root, "/uploads")
		uploads = http.FileServerFS(root.FS())
	case "s3":
		store, s3Err := s3store.NewAssetStore(ctx, cfg.S3StoreConfig())
		if s3Err != nil {
			return fmt.Errorf("create s3 store: %w", s3Err)
		}
		assets = store
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	slog.Info("storage ready", "type", cfg.Storage.Type)

	service, err := shelfkeep.NewLibraryService(repo, assets, shelfkeep.ServiceConfig{
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	search := openlibrary.NewClient(cfg.Search.UserAgent, cfg.Search.RPS, cfg.Search.MaxRetries)

	handlerConfig := shelfhttp.HandlerConfig{
		Password:        cfg.Auth.Password,
		MaxUploadSize:   cfg.Server.MaxUploadSize,
		DatabaseBackend: cfg.Database.Type,
		StorageBackend:  cfg.Storage.Type,
		CORS:            cfg.CORS,
	}

	handler := shelfhttp.NewHandler(&handlerConfig, service, search, uploads)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "database", cfg.Database.Type, "storage", cfg.Storage.Type)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
