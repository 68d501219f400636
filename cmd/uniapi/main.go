package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fangyuan99/uni-api/internal/config"
	"github.com/fangyuan99/uni-api/internal/httpapi"
	"github.com/fangyuan99/uni-api/internal/logging"
)

const (
	appName    = "uni-api"
	appVersion = "0.1.0"
)

func main() {
	var configPath string
	var addr string
	var logLevel string
	var logFormat string

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "uni-api — unified LLM gateway",
		Long:  "uni-api routes OpenAI-compatible chat completion requests across multiple upstream providers, normalizing streaming and credential rotation.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, addr, logLevel, logFormat)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "api.yaml", "path to the provider configuration file")
	serveCmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json, console)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(configPath, addr, logLevel, logFormat string) error {
	log, err := logging.New(logging.Config{
		Level:      logLevel,
		Format:     logFormat,
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("starting uni-api",
		zap.String("version", appVersion),
		zap.String("addr", addr),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	srv, err := httpapi.New(cfg, log)
	if err != nil {
		log.Fatal("failed to build server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return err
	}

	log.Info("stopped cleanly")
	return nil
}
