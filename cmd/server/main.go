package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ifuryst/repurpose/internal/config"
	"github.com/ifuryst/repurpose/internal/observability"
	"github.com/ifuryst/repurpose/internal/server"
	"github.com/ifuryst/repurpose/internal/service"
	"github.com/ifuryst/repurpose/pkg/logger"
)

var (
	configPath string
	envFile    string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "repurpose",
	Short: "Repurpose - Turn long-form content into platform-ready posts",
	Long:  `Repurpose extracts text from documents and web pages and generates LinkedIn posts, Twitter threads, blog posts and email sequences from it.`,
	RunE:  runServer,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job processor without the HTTP API",
	RunE:  runWorker,
}

var totpCmd = &cobra.Command{
	Use:   "totp",
	Short: "Generate a TOTP secret for the operator endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		auth := service.NewAuthService(&config.AuthConfig{}, zap.NewNop())
		secret, err := auth.GenerateSecret()
		if err != nil {
			return err
		}
		url, err := auth.GenerateQRCode("Repurpose", "operator", secret)
		if err != nil {
			return err
		}
		fmt.Printf("Secret: %s\n", secret)
		fmt.Printf("URL:    %s\n", url)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Repurpose %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.AddCommand(workerCmd, totpCmd, versionCmd)
}

// setup loads the environment, configuration, logger and tracing
func setup(ctx context.Context) (*config.Config, *zap.Logger, func(context.Context) error, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdownTracing, err := observability.InitOTel(ctx, &cfg.Tracing, version, cfg.Server.Environment, appLogger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	return cfg, appLogger, shutdownTracing, nil
}

func runServer(*cobra.Command, []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, appLogger, shutdownTracing, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appLogger.Sync()
	defer shutdownTracing(context.Background())

	appLogger.Info("Starting Repurpose server", zap.String("version", version))

	deps, err := server.BuildDependencies(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv := server.NewServer(cfg, deps, appLogger)

	go func() {
		if err := srv.Start(ctx); err != nil {
			appLogger.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	waitForSignal(ctx, appLogger)

	// Graceful shutdown
	if err := srv.Shutdown(context.Background()); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Server exited")
	return nil
}

func runWorker(*cobra.Command, []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, appLogger, shutdownTracing, err := setup(ctx)
	if err != nil {
		return err
	}
	defer appLogger.Sync()
	defer shutdownTracing(context.Background())

	// the worker always runs the engine, whatever the API process does
	cfg.Processor.Disabled = false

	appLogger.Info("Starting Repurpose worker", zap.String("version", version))

	deps, err := server.BuildDependencies(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	srv := server.NewServer(cfg, deps, appLogger)
	srv.StartBackground()

	waitForSignal(ctx, appLogger)

	if err := srv.Shutdown(context.Background()); err != nil {
		appLogger.Error("Worker forced to shutdown", zap.Error(err))
		return err
	}

	appLogger.Info("Worker exited")
	return nil
}

func waitForSignal(ctx context.Context, appLogger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		appLogger.Info("Shutting down...")
	case <-ctx.Done():
		appLogger.Info("Context cancelled")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
