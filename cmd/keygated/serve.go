package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/relaykeys/keygated/cmd/keygated/di"
	"github.com/relaykeys/keygated/internal/proxy"
)

var (
	logLevel  string
	logFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the key lifecycle service",
	Long: `Start the key lifecycle service: rotate, verify, and cool down the
configured upstream keys, and serve their health over the status endpoint.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error) - overrides config")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "",
		"log format (json, console) - overrides config")
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize services")
		return err
	}

	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	cfg := cfgSvc.Config

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger, err := proxy.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	lifecycleSvc, err := di.Invoke[*di.LifecycleService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build key lifecycle")
		return err
	}

	verifierSvc := di.MustInvoke[*di.VerifierService](container)
	verifierSvc.Verifier.Start()

	serverSvc, err := di.Invoke[*di.StatusServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to create status server")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgSvc.StartWatching(ctx)

	log.Info().Int("keys", len(lifecycleSvc.Get().Registry.Keys())).Msg("key lifecycle started")

	return runWithGracefulShutdown(serverSvc.Server, container, cfg.Server.Listen)
}

// runWithGracefulShutdown handles signal-based graceful shutdown.
func runWithGracefulShutdown(server *proxy.Server, container *di.Container, listenAddr string) error {
	done := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}

		if err := container.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("service shutdown error")
		}

		close(done)
	}()

	log.Info().Str("listen", listenAddr).Msg("starting keygated")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}
