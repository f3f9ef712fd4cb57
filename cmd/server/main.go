package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/chessmatch-go/internal/api"
	"github.com/mcoot/chessmatch-go/internal/config"
	"github.com/mcoot/chessmatch-go/internal/factory"
	"github.com/mcoot/chessmatch-go/internal/logging"
	"github.com/mcoot/chessmatch-go/internal/relay"
	"github.com/mcoot/chessmatch-go/internal/transport/ws"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "server",
		Short:        "chessmatch pairing and relay server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ./chessmatch.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the server until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the server config file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			if path == "" {
				path = "chessmatch.yaml"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)

	return rootCmd
}

func serve(ctx context.Context, configPath string) error {
	cfg, usedPath, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("path", usedPath))

	app := factory.New(factory.Config{
		Logger: logger,
		Relay: relay.Options{
			SendBuffer:     cfg.Relay.SendBuffer,
			IncomingBuffer: cfg.Relay.IncomingBuffer,
		},
		WebSocket: ws.Options{
			ReadLimit:      cfg.WebSocket.ReadLimit,
			PingPeriod:     cfg.WebSocket.PingPeriod,
			PongWait:       cfg.WebSocket.PongWait,
			WriteWait:      cfg.WebSocket.WriteWait,
			AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		},
	})
	server := api.NewServer(app.Handler, cfg.Server, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCtx, stopApp := context.WithCancel(context.Background())
	appDone := make(chan struct{})
	go func() {
		defer close(appDone)
		app.Run(appCtx)
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		stopApp()
		<-appDone
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
		}
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Stop the relay and spectator hubs first: hijacked websockets are not
	// tracked by net/http and open streams would hold Shutdown until timeout
	stopApp()
	<-appDone

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
