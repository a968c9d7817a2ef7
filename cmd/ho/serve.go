package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/handoff/internal/credentials"
	"github.com/zulandar/handoff/internal/pipeline"
	"github.com/zulandar/handoff/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API",
		Long:  "Serves the JSON API used by UI clients. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "handoff.yaml", "path to Handoff config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	settings, err := loadRemoteSettings(gormDB, cfg)
	if err != nil {
		return err
	}
	client, err := buildRemoteClient(settings, credentials.Keyring{})
	if err != nil {
		return err
	}

	coord, err := pipeline.New(pipeline.Opts{DB: gormDB, Publisher: client})
	if err != nil {
		return err
	}

	if port <= 0 {
		port = cfg.Server.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx, server.StartOpts{
		DB:       gormDB,
		Pipeline: coord,
		Port:     port,
		Out:      cmd.OutOrStdout(),
	})
}
