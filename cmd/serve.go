package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/tracksearch/internal/server"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// Serve runs the HTTP API and gRPC service until the context is cancelled (SIGINT/SIGTERM).
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}
	if port := cmd.Int("grpc-port"); port > 0 {
		cfg.GRPCPort = port
	}

	r.logger.Info("starting tracksearch", "version", version, "http", cfg.HTTPAddr(), "grpc", cfg.GRPCAddr())

	srv := server.New(cfg, r.catalog, shared.WithLogger(r.logger, "component", "server"), r.inst)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}

	r.logger.Info("server stopped")
	return nil
}
