// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/staledoc/services/staledoc/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /v1/check for editors and pre-commit hooks",
		Long: `Start an HTTP server that checks Python sources sent as JSON.

Endpoints:
  POST /v1/check  {"path": "pkg/mod.py", "source": "...", "strategy": "tree"}
  GET  /healthz
  GET  /metrics   Prometheus metrics

The server binds to loopback by default and stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().StringVar(&a.addr, "addr", "", "listen address (default from config, 127.0.0.1:8765)")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("addr") {
		a.cfg.Server.Addr = a.addr
		if err := a.cfg.Validate(); err != nil {
			return usageError(err)
		}
	}
	if !a.logger.Enabled(cmd.Context(), slog.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	runner, err := a.newRunner(nil)
	if err != nil {
		return usageError(err)
	}

	srv := server.New(runner, a.cfg.Server,
		server.WithMetricsHandler(a.telemetry.MetricsHandler()),
		server.WithVersion(version),
		server.WithLogger(a.logger),
	)
	if err := srv.Run(cmd.Context()); err != nil {
		return &exitError{code: exitViolations, err: err}
	}
	return nil
}
