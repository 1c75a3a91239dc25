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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/perfbench/server"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var serveAddress string // Listen address override

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only benchmark API",
	Long: `Serves recorded results and baselines over HTTP, plus on-demand
regression detection. The API never mutates benchmark data.

Endpoints:
  GET  /healthz
  GET  /api/v1/results/:operation
  GET  /api/v1/baselines[?operation=]
  POST /api/v1/detect
  GET  /metrics          (when the Prometheus sink is enabled)

Example:
  perfbench serve --config perfbench.yaml --address :8080`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (default from config)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServeCommand(cmd *cobra.Command, args []string) error {
	st, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	_, registry, err := buildSink(appConfig)
	if err != nil {
		return err
	}

	detector := buildDetector(appConfig, st)

	opts := []server.Option{server.WithLogger(appLogger.Slog())}
	if registry != nil {
		opts = append(opts, server.WithMetricsRegistry(registry))
	}
	srv, err := server.NewServer(st, detector, opts...)
	if err != nil {
		return err
	}

	address := serveAddress
	if address == "" {
		address = appConfig.Server.Address
	}
	return srv.Run(address)
}
