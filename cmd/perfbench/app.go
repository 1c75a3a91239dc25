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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/perfbench/config"
	"github.com/AleutianAI/perfbench/regression"
	"github.com/AleutianAI/perfbench/store"
	"github.com/AleutianAI/perfbench/telemetry"
)

// =============================================================================
// DEPENDENCY WIRING
// =============================================================================

// openStore builds the configured store backend. Callers own Close.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendBadger:
		bcfg := store.DefaultBadgerConfig(cfg.Store.Path)
		bcfg.InMemory = cfg.Store.InMemory
		bcfg.SyncWrites = cfg.Store.SyncWrites
		bcfg.Logger = appLogger.Slog()
		return store.OpenBadgerStore(bcfg)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildSink composes the enabled metric sinks. The returned registry is
// nil unless the Prometheus sink is enabled.
func buildSink(cfg *config.Config) (telemetry.Sink, *prometheus.Registry, error) {
	var sinks []telemetry.Sink
	var registry *prometheus.Registry

	if cfg.Telemetry.Prometheus.Enabled {
		registry = prometheus.NewRegistry()
		pcfg := telemetry.DefaultPrometheusConfig()
		pcfg.Namespace = cfg.Telemetry.Prometheus.Namespace
		pcfg.Registry = registry
		promSink, err := telemetry.NewPrometheusSink(pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("building prometheus sink: %w", err)
		}
		sinks = append(sinks, promSink)
	}

	if cfg.Telemetry.Influx.Enabled {
		influxSink, err := telemetry.NewInfluxSink(&telemetry.InfluxConfig{
			URL:    cfg.Telemetry.Influx.URL,
			Token:  cfg.Telemetry.Influx.Token,
			Org:    cfg.Telemetry.Influx.Org,
			Bucket: cfg.Telemetry.Influx.Bucket,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("building influx sink: %w", err)
		}
		sinks = append(sinks, influxSink)
	}

	switch len(sinks) {
	case 0:
		return telemetry.NewNoopSink(), registry, nil
	case 1:
		return sinks[0], registry, nil
	default:
		composite, err := telemetry.NewCompositeSink(sinks...)
		if err != nil {
			return nil, nil, fmt.Errorf("building composite sink: %w", err)
		}
		return composite, registry, nil
	}
}

// buildDetector wires a regression detector over the given store.
func buildDetector(cfg *config.Config, st store.Store) *regression.Detector {
	return regression.NewDetector(
		regression.WithStore(st),
		regression.WithLogger(appLogger.Slog()),
		regression.WithConfig(cfg.Detector.DetectorConfig()),
	)
}
