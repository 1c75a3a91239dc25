// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	// URL is the InfluxDB server URL. Required.
	URL string

	// Token is the API token. Required.
	Token string

	// Org is the InfluxDB organization. Required.
	Org string

	// Bucket is the destination bucket. Required.
	Bucket string

	// Measurement is the measurement name observations are written under.
	// Default: "perfbench".
	Measurement string
}

// Validate checks that required fields are set.
func (c *InfluxConfig) Validate() error {
	if c.URL == "" || c.Token == "" || c.Org == "" || c.Bucket == "" {
		return errors.New("influx sink requires url, token, org, and bucket")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Influx Sink
// -----------------------------------------------------------------------------

// InfluxSink exports observations to InfluxDB as time-series points.
//
// Description:
//
//	Uses the client's non-blocking write API: points are buffered and
//	written in background batches, so Emit never waits on the network.
//	Write errors surface on the client's error channel and are dropped
//	here, which matches the fire-and-forget sink contract.
//
// Thread Safety: Safe for concurrent use.
type InfluxSink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	measurement string

	mu     sync.Mutex
	closed bool
}

// NewInfluxSink creates an InfluxDB sink.
//
// Inputs:
//   - config: Sink configuration. Must not be nil.
//
// Outputs:
//   - *InfluxSink: The new sink. Caller must Close it.
//   - error: Non-nil if configuration is invalid.
func NewInfluxSink(config *InfluxConfig) (*InfluxSink, error) {
	if config == nil {
		return nil, errors.New("config must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	measurement := config.Measurement
	if measurement == "" {
		measurement = "perfbench"
	}

	client := influxdb2.NewClient(config.URL, config.Token)
	return &InfluxSink{
		client:      client,
		writeAPI:    client.WriteAPI(config.Org, config.Bucket),
		measurement: measurement,
	}, nil
}

// Emit implements Sink. The observation is buffered; delivery is async.
func (s *InfluxSink) Emit(ctx context.Context, metric string, value float64, labels map[string]string, ts time.Time) error {
	if ctx == nil {
		return ErrNilContext
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.mu.Unlock()

	point := influxdb2.NewPoint(
		s.measurement,
		labels,
		map[string]interface{}{metric: value},
		ts,
	)
	s.writeAPI.WritePoint(point)
	return nil
}

// Flush forces delivery of buffered points.
func (s *InfluxSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	s.mu.Unlock()

	s.writeAPI.Flush()
	return nil
}

// Close flushes buffered points and shuts down the client. Idempotent.
func (s *InfluxSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeAPI.Flush()
	s.client.Close()
	return nil
}

// Verify interface compliance at compile time.
var _ Sink = (*InfluxSink)(nil)
