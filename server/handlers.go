// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/perfbench/benchmark"
	"github.com/AleutianAI/perfbench/regression"
	"github.com/AleutianAI/perfbench/store"
)

// DetectRequest is the POST /api/v1/detect body.
type DetectRequest struct {
	// Operation names the operation to check.
	Operation string `json:"operation" binding:"required"`

	// Samples are the current latency samples in milliseconds.
	Samples []float64 `json:"samples" binding:"required"`

	// BaselineID optionally pins the check to a specific baseline.
	BaselineID string `json:"baseline_id"`

	// CPUPercent and MemoryMB optionally enable the resource checks.
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleListResults returns every persisted result for one operation,
// newest first.
func handleListResults(st store.Store, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		operation := c.Param("operation")
		entries, err := st.List(c.Request.Context(), benchmark.ResultPrefix(operation))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing results failed"})
			return
		}

		results := make([]*benchmark.Result, 0, len(entries))
		for _, entry := range entries {
			var r benchmark.Result
			if err := entry.Decode(&r); err != nil {
				logger.Warn("skipping undecodable result entry",
					slog.String("key", entry.Key),
					slog.String("error", err.Error()),
				)
				continue
			}
			results = append(results, &r)
		}
		// Store order is oldest-first.
		for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
			results[i], results[j] = results[j], results[i]
		}
		c.JSON(http.StatusOK, gin.H{
			"operation": operation,
			"results":   results,
		})
	}
}

// handleListBaselines returns recorded baselines, optionally filtered by
// the operation query parameter.
func handleListBaselines(detector *regression.Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		operation := c.Query("operation")
		baselines, err := detector.ListBaselines(c.Request.Context(), operation)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing baselines failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"baselines": baselines})
	}
}

// handleDetect runs an on-demand regression check over caller-supplied
// samples.
func handleDetect(detector *regression.Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DetectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var opts []regression.DetectOption
		if req.BaselineID != "" {
			opts = append(opts, regression.WithBaselineID(req.BaselineID))
		}
		if req.CPUPercent > 0 || req.MemoryMB > 0 {
			opts = append(opts, regression.WithCurrentUsage(req.CPUPercent, req.MemoryMB))
		}

		result, err := detector.DetectRegression(c.Request.Context(), req.Operation, req.Samples, opts...)
		switch {
		case errors.Is(err, regression.ErrInsufficientSamples):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, regression.ErrNoBaselineFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "detection failed"})
		default:
			c.JSON(http.StatusOK, result)
		}
	}
}
