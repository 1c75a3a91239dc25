// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// defaultSuiteConcurrency bounds the suite worker pool.
const defaultSuiteConcurrency = 4

// SuiteCase names one operation to benchmark within a suite.
type SuiteCase struct {
	Name      string
	Operation Operation
	Options   []RunOption
}

// SuiteResult collects the per-case outcomes of a suite run.
type SuiteResult struct {
	Results map[string]*Result
	Errors  map[string]error
}

// RunSuite benchmarks a set of cases through a bounded worker pool.
//
// Description:
//
//	Cases run concurrently, at most concurrency at a time (values < 1
//	fall back to the default of 4). A failing case is recorded in the
//	returned SuiteResult and does not abort the remaining cases;
//	context cancellation does.
//
// Outputs:
//   - *SuiteResult: Per-case results and errors. Never nil.
//   - error: Non-nil only when the context was cancelled.
func (e *Engine) RunSuite(ctx context.Context, cases []SuiteCase, concurrency int) (*SuiteResult, error) {
	if concurrency < 1 {
		concurrency = defaultSuiteConcurrency
	}

	suite := &SuiteResult{
		Results: make(map[string]*Result, len(cases)),
		Errors:  make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, c := range cases {
		g.Go(func() error {
			result, err := e.Run(gctx, c.Name, c.Operation, c.Options...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("suite case failed",
					slog.String("case", c.Name),
					slog.String("error", err.Error()),
				)
				suite.Errors[c.Name] = err
				// Cancellation is the only error that stops the suite.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				return nil
			}
			suite.Results[c.Name] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return suite, fmt.Errorf("benchmark suite interrupted: %w", err)
	}
	return suite, nil
}
