// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampler

import (
	"context"
	"errors"
	"testing"
)

func TestStaticSampler(t *testing.T) {
	want := Usage{CPUPercent: 42.5, ResidentMemoryMB: 512}
	s := NewStaticSampler(want)

	got, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got != want {
		t.Errorf("usage = %+v, want %+v", got, want)
	}
}

func TestFailingSampler(t *testing.T) {
	s := NewFailingSampler(ErrUnavailable)
	_, err := s.Sample(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestProcessSampler(t *testing.T) {
	s, err := NewProcessSampler()
	if err != nil {
		t.Fatalf("NewProcessSampler: %v", err)
	}

	usage, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	// The test binary is alive, so resident memory must be nonzero. CPU
	// percent can legitimately read zero on the first interval.
	if usage.ResidentMemoryMB <= 0 {
		t.Errorf("resident memory = %v, want > 0", usage.ResidentMemoryMB)
	}
	if usage.CPUPercent < 0 {
		t.Errorf("cpu percent = %v, want >= 0", usage.CPUPercent)
	}
}
