// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package regression

// severityAdvice leads the recommendation list when severity is non-none.
var severityAdvice = map[Severity]string{
	SeverityMinor:    "Minor slowdown: review recent changes touching this operation's hot path.",
	SeverityMajor:    "Major slowdown: bisect recent commits and profile the operation before the next release.",
	SeverityCritical: "Critical slowdown: treat as a release blocker; profile immediately and consider rolling back the suspect change.",
}

// metricAdvice maps each failing metric to a concrete followup.
var metricAdvice = map[string]string{
	"average_duration": "Mean latency exceeded its budget: capture a CPU profile and compare flame graphs against the baseline build.",
	"p95_duration":     "Tail latency exceeded its budget: look for added lock contention, GC pressure, or slow-path fallbacks.",
	"cpu_usage":        "CPU usage grew well past baseline: check for busy-wait loops, extra serialization, or removed caching.",
	"memory_usage":     "Resident memory grew past baseline: capture a heap profile and look for new allocations retained across iterations.",
}

// recommendations builds the deterministic advice list for a verdict.
// The order follows the failing-metrics order, with severity advice first.
func recommendations(severity Severity, failingMetrics []string) []string {
	var recs []string
	if advice, ok := severityAdvice[severity]; ok {
		recs = append(recs, advice)
	}
	for _, metric := range failingMetrics {
		if advice, ok := metricAdvice[metric]; ok {
			recs = append(recs, advice)
		}
	}
	return recs
}
