// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateOperationName(t *testing.T) {
	valid := []string{
		"checkout",
		"api.get-user",
		"db_query",
		"op1",
		"A",
		strings.Repeat("a", 128),
	}
	for _, name := range valid {
		if err := ValidateOperationName(name); err != nil {
			t.Errorf("ValidateOperationName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"result/checkout", // slash collides with key segments
		".leading-dot",
		"-leading-hyphen",
		"has space",
		"has\ttab",
		"emoji⚡",
		strings.Repeat("a", 129),
	}
	for _, name := range invalid {
		if err := ValidateOperationName(name); err == nil {
			t.Errorf("ValidateOperationName(%q) = nil, want error", name)
		}
	}
}
