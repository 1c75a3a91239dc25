// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for values that flow into
// storage keys and metric labels.
//
// Operation names are embedded in slash-delimited store keys and exported
// as metric label values; validating them up front prevents key-prefix
// collisions and label cardinality abuse.
package validation

import (
	"fmt"
	"regexp"
)

// operationPattern matches valid operation names.
// Allows: letters, digits, then dots, underscores, hyphens.
// Slashes are excluded because they delimit store key segments.
// Max length: 128 characters.
var operationPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,127}$`)

// ValidateOperationName checks that an operation name is safe to embed in
// store keys and metric labels.
//
// Valid names:
//   - 1-128 characters
//   - Start with a letter or digit
//   - Continue with letters, digits, dots, underscores, hyphens
//
// Example:
//
//	if err := validation.ValidateOperationName(name); err != nil {
//	    return fmt.Errorf("invalid operation: %w", err)
//	}
func ValidateOperationName(name string) error {
	if name == "" {
		return fmt.Errorf("operation name must not be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("operation name exceeds 128 characters")
	}
	if !operationPattern.MatchString(name) {
		return fmt.Errorf("operation name %q contains invalid characters (allowed: letters, digits, '.', '_', '-')", name)
	}
	return nil
}
