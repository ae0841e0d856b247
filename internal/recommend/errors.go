// Eventrec - Event Similarity Aggregation and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventrec

package recommend

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument marks a malformed query.
var ErrInvalidArgument = errors.New("invalid argument")

// Error classes for metrics and transport mapping.
const (
	ClassInvalidArgument = "invalid_argument"
	ClassInternal        = "internal"
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ErrorClass returns "" for nil, ClassInvalidArgument for request-shape
// failures and ClassInternal for everything else.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return ClassInvalidArgument
	default:
		return ClassInternal
	}
}
