// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"errors"
	"fmt"
)

// CoordinateError reports a point rejected during index construction.
// Index is the position of the offending point in the input slice.
type CoordinateError struct {
	Index int
	Point Point
	Why   string
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("spatial: point %d (lat=%v lng=%v): %s", e.Index, e.Point.Lat, e.Point.Lng, e.Why)
}

// IsCoordinateError checks whether err wraps a CoordinateError.
func IsCoordinateError(err error) bool {
	var ce *CoordinateError

	return errors.As(err, &ce)
}
