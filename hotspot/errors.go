// Copyright 2026 The Ridemap Authors
// SPDX-License-Identifier: Apache-2.0

package hotspot

import (
	"errors"
	"fmt"
)

// ParamError reports an invalid clustering parameter. It is returned before
// any index construction or labeling work starts.
type ParamError struct {
	Param string
	Value any
	Why   string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("hotspot: %s=%v: %s", e.Param, e.Value, e.Why)
}

// IsParamError checks whether err wraps a ParamError.
func IsParamError(err error) bool {
	var pe *ParamError

	return errors.As(err, &pe)
}
