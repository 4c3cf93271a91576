// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wrappers collects the errors of a series of setup steps.
package wrappers

import "errors"

// Errs accumulates errors. Err joins every non-nil error added, in order.
type Errs struct {
	Err error
}

func (errs *Errs) Errored() bool {
	return errs.Err != nil
}

// Add records every non-nil error.
func (errs *Errs) Add(errors ...error) {
	for _, err := range errors {
		if err != nil {
			errs.Err = join(errs.Err, err)
		}
	}
}

func join(a, b error) error {
	if a == nil {
		return b
	}
	return errors.Join(a, b)
}
