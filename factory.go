// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
)

// Factory creates new VM instances.
type Factory struct {
	// Registerer the VM metrics are registered with. A fresh registry is used
	// when nil.
	Registerer metric.Registerer
}

func (f *Factory) New(log.Logger) (interface{}, error) {
	return &VM{registerer: f.Registerer}, nil
}
