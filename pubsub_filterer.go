// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/pubsub"

	"github.com/luxfi/optionvm/events"
)

type filterer struct {
	event APIEvent
	addrs []ids.ShortID
}

// newPubSubFilterer returns a filterer that notifies the connections
// watching the contract or either account of e.
func newPubSubFilterer(e events.Event) *filterer {
	addrs := make([]ids.ShortID, 0, 3)
	for _, addr := range []ids.ShortID{e.Contract, e.From, e.To} {
		if addr != ids.ShortEmpty {
			addrs = append(addrs, addr)
		}
	}
	return &filterer{
		event: newAPIEvent(e),
		addrs: addrs,
	}
}

// Apply the filter on the addresses.
func (f *filterer) Filter(filters []pubsub.Filter) ([]bool, interface{}) {
	resp := make([]bool, len(filters))
	for i, c := range filters {
		if c == nil {
			continue
		}
		for _, addr := range f.addrs {
			if c.Check(addr[:]) {
				resp[i] = true
				break
			}
		}
	}
	return resp, f.event
}
