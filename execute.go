// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package optionvm

import (
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/optionvm/events"
)

// execute runs fn as one state transition. Every write fn makes, including
// token balances in other namespaces and the events it emits, is committed
// when fn succeeds and discarded when it fails.
func (vm *VM) execute(op string, fn func() error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if !vm.initialized {
		return ErrNotInitialized
	}

	start := time.Now()
	if err := fn(); err != nil {
		vm.abort(op, err)
		return err
	}
	if err := vm.db.Commit(); err != nil {
		vm.abort(op, err)
		return err
	}

	for _, f := range vm.onCommit {
		f()
	}
	vm.onCommit = nil

	committed := vm.pending.Drain()
	vm.indexer.Apply(committed)
	vm.history.append(committed)
	for _, e := range committed {
		vm.pubsub.Publish(newPubSubFilterer(e))
	}
	vm.metrics.MarkEvents(len(committed))
	vm.metrics.MarkCommitted(op, time.Since(start))
	vm.log.Debug("operation committed",
		log.String("op", op),
		log.Int("events", len(committed)),
	)
	return nil
}

// afterCommit defers an in-memory update until the operation in flight has
// been committed.
func (vm *VM) afterCommit(f func()) {
	vm.onCommit = append(vm.onCommit, f)
}

func (vm *VM) abort(op string, err error) {
	vm.db.Abort()
	vm.pending.Reset()
	vm.onCommit = nil
	vm.metrics.MarkAborted(op)
	vm.log.Debug("operation aborted",
		log.String("op", op),
		log.Err(err),
	)
}

// view runs fn under the read lock.
func (vm *VM) view(fn func() error) error {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized {
		return ErrNotInitialized
	}
	return fn()
}

// history retains the most recent committed events. Sequence numbers are
// assigned in commit order starting at zero.
type history struct {
	limit  int
	first  uint64
	events []events.Event
}

func newHistory(limit int) history {
	return history{limit: limit}
}

func (h *history) append(committed []events.Event) {
	if h.limit == 0 {
		h.first += uint64(len(committed))
		return
	}
	h.events = append(h.events, committed...)
	if excess := len(h.events) - h.limit; excess > 0 {
		h.events = append(h.events[:0:0], h.events[excess:]...)
		h.first += uint64(excess)
	}
}

// next is the sequence number the next committed event will get.
func (h *history) next() uint64 {
	return h.first + uint64(len(h.events))
}

// since returns up to limit events starting at sequence number from, and the
// sequence number to continue from. Events that were already evicted are
// skipped.
func (h *history) since(from uint64, limit int) ([]events.Event, uint64) {
	from = max(from, h.first)
	end := h.next()
	if from >= end {
		return nil, end
	}
	selected := h.events[from-h.first:]
	if limit > 0 && len(selected) > limit {
		selected = selected[:limit]
	}
	out := make([]events.Event, len(selected))
	copy(out, selected)
	return out, from + uint64(len(out))
}
