// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mockable provides a wall clock that tests can pin to series
// expiration boundaries.
package mockable

import (
	"sync"
	"time"
)

// Clock acts as a thin wrapper around global time that allows for easy testing.
// It is safe for concurrent use.
type Clock struct {
	mu    sync.RWMutex
	faked bool
	time  time.Time
}

// Set the time on the clock
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = true
	c.time = t
}

// SetUnix pins the clock to a unix timestamp.
func (c *Clock) SetUnix(unix uint64) {
	c.Set(time.Unix(int64(unix), 0))
}

// Advance moves a pinned clock forward by d. An unpinned clock is pinned to
// the current time first.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.faked {
		c.time = time.Now()
		c.faked = true
	}
	c.time = c.time.Add(d)
}

// Sync this clock with global time
func (c *Clock) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faked = false
}

// Time returns the time on this clock
func (c *Clock) Time() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.faked {
		return c.time
	}
	return time.Now()
}

// Unix returns the unix timestamp on this clock. Expiration checks compare
// against this value.
func (c *Clock) Unix() uint64 {
	unix := max(c.Time().Unix(), 0)
	return uint64(unix)
}
