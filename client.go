// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"sync/atomic"
	"time"
)

// Client is a scoped activation token for the virtual time simulator
// (spec.md §4.G). While at least one Client is alive, every override in
// this package takes the simulated branch; when the last one is closed,
// the simulator deactivates and every outstanding wait is released.
//
// Nested and concurrent Clients are legal and refcounted.
type Client struct {
	closed atomic.Bool
}

// NewClient activates the simulator (or keeps it active, if other
// clients already exist) and returns a handle the test driver uses to
// advance time and eventually deactivate it again.
func NewClient() *Client {
	instance().addClient()
	return &Client{}
}

// Close deactivates this handle. It is idempotent; only the first call
// has any effect.
//
// Implements the same Close() error shape as PollCloser elsewhere in
// this package.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		instance().removeClient()
	}
	return nil
}

// Now returns the simulator's current virtual instant.
func (c *Client) Now() Instant {
	return instance().now()
}

// Advance moves the virtual instant forward by d, firing any timer
// whose deadline has been reached and releasing any wait whose deadline
// has elapsed.
//
// ∀ d >= 0: Advance(d) increases Now() by exactly d (spec.md §8).
func (c *Client) Advance(d time.Duration) {
	instance().advance(d)
}

// SetTime overwrites the virtual instant outright, including backward in
// time; this is how settimeofday-style resets are modeled, and it is the
// one operation allowed to make Now() appear non-monotonic.
func (c *Client) SetTime(t Instant) {
	instance().setTime(t)
}
