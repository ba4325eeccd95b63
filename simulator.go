// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"log"
	"sync"
	"time"
)

// simulator is the process-wide Virtual Time Simulator singleton
// (spec.md §4.D). Exactly one mutex serialises every mutation of its
// fields; one condition variable is broadcast whenever the instant
// changes or the intercepting flag turns off.
//
// Translated function-for-function from
// original_source/src/ClockSimulator.cpp.
type simulator struct {
	mu           sync.Mutex
	cond         *sync.Cond
	instant      Instant
	clients      int
	intercepting bool
	timers       map[int32]*vtd
	posix        posixTimerTable
	sockets      *socketTimeouts
}

func newSimulator() *simulator {
	s := &simulator{
		instant: 1_000_000_000, // 1 second, so zero remains the disarm sentinel
		timers:  make(map[int32]*vtd),
		posix:   newPosixTimerTable(),
		sockets: newSocketTimeouts(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

var (
	simOnce sync.Once
	sim     *simulator
)

// instance returns the lazily-initialised process-wide simulator. Every
// override reaches the simulator through this single entry point - no
// instance handle is threaded through caller code (spec.md §9).
func instance() *simulator {
	simOnce.Do(func() {
		sim = newSimulator()
	})
	return sim
}

// now returns the current virtual instant.
func (s *simulator) now() Instant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instant
}

// isIntercepting reports whether at least one client handle is alive.
func (s *simulator) isIntercepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intercepting
}

// addClient increments the active-client count, flipping the
// intercepting flag on for the 0->1 transition.
func (s *simulator) addClient() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients++
	if s.clients == 1 {
		s.intercepting = true
	}
}

// removeClient decrements the active-client count, flipping the
// intercepting flag off and releasing every outstanding waiter on the
// 1->0 transition.
func (s *simulator) removeClient() {
	s.mu.Lock()
	s.clients--
	if s.clients == 0 {
		s.intercepting = false
		s.mu.Unlock()
		s.cond.Broadcast()
		return
	}
	s.mu.Unlock()
}

// handleExpiringFds evicts every VTD whose user side has closed, then
// fires every surviving VTD whose deadline the current instant has
// reached. Must be called with s.mu held.
func (s *simulator) handleExpiringFds() {
	for fd, t := range s.timers {
		if t.userClosed() {
			t.close()
			delete(s.timers, fd)
		}
	}
	for _, t := range s.timers {
		t.advanceTo(s.instant)
	}
}

// advance increases the instant by d, fires due timers, then wakes every
// waiter so they can re-check their predicate.
func (s *simulator) advance(d time.Duration) {
	s.mu.Lock()
	s.instant = s.instant.Add(d)
	s.handleExpiringFds()
	s.mu.Unlock()
	s.cond.Broadcast()
}

// setTime overwrites the instant outright; moving it backward is
// permitted (spec.md §4.D) - this is how settimeofday-style resets are
// modeled, and it means now() is not guaranteed monotonic across
// setTime calls.
func (s *simulator) setTime(t Instant) {
	s.mu.Lock()
	s.instant = t
	s.handleExpiringFds()
	s.mu.Unlock()
	s.cond.Broadcast()
}

// waitUntil blocks until either the instant has reached t or the
// simulator has been deactivated (the last client handle dropped).
// A deactivation mid-wait is not an error: the caller proceeds as if the
// wait completed normally (spec.md §5, §7).
func (s *simulator) waitUntil(t Instant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.intercepting && s.instant < t {
		s.cond.Wait()
	}
	if !s.intercepting && s.instant < t {
		log.Printf("vtime: client handle dropped while a wait for instant %d was still pending; releasing it at instant %d", t, s.instant)
	}
}

// timerfdCreate allocates a fresh VTD and registers it, returning the
// user-visible fd. If the kernel recycled a fd number that still has a
// stale registry entry, that entry's user side must already be closed;
// it is evicted before the new one is inserted.
func (s *simulator) timerfdCreate() (int32, error) {
	v, err := openVTD()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fd := v.userFd()
	if existing, ok := s.timers[fd]; ok {
		existing.close()
		delete(s.timers, fd)
	}
	s.timers[fd] = v
	return fd, nil
}

// timerfdSetTime arms or disarms the VTD registered under fd, firing
// immediately (handleExpiringFds) if the new expiration has already
// elapsed.
func (s *simulator) timerfdSetTime(fd int32, expiration Instant, interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.timers[fd]
	if !ok {
		return ErrInvalidParam
	}
	v.setTime(expiration, interval)
	s.handleExpiringFds()
	return nil
}

// timerfdGetTime reports the remaining time and interval for fd. A
// disarmed timer reports value=0 and, by the same convention the
// original project uses, interval=0.
func (s *simulator) timerfdGetTime(fd int32) (value time.Duration, interval time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.timers[fd]
	if !ok {
		return 0, 0, ErrInvalidParam
	}
	if v.nextExpiration == 0 {
		return 0, 0, nil
	}
	return v.nextExpiration.Sub(s.instant), v.interval, nil
}

// closeTimerfd removes fd's VTD from the registry and closes both of its
// descriptors. It backs TimerfdClose and disposes of the timers the
// multiplexing overrides inject, so a closed timer doesn't linger in the
// registry until the next advance happens to probe it.
func (s *simulator) closeTimerfd(fd int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.timers[fd]; ok {
		v.close()
		_ = v.user.Close()
		delete(s.timers, fd)
	}
}

func (s *simulator) socketTimeoutRegistry() *socketTimeouts {
	return s.sockets
}
