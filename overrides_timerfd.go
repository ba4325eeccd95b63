// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"sync"
	"time"
)

// TFD_TIMER_CANCEL_ON_SET is rejected by TimerfdCreate when intercepting
// (spec.md §6 "Unsupported flags"): there is no way to honor
// cancel-on-settime semantics against a virtual clock without also
// simulating signal-like cancellation delivery, which is out of scope.
const TFD_TIMER_CANCEL_ON_SET = 0x2

// TimerSpec mirrors struct itimerspec in duration form.
type TimerSpec struct {
	Value    time.Duration
	Interval time.Duration
}

// realTimerfd tracks the teacher's genuine kernel TimerFD for user fds
// created while not intercepting, so TimerfdSettime/TimerfdGettime can
// find the right implementation regardless of which path created the fd.
var realTimerfds = struct {
	mu sync.Mutex
	m  map[int32]*TimerFD
}{m: make(map[int32]*TimerFD)}

// TimerfdCreate creates a new timer. With no Client active, flags are
// passed through to the real timerfd_create(2). While a Client is active,
// flags may not request TFD_TIMER_CANCEL_ON_SET or TFD_NONBLOCK; spec.md
// §6 calls both out as explicitly unsupported for virtual timers.
func TimerfdCreate(flags uintptr) (int32, error) {
	s := instance()
	if !s.isIntercepting() {
		t, err := newTimerFD(CLOCK_MONOTONIC, TFD_CLOEXEC|flags)
		if err != nil {
			return -1, err
		}
		fd := t.Fd()
		realTimerfds.mu.Lock()
		realTimerfds.m[int32(fd)] = t
		realTimerfds.mu.Unlock()
		return int32(fd), nil
	}
	if flags&(TFD_TIMER_CANCEL_ON_SET|TFD_NONBLOCK) != 0 {
		return -1, ErrInvalidParam
	}
	return s.timerfdCreate()
}

// TimerfdSettime arms or disarms fd. expiration is interpreted as
// absolute or relative-to-now per abs, matching timerfd_settime(2)'s
// TFD_TIMER_ABSTIME flag.
func TimerfdSettime(fd int32, abs bool, value TimerSpec) (old TimerSpec, err error) {
	if value.Value < 0 || value.Interval < 0 {
		return TimerSpec{}, ErrInvalidParam
	}

	s := instance()
	if !s.isIntercepting() {
		realTimerfds.mu.Lock()
		t, ok := realTimerfds.m[fd]
		realTimerfds.mu.Unlock()
		if !ok {
			return TimerSpec{}, ErrInvalidParam
		}
		oldVal, oldInt, err := t.GetTime()
		if err != nil {
			return TimerSpec{}, err
		}
		old = TimerSpec{Value: time.Duration(oldVal), Interval: time.Duration(oldInt)}
		if abs {
			if err := t.ArmAt(int64(value.Value), int64(value.Interval)); err != nil {
				return old, err
			}
		} else if err := t.ArmDuration(value.Value, value.Interval); err != nil {
			return old, err
		}
		return old, nil
	}

	oldVal, oldInt, err := s.timerfdGetTime(fd)
	if err != nil {
		return TimerSpec{}, err
	}
	old = TimerSpec{Value: oldVal, Interval: oldInt}

	var expiration Instant // zero disarms, as a zero Value does in timerfd_settime(2)
	if value.Value == 0 {
		expiration = 0
	} else if abs {
		expiration = Instant(value.Value)
	} else {
		expiration = s.now().Add(value.Value)
	}
	if err := s.timerfdSetTime(fd, expiration, value.Interval); err != nil {
		return old, err
	}
	return old, nil
}

// TimerfdGettime reports fd's remaining time and interval.
func TimerfdGettime(fd int32) (TimerSpec, error) {
	s := instance()
	if !s.isIntercepting() {
		realTimerfds.mu.Lock()
		t, ok := realTimerfds.m[fd]
		realTimerfds.mu.Unlock()
		if !ok {
			return TimerSpec{}, ErrInvalidParam
		}
		value, interval, err := t.GetTime()
		if err != nil {
			return TimerSpec{}, err
		}
		return TimerSpec{Value: time.Duration(value), Interval: time.Duration(interval)}, nil
	}
	value, interval, err := s.timerfdGetTime(fd)
	if err != nil {
		return TimerSpec{}, err
	}
	return TimerSpec{Value: value, Interval: interval}, nil
}

// TimerfdClose releases fd, real or virtual.
func TimerfdClose(fd int32) error {
	realTimerfds.mu.Lock()
	t, ok := realTimerfds.m[fd]
	if ok {
		delete(realTimerfds.m, fd)
	}
	realTimerfds.mu.Unlock()
	if ok {
		return t.Close()
	}
	instance().closeTimerfd(fd)
	return nil
}
