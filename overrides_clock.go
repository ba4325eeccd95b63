// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"unsafe"

	"code.hybscloud.com/zcall"
)

// Gettimeofday returns the current instant, real or virtual depending on
// whether a Client is active.
func Gettimeofday() (Instant, error) {
	s := instance()
	if !s.isIntercepting() {
		return realGettimeofday()
	}
	return s.now(), nil
}

func realGettimeofday() (Instant, error) {
	var tv timeval
	_, errno := zcall.Syscall6(SYS_GETTIMEOFDAY, uintptr(unsafe.Pointer(&tv)), 0, 0, 0, 0, 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return Instant(durationFromTimeval(tv)), nil
}

// Settimeofday sets the wall clock (spec.md §4.F "wall/monotonic setter").
// It performs no validation of its own: t is an Instant, so there is no
// clock id or subsecond field to check.
func Settimeofday(t Instant) error {
	s := instance()
	if !s.isIntercepting() {
		return realSettimeofday(t)
	}
	s.setTime(t)
	return nil
}

func realSettimeofday(t Instant) error {
	tv := toTimeval0(t)
	_, errno := zcall.Syscall6(SYS_SETTIMEOFDAY, uintptr(unsafe.Pointer(&tv)), 0, 0, 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

func toTimeval0(t Instant) timeval {
	ns := int64(t)
	return timeval{sec: ns / 1e9, usec: (ns % 1e9) / 1e3}
}

// ClockGettime returns the current instant for the given clock id. Every
// clock id observes the same virtual instant while a Client is active -
// this simulator does not model drift between realtime/monotonic/
// boottime (spec.md §1 non-goals).
func ClockGettime(clk ClockID) (Instant, error) {
	s := instance()
	if !s.isIntercepting() {
		return realClockGettime(clk)
	}
	return s.now(), nil
}

func realClockGettime(clk ClockID) (Instant, error) {
	var ts timespec
	_, errno := zcall.Syscall6(SYS_CLOCK_GETTIME, uintptr(clk), uintptr(unsafe.Pointer(&ts)), 0, 0, 0, 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return instantFromTimespec(ts), nil
}

// ClockSettime sets the instant for clk. Only ClockRealtime is accepted,
// matching spec.md §4.F: "only the real-time clock id is accepted;
// invalid arguments set the error code and return -1".
func ClockSettime(clk ClockID, t Instant) error {
	if clk != ClockRealtime {
		return ErrInvalidParam
	}
	s := instance()
	if !s.isIntercepting() {
		return realClockSettime(clk, t)
	}
	s.setTime(t)
	return nil
}

func realClockSettime(clk ClockID, t Instant) error {
	ts := toTimespecInstant(t)
	_, errno := zcall.Syscall6(SYS_CLOCK_SETTIME, uintptr(clk), uintptr(unsafe.Pointer(&ts)), 0, 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

// Time is the coarse time(2) equivalent: whole seconds since the origin.
func Time() (int64, error) {
	t, err := Gettimeofday()
	if err != nil {
		return 0, err
	}
	return int64(t) / 1e9, nil
}
