// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"time"
	"unsafe"

	"code.hybscloud.com/zcall"
)

// Sleep blocks for d. When no Client is active it delegates to the real
// nanosleep(2); when one is, it waits on the virtual clock instead
// (spec.md §4.F "relative sleep of d").
//
// Translated from original_source/src/overrides.cpp's sleep/usleep/
// nanosleep, collapsed into one duration-based entry point - the
// idiomatic Go shape, since Go has no reason to keep three
// unit-distinguished wrappers around one underlying operation.
func Sleep(d time.Duration) error {
	s := instance()
	if !s.isIntercepting() {
		return realNanosleep(d)
	}
	s.waitUntil(s.now().Add(d))
	return nil
}

// realNanosleep issues the real nanosleep(2) syscall, retrying across
// EINTR exactly once per remaining duration the kernel reports back.
func realNanosleep(d time.Duration) error {
	req := toTimespec(d)
	for {
		rem := timespec{}
		_, errno := zcall.Syscall6(SYS_NANOSLEEP, uintptr(unsafe.Pointer(&req)), uintptr(unsafe.Pointer(&rem)), 0, 0, 0, 0)
		if errno == 0 {
			return nil
		}
		if zcall.Errno(errno) == zcall.EINTR {
			req = rem
			continue
		}
		return errFromErrno(errno)
	}
}

// ClockNanosleep honours the absolute-time flag exactly as
// clock_nanosleep(2) does: relative sleeps wait for now+d, absolute
// sleeps wait until the given instant and return immediately if it has
// already passed.
func ClockNanosleep(clk ClockID, absolute bool, d time.Duration) error {
	s := instance()
	if !s.isIntercepting() {
		return realClockNanosleep(clk, absolute, d)
	}
	if absolute {
		target := Instant(d)
		if s.now() >= target {
			return nil
		}
		s.waitUntil(target)
		return nil
	}
	s.waitUntil(s.now().Add(d))
	return nil
}

func realClockNanosleep(clk ClockID, absolute bool, d time.Duration) error {
	req := toTimespec(d)
	flags := uintptr(0)
	if absolute {
		flags = TFD_TIMER_ABSTIME
	}
	_, errno := zcall.Syscall6(SYS_CLOCK_NANOSLEEP, uintptr(clk), flags, uintptr(unsafe.Pointer(&req)), 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}
