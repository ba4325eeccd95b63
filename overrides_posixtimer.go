// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"sync"
	"time"
	"unsafe"

	"code.hybscloud.com/zcall"
)

// sigevent mirrors the kernel's struct sigevent layout closely enough
// for timer_create(2): notify method and target signal/thread id. Only
// the fields this simulator records (and, per spec.md §9, never acts
// on) are kept.
type sigevent struct {
	value  uint64
	notify int32
	signo  int32
}

var realPosixTimers = struct {
	mu sync.Mutex
	m  map[PosixTimerID]uint64 // our id -> kernel timer id
}{m: make(map[PosixTimerID]uint64)}

var nextFakePosixID uint64

// PosixTimerCreate allocates a new POSIX interval timer on clk, with the
// given notification style recorded but never delivered (spec.md §4.H).
func PosixTimerCreate(clk ClockID, notify Notify) (PosixTimerID, error) {
	s := instance()
	if !s.isIntercepting() {
		var ev sigevent
		ev.notify = int32(notify)
		var kernelID uint64
		_, errno := zcall.Syscall6(SYS_TIMER_CREATE, uintptr(clk), uintptr(unsafe.Pointer(&ev)), uintptr(unsafe.Pointer(&kernelID)), 0, 0, 0)
		if errno != 0 {
			return 0, errFromErrno(errno)
		}
		nextFakePosixID++
		id := PosixTimerID(nextFakePosixID)
		realPosixTimers.mu.Lock()
		realPosixTimers.m[id] = kernelID
		realPosixTimers.mu.Unlock()
		return id, nil
	}
	return s.posixTimerCreate(clk, notify), nil
}

// PosixTimerDelete removes timer id.
func PosixTimerDelete(id PosixTimerID) error {
	s := instance()
	if !s.isIntercepting() {
		realPosixTimers.mu.Lock()
		kernelID, ok := realPosixTimers.m[id]
		if ok {
			delete(realPosixTimers.m, id)
		}
		realPosixTimers.mu.Unlock()
		if !ok {
			return ErrInvalidParam
		}
		_, errno := zcall.Syscall6(SYS_TIMER_DELETE, uintptr(kernelID), 0, 0, 0, 0, 0)
		if errno != 0 {
			return errFromErrno(errno)
		}
		return nil
	}
	return s.posixTimerDelete(id)
}

// PosixTimerSettime validates the nanosecond fields (spec.md §4.F:
// EINVAL if either is out of [0, 1e9)), then applies new, optionally
// filling old with the pre-update state.
func PosixTimerSettime(id PosixTimerID, abs bool, new PosixTimerSpec) (old PosixTimerSpec, err error) {
	if nsecOutOfRange(new.Value) || nsecOutOfRange(new.Interval) {
		return PosixTimerSpec{}, ErrInvalidParam
	}

	s := instance()
	if !s.isIntercepting() {
		realPosixTimers.mu.Lock()
		kernelID, ok := realPosixTimers.m[id]
		realPosixTimers.mu.Unlock()
		if !ok {
			return PosixTimerSpec{}, ErrInvalidParam
		}
		var newSpec, oldSpec itimerspec
		newSpec.value = toTimespec(new.Value)
		newSpec.interval = toTimespec(new.Interval)
		flags := uintptr(0)
		if abs {
			flags = TFD_TIMER_ABSTIME
		}
		_, errno := zcall.Syscall6(SYS_TIMER_SETTIME, uintptr(kernelID), flags, uintptr(unsafe.Pointer(&newSpec)), uintptr(unsafe.Pointer(&oldSpec)), 0, 0)
		if errno != 0 {
			return PosixTimerSpec{}, errFromErrno(errno)
		}
		return PosixTimerSpec{Value: durationFromTimespec(oldSpec.value), Interval: durationFromTimespec(oldSpec.interval)}, nil
	}

	err = s.posixTimerSetTime(id, abs, new, &old)
	return old, err
}

// PosixTimerGettime reports id's remaining time and interval, rearming a
// periodic timer's stored expiration as a side effect if it has already
// fired (spec.md §4.H, preserved from original_source/src/posix_timers.cpp).
func PosixTimerGettime(id PosixTimerID) (PosixTimerSpec, error) {
	s := instance()
	if !s.isIntercepting() {
		realPosixTimers.mu.Lock()
		kernelID, ok := realPosixTimers.m[id]
		realPosixTimers.mu.Unlock()
		if !ok {
			return PosixTimerSpec{}, ErrInvalidParam
		}
		var curr itimerspec
		_, errno := zcall.Syscall6(SYS_TIMER_GETTIME, uintptr(kernelID), uintptr(unsafe.Pointer(&curr)), 0, 0, 0, 0)
		if errno != 0 {
			return PosixTimerSpec{}, errFromErrno(errno)
		}
		return PosixTimerSpec{Value: durationFromTimespec(curr.value), Interval: durationFromTimespec(curr.interval)}, nil
	}
	return s.posixTimerGetTime(id)
}

func nsecOutOfRange(d time.Duration) bool {
	return d < 0
}
