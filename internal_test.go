// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"testing"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/zcall"
)

// TestEventfdValuePtr tests the internal eventfdValuePtr function.
func TestEventfdValuePtr(t *testing.T) {
	val := uint64(12345)
	p := eventfdValuePtr(&val)

	if p == nil {
		t.Fatal("eventfdValuePtr returned nil")
	}

	// Verify the pointer points to the correct value
	got := *(*uint64)(p)
	if got != 12345 {
		t.Errorf("eventfdValuePtr returned wrong value: got %d, want 12345", got)
	}
}

// TestErrFromErrno tests all errno mappings in errFromErrno.
func TestErrFromErrno(t *testing.T) {
	tests := []struct {
		name  string
		errno uintptr
		want  error
		isRaw bool // true if we expect the raw zcall.Errno
	}{
		{"zero", 0, nil, false},
		{"EAGAIN", uintptr(zcall.EAGAIN), iox.ErrWouldBlock, false},
		{"EBADF", uintptr(zcall.EBADF), ErrClosed, false},
		{"EINVAL", uintptr(zcall.EINVAL), ErrInvalidParam, false},
		{"EINTR", uintptr(zcall.EINTR), ErrInterrupted, false},
		{"ENOMEM", uintptr(zcall.ENOMEM), ErrNoMemory, false},
		{"EACCES", uintptr(zcall.EACCES), ErrPermission, false},
		{"EPERM", uintptr(zcall.EPERM), ErrPermission, false},
		{"ENOENT (default)", uintptr(zcall.ENOENT), zcall.ENOENT, true},
		{"EIO (default)", uintptr(zcall.EIO), zcall.EIO, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errFromErrno(tt.errno)
			if tt.isRaw {
				// For default case, check it's the raw errno
				if e, ok := got.(zcall.Errno); !ok || e != zcall.Errno(tt.errno) {
					t.Errorf("errFromErrno(%d) = %v, want raw errno %v", tt.errno, got, tt.want)
				}
			} else {
				if got != tt.want {
					t.Errorf("errFromErrno(%d) = %v, want %v", tt.errno, got, tt.want)
				}
			}
		})
	}
}

// =============================================================================
// Syscall Error Path Tests
// =============================================================================

// TestSetNonblock_FcntlErrors tests fcntl error paths in SetNonblock.
// Uses an FD that is valid (>= 0) but closed at kernel level.
func TestSetNonblock_FcntlErrors(t *testing.T) {
	// Create a valid eventfd, get its raw fd, then close it via zcall
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly, bypassing the FD wrapper
	zcall.Close(uintptr(rawFd))

	// Create a new FD pointing to the now-invalid descriptor
	fd := NewFD(int(rawFd))

	// SetNonblock should fail on F_GETFL with EBADF
	err = fd.SetNonblock(true)
	if err == nil {
		t.Error("SetNonblock should fail on closed fd")
	}
	// The error should be ErrClosed (mapped from EBADF)
	if err != ErrClosed {
		t.Logf("SetNonblock error: %v (type: %T)", err, err)
	}
}

// TestSetCloexec_FcntlErrors tests fcntl error paths in SetCloexec.
func TestSetCloexec_FcntlErrors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	fd := NewFD(int(rawFd))

	// SetCloexec should fail on F_GETFD with EBADF
	err = fd.SetCloexec(true)
	if err == nil {
		t.Error("SetCloexec should fail on closed fd")
	}
	if err != ErrClosed {
		t.Logf("SetCloexec error: %v (type: %T)", err, err)
	}
}

// TestDup_Errors tests error paths in Dup.
func TestDup_Errors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	fd := NewFD(int(rawFd))

	// Dup should fail with EBADF
	_, err = fd.Dup()
	if err == nil {
		t.Error("Dup should fail on closed fd")
	}
	if err != ErrClosed {
		t.Logf("Dup error: %v (type: %T)", err, err)
	}
}

// TestFD_ReadWriteErrors tests Read/Write error paths.
func TestFD_ReadWriteErrors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	fd := NewFD(int(rawFd))

	// Read should fail with EBADF
	buf := make([]byte, 8)
	_, err = fd.Read(buf)
	if err == nil {
		t.Error("Read should fail on closed fd")
	}
	if err != ErrClosed {
		t.Logf("Read error: %v (type: %T)", err, err)
	}

	// Write should fail with EBADF
	_, err = fd.Write(buf)
	if err == nil {
		t.Error("Write should fail on closed fd")
	}
	if err != ErrClosed {
		t.Logf("Write error: %v (type: %T)", err, err)
	}
}

// TestEventFD_SignalErrors tests Signal error paths.
func TestEventFD_SignalErrors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	// Signal should fail with EBADF (mapped to some error)
	err = efd.Signal(1)
	if err == nil {
		t.Error("Signal should fail on closed fd")
	}
}

// TestEventFD_WaitErrors tests Wait error paths.
func TestEventFD_WaitErrors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	// Wait should fail with EBADF
	_, err = efd.Wait()
	if err == nil {
		t.Error("Wait should fail on closed fd")
	}
}

// TestEventFD_ReadWriteErrors tests EventFD Read/Write error paths.
func TestEventFD_ReadWriteErrors(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	rawFd := efd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	// Read should fail
	buf := make([]byte, 8)
	_, err = efd.Read(buf)
	if err == nil {
		t.Error("Read should fail on closed fd")
	}

	// Write should fail
	_, err = efd.Write(buf)
	if err == nil {
		t.Error("Write should fail on closed fd")
	}
}

// TestTimerFD_Errors tests TimerFD error paths.
func TestTimerFD_Errors(t *testing.T) {
	tfd, err := newTimerFD(CLOCK_MONOTONIC, TFD_NONBLOCK|TFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newTimerFD failed: %v", err)
	}
	rawFd := tfd.fd.Raw()

	// Close the underlying fd directly
	zcall.Close(uintptr(rawFd))

	// Arm should fail
	err = tfd.Arm(1000000, 0)
	if err == nil {
		t.Error("Arm should fail on closed fd")
	}

	// ArmAt should fail
	err = tfd.ArmAt(1000000000, 0)
	if err == nil {
		t.Error("ArmAt should fail on closed fd")
	}

	// Read should fail
	_, err = tfd.Read()
	if err == nil {
		t.Error("Read should fail on closed fd")
	}

	// ReadInto should fail
	buf := make([]byte, 8)
	_, err = tfd.ReadInto(buf)
	if err == nil {
		t.Error("ReadInto should fail on closed fd")
	}

	// GetTime should fail
	_, _, err = tfd.GetTime()
	if err == nil {
		t.Error("GetTime should fail on closed fd")
	}
}

func TestEventFD_WaitWouldBlock(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Wait on empty eventfd should return ErrWouldBlock
	_, err = efd.Wait()
	if err != iox.ErrWouldBlock {
		t.Errorf("Wait on empty eventfd: got %v, want ErrWouldBlock", err)
	}
}

// TestEventFD_ReadWouldBlock tests Read returning ErrWouldBlock when counter is zero.
func TestEventFD_ReadWouldBlock(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Read on empty eventfd should return ErrWouldBlock
	buf := make([]byte, 8)
	_, err = efd.Read(buf)
	if err != iox.ErrWouldBlock {
		t.Errorf("Read on empty eventfd: got %v, want ErrWouldBlock", err)
	}
}

// TestTimerFD_ReadWouldBlock tests Read returning ErrWouldBlock when timer hasn't expired.
func TestTimerFD_ReadWouldBlock(t *testing.T) {
	tfd, err := newTimerFD(CLOCK_MONOTONIC, TFD_NONBLOCK|TFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newTimerFD failed: %v", err)
	}
	defer tfd.Close()

	// Read on unarmed timer should return ErrWouldBlock
	_, err = tfd.Read()
	if err != iox.ErrWouldBlock {
		t.Errorf("Read on unarmed timer: got %v, want ErrWouldBlock", err)
	}
}

// TestTimerFD_ReadIntoWouldBlock tests ReadInto returning ErrWouldBlock.
func TestTimerFD_ReadIntoWouldBlock(t *testing.T) {
	tfd, err := newTimerFD(CLOCK_MONOTONIC, TFD_NONBLOCK|TFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newTimerFD failed: %v", err)
	}
	defer tfd.Close()

	// ReadInto on unarmed timer should return ErrWouldBlock
	buf := make([]byte, 8)
	_, err = tfd.ReadInto(buf)
	if err != iox.ErrWouldBlock {
		t.Errorf("ReadInto on unarmed timer: got %v, want ErrWouldBlock", err)
	}
}

func TestFD_SetNonblockBothDirections(t *testing.T) {
	efd, err := newEventFD(0, EFD_CLOEXEC) // Start without NONBLOCK
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	fd := &efd.fd

	// Set nonblock
	err = fd.SetNonblock(true)
	if err != nil {
		t.Errorf("SetNonblock(true) failed: %v", err)
	}

	// Clear nonblock
	err = fd.SetNonblock(false)
	if err != nil {
		t.Errorf("SetNonblock(false) failed: %v", err)
	}
}

// TestFD_SetCloexecBothDirections tests setting and clearing FD_CLOEXEC.
func TestFD_SetCloexecBothDirections(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK) // Start without CLOEXEC
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	fd := &efd.fd

	// Set cloexec
	err = fd.SetCloexec(true)
	if err != nil {
		t.Errorf("SetCloexec(true) failed: %v", err)
	}

	// Clear cloexec
	err = fd.SetCloexec(false)
	if err != nil {
		t.Errorf("SetCloexec(false) failed: %v", err)
	}
}
func TestTimerFD_InvalidClockID(t *testing.T) {
	// Use an invalid clock ID to trigger syscall error
	_, err := newTimerFD(9999, TFD_NONBLOCK|TFD_CLOEXEC)
	if err == nil {
		t.Error("newTimerFD with invalid clock ID should fail")
	}
	t.Logf("newTimerFD(9999) error: %v", err)
}

// =============================================================================
// EventFD Error Path Tests
// =============================================================================

// TestEventFD_SignalMaxValue tests Signal with maximum value.
func TestEventFD_SignalMaxValue(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Signal with max value - should succeed or return overflow error
	err = efd.Signal(0xFFFFFFFFFFFFFFFE)
	if err != nil {
		t.Logf("Signal(max) error (expected on overflow): %v", err)
	}
}

// TestEventFD_WaitEAGAIN tests Wait returning EAGAIN.
func TestEventFD_WaitEAGAIN(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Wait on empty eventfd should return ErrWouldBlock
	_, err = efd.Wait()
	if err != iox.ErrWouldBlock {
		t.Errorf("Wait on empty eventfd should return ErrWouldBlock, got %v", err)
	}
}
func TestFD_DupSuccess(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Dup should succeed
	newFD, err := efd.fd.Dup()
	if err != nil {
		t.Fatalf("Dup failed: %v", err)
	}
	defer newFD.Close()

	if !newFD.Valid() {
		t.Error("Duped FD should be valid")
	}
}

// TestSetNonblock_Success tests successful SetNonblock.
func TestSetNonblock_Success(t *testing.T) {
	efd, err := newEventFD(0, EFD_CLOEXEC) // Create without NONBLOCK
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Set nonblock
	err = efd.fd.SetNonblock(true)
	if err != nil {
		t.Errorf("SetNonblock(true) failed: %v", err)
	}

	// Clear nonblock
	err = efd.fd.SetNonblock(false)
	if err != nil {
		t.Errorf("SetNonblock(false) failed: %v", err)
	}
}

// TestSetCloexec_Success tests successful SetCloexec.
func TestSetCloexec_Success(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK) // Create without CLOEXEC
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Set cloexec
	err = efd.fd.SetCloexec(true)
	if err != nil {
		t.Errorf("SetCloexec(true) failed: %v", err)
	}

	// Clear cloexec
	err = efd.fd.SetCloexec(false)
	if err != nil {
		t.Errorf("SetCloexec(false) failed: %v", err)
	}
}

// =============================================================================
// Constructor Failure Tests
// =============================================================================

// TestNewEventFD_InvalidFlags tests newEventFD with invalid flags.
func TestNewEventFD_InvalidFlags(t *testing.T) {
	// Use an extremely invalid flags value to trigger EINVAL
	_, err := newEventFD(0, 0xFFFFFFFF)
	if err == nil {
		t.Error("newEventFD with invalid flags should fail")
	}
	t.Logf("newEventFD(invalid flags) error: %v", err)
}

func TestEventFD_SignalPartialWrite(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Signal with value 1
	err = efd.Signal(1)
	if err != nil {
		t.Errorf("Signal(1) failed: %v", err)
	}

	// Signal with value 0 should be no-op
	err = efd.Signal(0)
	if err != nil {
		t.Errorf("Signal(0) should succeed: %v", err)
	}

	// Read the value
	val, err := efd.Wait()
	if err != nil {
		t.Errorf("Wait failed: %v", err)
	}
	if val != 1 {
		t.Errorf("Expected 1, got %d", val)
	}
}

// TestTimerFD_ReadPartial tests TimerFD Read behavior.
func TestTimerFD_ReadPartial(t *testing.T) {
	tfd, err := newTimerFD(CLOCK_MONOTONIC, TFD_NONBLOCK|TFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newTimerFD failed: %v", err)
	}
	defer tfd.Close()

	// ReadInto with exactly 8 bytes
	buf := make([]byte, 8)
	_, err = tfd.ReadInto(buf)
	// Should return EAGAIN since timer is not armed
	if err != iox.ErrWouldBlock && err != nil {
		t.Logf("ReadInto(8) error: %v", err)
	}

	// ReadInto with more than 8 bytes
	largeBuf := make([]byte, 16)
	_, err = tfd.ReadInto(largeBuf)
	if err != iox.ErrWouldBlock && err != nil {
		t.Logf("ReadInto(16) error: %v", err)
	}
}

// TestFD_DupWithValidFD tests Dup on a valid file descriptor.
func TestFD_DupWithValidFD(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	// Dup should succeed
	newFd, err := efd.fd.Dup()
	if err != nil {
		t.Fatalf("Dup failed: %v", err)
	}
	defer newFd.Close()

	// Both FDs should be valid
	if !efd.fd.Valid() {
		t.Error("Original FD should be valid")
	}
	if !newFd.Valid() {
		t.Error("New FD should be valid")
	}

	// Write to original, read from dup
	err = efd.Signal(42)
	if err != nil {
		t.Errorf("Signal failed: %v", err)
	}

	// Read from the duplicated fd
	var buf [8]byte
	n, err := newFd.Read(buf[:])
	if err != nil {
		t.Errorf("Read from dup failed: %v", err)
	}
	if n != 8 {
		t.Errorf("Expected 8 bytes, got %d", n)
	}
}

// TestConcurrentClose tests concurrent Close calls.
func TestConcurrentClose(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}

	// Launch multiple goroutines to close concurrently
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			efd.Close()
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	// FD should be invalid after close
	if efd.fd.Valid() {
		t.Error("FD should be invalid after close")
	}
}

// TestFD_ConcurrentReadWrite tests concurrent Read/Write operations.
func TestFD_ConcurrentReadWrite(t *testing.T) {
	efd, err := newEventFD(0, EFD_NONBLOCK|EFD_CLOEXEC)
	if err != nil {
		t.Fatalf("newEventFD failed: %v", err)
	}
	defer efd.Close()

	done := make(chan bool, 20)

	// Writers
	for i := 0; i < 10; i++ {
		go func() {
			efd.Signal(1)
			done <- true
		}()
	}

	// Readers
	for i := 0; i < 10; i++ {
		go func() {
			efd.Wait()
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 20; i++ {
		<-done
	}
}

