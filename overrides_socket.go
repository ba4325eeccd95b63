// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"time"
	"unsafe"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/zcall"
)

const (
	solSocket    = 1
	soRcvtimeo   = 20
	soSndtimeo   = 21
	msgDontwait  = 0x40
	einprogress  = 115
	eisconn      = 106
	recvPollStep = time.Millisecond
)

// SetsockoptTimeout implements setsockopt(SOL_SOCKET, SO_RCVTIMEO|SO_SNDTIMEO)
// in duration form. While a Client is active the timeout is handed to the
// kernel and also recorded in the virtual registry, which Recv and Send
// consult because the real socket has no notion of the virtual clock
// (spec.md §4.F).
func SetsockoptTimeout(fd int32, optname int32, d time.Duration) error {
	if d < 0 {
		return ErrInvalidParam
	}
	s := instance()
	if !s.isIntercepting() {
		return realSetsockoptTimeout(fd, optname, d)
	}
	if optname == soRcvtimeo || optname == soSndtimeo {
		if err := realSetsockoptTimeout(fd, optname, d); err != nil {
			return err
		}
	}
	reg := s.socketTimeoutRegistry()
	switch optname {
	case soRcvtimeo:
		reg.setRecv(fd, d)
	case soSndtimeo:
		reg.setSend(fd, d)
	default:
		return ErrInvalidParam
	}
	return nil
}

func realSetsockoptTimeout(fd int32, optname int32, d time.Duration) error {
	tv := toTimeval(d)
	_, errno := zcall.Syscall6(SYS_SETSOCKOPT, uintptr(fd), solSocket, uintptr(optname), uintptr(unsafe.Pointer(&tv)), unsafe.Sizeof(tv), 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}

// GetsockoptTimeout is the getsockopt(2) counterpart to SetsockoptTimeout.
func GetsockoptTimeout(fd int32, optname int32) (time.Duration, error) {
	s := instance()
	if !s.isIntercepting() {
		return realGetsockoptTimeout(fd, optname)
	}
	reg := s.socketTimeoutRegistry()
	switch optname {
	case soRcvtimeo:
		return reg.getRecv(fd), nil
	case soSndtimeo:
		return reg.getSend(fd), nil
	default:
		return 0, ErrInvalidParam
	}
}

func realGetsockoptTimeout(fd int32, optname int32) (time.Duration, error) {
	var tv timeval
	sz := unsafe.Sizeof(tv)
	_, errno := zcall.Syscall6(SYS_GETSOCKOPT, uintptr(fd), solSocket, uintptr(optname), uintptr(unsafe.Pointer(&tv)), uintptr(unsafe.Pointer(&sz)), 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return durationFromTimeval(tv), nil
}

// ForgetSocket drops fd's recorded virtual timeouts, called on close.
func ForgetSocket(fd int32) {
	instance().socketTimeoutRegistry().forget(fd)
}

// Recv is the recv(2) equivalent, honouring whatever timeout was last set
// with SetsockoptTimeout while a Client is active.
//
// Translated from original_source/tests/test_socket_timeout.cpp's
// RecvTimeout/RecvDataBeforeTimeout expectations: data already queued on
// the socket is returned immediately even with a timeout armed, and a
// socket that never receives anything unblocks exactly at the deadline
// with iox.ErrWouldBlock.
func Recv(fd int32, buf []byte, flags int32) (int, error) {
	s := instance()
	if !s.isIntercepting() {
		return realRecv(fd, buf, flags)
	}

	timeout := s.socketTimeoutRegistry().getRecv(fd)
	return pollUntilReady(s, timeout, func() (int, error) {
		return realRecv(fd, buf, flags|msgDontwait)
	})
}

func realRecv(fd int32, buf []byte, flags int32) (int, error) {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	n, errno := zcall.Syscall6(SYS_RECVFROM, uintptr(fd), uintptr(ptr), uintptr(len(buf)), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return int(n), nil
}

// Send is the send(2) equivalent, symmetric with Recv.
func Send(fd int32, buf []byte, flags int32) (int, error) {
	s := instance()
	if !s.isIntercepting() {
		return realSend(fd, buf, flags)
	}

	timeout := s.socketTimeoutRegistry().getSend(fd)
	return pollUntilReady(s, timeout, func() (int, error) {
		return realSend(fd, buf, flags|msgDontwait)
	})
}

func realSend(fd int32, buf []byte, flags int32) (int, error) {
	var ptr unsafe.Pointer
	if len(buf) > 0 {
		ptr = unsafe.Pointer(&buf[0])
	}
	n, errno := zcall.Syscall6(SYS_SENDTO, uintptr(fd), uintptr(ptr), uintptr(len(buf)), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errFromErrno(errno)
	}
	return int(n), nil
}

// pollUntilReady retries op, a non-blocking real syscall, waiting on the
// virtual clock in small steps between attempts until op stops returning
// iox.ErrWouldBlock or timeout elapses. A zero timeout means no timeout
// is configured at all: op is tried exactly once and its result, would-
// block included, is returned immediately (spec.md §4.F).
func pollUntilReady(s *simulator, timeout time.Duration, op func() (int, error)) (int, error) {
	n, err := op()
	if err != iox.ErrWouldBlock || timeout == 0 {
		return n, err
	}

	deadline := s.now().Add(timeout)
	for {
		if s.now() >= deadline {
			return 0, iox.ErrWouldBlock
		}
		step := recvPollStep
		if remaining := deadline.Sub(s.now()); remaining < step {
			step = remaining
		}
		s.waitUntil(s.now().Add(step))

		n, err := op()
		if err != iox.ErrWouldBlock {
			return n, err
		}
	}
}

// Connect is the connect(2) equivalent with a virtual-clock connect
// timeout. The socket is switched to non-blocking for the duration of the
// call; a real caller that expected blocking connect semantics sees no
// difference because Connect restores blocking mode before returning.
func Connect(fd int32, addr []byte, timeout time.Duration) error {
	s := instance()
	if !s.isIntercepting() || timeout <= 0 {
		return realConnect(fd, addr)
	}

	f := FD(fd)
	if err := f.SetNonblock(true); err != nil {
		return err
	}
	defer f.SetNonblock(false)

	err := realConnect(fd, addr)
	if err == nil {
		return nil
	}
	errno, ok := err.(zcall.Errno)
	if !ok || errno != einprogress {
		return err
	}

	s.waitUntil(s.now().Add(timeout))

	err = realConnect(fd, addr)
	if err == nil {
		return nil
	}
	if errno, ok := err.(zcall.Errno); ok {
		if errno == eisconn {
			return nil
		}
		if errno == einprogress {
			return ErrTimedOut
		}
	}
	return err
}

func realConnect(fd int32, addr []byte) error {
	if len(addr) == 0 {
		return ErrFault
	}
	_, errno := zcall.Syscall6(SYS_CONNECT, uintptr(fd), uintptr(unsafe.Pointer(&addr[0])), uintptr(len(addr)), 0, 0, 0)
	if errno != 0 {
		return errFromErrno(errno)
	}
	return nil
}
