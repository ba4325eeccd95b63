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

// PollFD mirrors struct pollfd, the element type poll(2) operates on.
type PollFD struct {
	Fd      int32
	Events  int16
	Revents int16
}

const PollIn = 0x0001

// Poll is the poll(2) equivalent. With no Client active, or a
// non-positive timeout, it delegates straight through - spec.md §4.F
// only transforms a strictly-positive timeout.
//
// When intercepting, it arms a fresh virtual timer descriptor for
// now+timeout, appends it to fds with read-interest, and calls the real
// poll with an infinite timeout: the VTD guarantees this unbounded real
// call returns once the virtual deadline elapses, per spec.md §5's
// suspension-point analysis.
func Poll(fds []PollFD, timeout time.Duration) (int, error) {
	s := instance()
	if !s.isIntercepting() || timeout <= 0 {
		return realPoll(fds, timeout)
	}

	now := s.now()
	timerFd, err := s.timerfdCreate()
	if err != nil {
		return -1, err
	}
	defer s.closeTimerfd(timerFd)
	if err := s.timerfdSetTime(timerFd, now.Add(timeout), 0); err != nil {
		return -1, err
	}

	all := append(append([]PollFD(nil), fds...), PollFD{Fd: timerFd, Events: PollIn})
	n, err := realPoll(all, -1)
	copy(fds, all[:len(fds)])
	if n > 0 && all[len(fds)].Revents != 0 {
		n--
	}
	return n, err
}

func realPoll(fds []PollFD, timeout time.Duration) (int, error) {
	var ptr unsafe.Pointer
	if len(fds) > 0 {
		ptr = unsafe.Pointer(&fds[0])
	}
	ms := int64(-1)
	if timeout >= 0 {
		ms = timeout.Milliseconds()
	}
	n, errno := zcall.Syscall6(SYS_POLL, uintptr(ptr), uintptr(len(fds)), uintptr(ms), 0, 0, 0)
	if errno != 0 {
		return -1, errFromErrno(errno)
	}
	return int(n), nil
}

// EpollEvent mirrors the kernel's packed struct epoll_event: a uint32
// events field immediately followed by the 8-byte epoll_data_t union,
// with no alignment padding in between (the kernel struct carries
// __attribute__((packed))). Representing the union as a byte array
// rather than a uint64 keeps Go's struct layout packed the same way.
type EpollEvent struct {
	Events uint32
	data   [8]byte
}

// Fd returns the file descriptor stored in this event's data union -
// the only variant this package ever writes.
func (e EpollEvent) Fd() int32 {
	return *(*int32)(unsafe.Pointer(&e.data[0]))
}

const (
	EpollIn     = 0x001
	epollCtlAdd = 1
	epollCtlDel = 2
)

func epollEventFd(fd int32) EpollEvent {
	var e EpollEvent
	e.Events = EpollIn
	*(*int32)(unsafe.Pointer(&e.data[0])) = fd
	return e
}

// EpollWait is the epoll_wait(2) equivalent, using the same
// timerfd-injection trick as Poll but wired in/out via epoll_ctl instead
// of being appended to a plain fd array.
func EpollWait(epfd int32, events []EpollEvent, timeout time.Duration) (int, error) {
	s := instance()
	if !s.isIntercepting() || timeout <= 0 {
		return realEpollWait(epfd, events, timeout)
	}

	now := s.now()
	timerFd, err := s.timerfdCreate()
	if err != nil {
		return -1, err
	}
	defer s.closeTimerfd(timerFd)
	if err := s.timerfdSetTime(timerFd, now.Add(timeout), 0); err != nil {
		return -1, err
	}

	ev := epollEventFd(timerFd)
	if _, errno := zcall.Syscall6(SYS_EPOLL_CTL, uintptr(epfd), epollCtlAdd, uintptr(timerFd), uintptr(unsafe.Pointer(&ev)), 0, 0); errno != 0 {
		return -1, errFromErrno(errno)
	}
	n, err := realEpollWait(epfd, events, -1)
	_, _ = zcall.Syscall6(SYS_EPOLL_CTL, uintptr(epfd), epollCtlDel, uintptr(timerFd), 0, 0, 0)
	if n > 0 {
		kept := 0
		for _, e := range events[:n] {
			if e.Fd() != timerFd {
				events[kept] = e
				kept++
			}
		}
		n = kept
	}
	return n, err
}

func realEpollWait(epfd int32, events []EpollEvent, timeout time.Duration) (int, error) {
	var ptr unsafe.Pointer
	if len(events) > 0 {
		ptr = unsafe.Pointer(&events[0])
	}
	ms := int64(-1)
	if timeout >= 0 {
		ms = timeout.Milliseconds()
	}
	n, errno := zcall.Syscall6(SYS_EPOLL_WAIT, uintptr(epfd), uintptr(ptr), uintptr(len(events)), uintptr(ms), 0, 0)
	if errno != 0 {
		return -1, errFromErrno(errno)
	}
	return int(n), nil
}

// FDSet is a select(2) descriptor bitmask, bits 0..1023
// (glibc's FD_SETSIZE), stored as a packed bit array with Set/Clear/IsSet
// accessors. Descriptors outside that range are ignored.
type FDSet struct {
	bits [16]uint64
}

func (f *FDSet) Set(fd int32) {
	if fd < 0 || int(fd) >= 1024 {
		return
	}
	f.bits[fd/64] |= 1 << uint(fd%64)
}

func (f *FDSet) Clear(fd int32) {
	if fd < 0 || int(fd) >= 1024 {
		return
	}
	f.bits[fd/64] &^= 1 << uint(fd%64)
}

func (f *FDSet) IsSet(fd int32) bool {
	if fd < 0 || int(fd) >= 1024 {
		return false
	}
	return f.bits[fd/64]&(1<<uint(fd%64)) != 0
}

// Select is the select(2) equivalent. A nil timeout means "block
// forever" and passes straight through, matching spec.md §4.F's "non-nil
// timeout" trigger condition.
func Select(nfds int32, readFds, writeFds, exceptFds *FDSet, timeout *time.Duration) (int, error) {
	s := instance()
	if !s.isIntercepting() || timeout == nil {
		return realSelect(nfds, readFds, writeFds, exceptFds, timeout)
	}

	now := s.now()
	timerFd, err := s.timerfdCreate()
	if err != nil {
		return -1, err
	}
	defer s.closeTimerfd(timerFd)
	if err := s.timerfdSetTime(timerFd, now.Add(*timeout), 0); err != nil {
		return -1, err
	}

	fake := FDSet{}
	if readFds != nil {
		fake = *readFds
	}
	if nfds < timerFd+1 {
		nfds = timerFd + 1
	}
	fake.Set(timerFd)

	n, err := realSelect(nfds, &fake, writeFds, exceptFds, nil)
	if err != nil {
		return n, err
	}
	if n > 0 && fake.IsSet(timerFd) {
		var buf [8]byte
		_, _ = zcall.Read(uintptr(timerFd), buf[:])
		fake.Clear(timerFd)
		n--
	}
	if readFds != nil {
		*readFds = fake
	}
	return n, nil
}

func realSelect(nfds int32, readFds, writeFds, exceptFds *FDSet, timeout *time.Duration) (int, error) {
	var ts *timespec
	var tsStorage timespec
	if timeout != nil {
		tsStorage = toTimespec(*timeout)
		ts = &tsStorage
	}
	n, errno := zcall.Syscall6(
		SYS_PSELECT6,
		uintptr(nfds),
		uintptr(unsafe.Pointer(readFds)),
		uintptr(unsafe.Pointer(writeFds)),
		uintptr(unsafe.Pointer(exceptFds)),
		uintptr(unsafe.Pointer(ts)),
		0,
	)
	if errno != 0 {
		return -1, errFromErrno(errno)
	}
	return int(n), nil
}
