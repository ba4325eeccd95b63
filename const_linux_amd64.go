// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux && amd64

package vtime

// Syscall numbers for Linux amd64.
const (
	SYS_DUP       = 32
	SYS_DUP2      = 33
	SYS_DUP3      = 292
	SYS_FCNTL     = 72
	SYS_FTRUNCATE = 77
	SYS_FSTAT     = 5
)

// Additional syscall numbers for Linux amd64 used by the virtual time
// simulator's real (non-intercepted) fallback paths and the descriptor
// equivalence probe. No other architecture file declares these numbers,
// and the override files that use them carry only a linux build tag, so
// the package compiles for linux/amd64 only. The generic syscall table used by
// arm64/riscv64/loong64 replaces several of these with *p*-variants
// (ppoll instead of poll, epoll_pwait instead of epoll_wait) that take a
// different argument shape and would need separate, separately-verified
// wiring.
const (
	SYS_POLL             = 7
	SYS_SELECT           = 23
	SYS_PSELECT6         = 270
	SYS_EPOLL_CREATE1    = 291
	SYS_EPOLL_CTL        = 233
	SYS_EPOLL_WAIT       = 232
	SYS_NANOSLEEP        = 35
	SYS_GETTIMEOFDAY     = 96
	SYS_SETTIMEOFDAY     = 164
	SYS_TIME             = 201
	SYS_CLOCK_GETTIME    = 228
	SYS_CLOCK_SETTIME    = 227
	SYS_CLOCK_NANOSLEEP  = 230
	SYS_TIMER_CREATE     = 222
	SYS_TIMER_DELETE     = 226
	SYS_TIMER_SETTIME    = 223
	SYS_TIMER_GETTIME    = 224
	SYS_TIMERFD_CREATE   = 283
	SYS_TIMERFD_SETTIME  = 286
	SYS_TIMERFD_GETTIME  = 287
	SYS_SETSOCKOPT       = 54
	SYS_GETSOCKOPT       = 55
	SYS_CONNECT          = 42
	SYS_RECVFROM         = 45
	SYS_SENDTO           = 44
	SYS_KCMP             = 312
	SYS_SOCKETPAIR       = 53
	SYS_PIPE2            = 293
)

// Socket domain/type constants. These, like SYS_SOCKETPAIR and SYS_PIPE2
// above, are used only by tests, to build real kernel objects (a
// connected socket pair, a pipe) that the override tests can drive
// through actual blocking/EAGAIN semantics rather than a fabricated fd.
const (
	AF_UNIX     = 1
	SOCK_STREAM = 1
)
