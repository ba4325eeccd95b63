// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux && !amd64 && !loong64

package vtime

// Syscall numbers for Linux architectures with no dedicated
// const_linux_<arch>.go of their own (arm64, riscv64, ...), which share
// the generic syscall table. amd64 and loong64 each declare these same
// six numbers in their own file, so this file must stay out of scope
// for both to avoid a redeclaration.
const (
	SYS_DUP       = 23
	SYS_DUP2      = 0 // Not available; use fcntl F_DUPFD
	SYS_DUP3      = 24
	SYS_FCNTL     = 25
	SYS_FTRUNCATE = 46
	SYS_FSTAT     = 80
)

// File descriptor flags for fcntl F_GETFD/F_SETFD.
const (
	FD_CLOEXEC = 1
)

// File status flags for fcntl F_GETFL/F_SETFL.
const (
	O_NONBLOCK = 0x800
	O_CLOEXEC  = 0x80000
)

// fcntl commands.
const (
	F_DUPFD         = 0
	F_GETFD         = 1
	F_SETFD         = 2
	F_GETFL         = 3
	F_SETFL         = 4
	F_DUPFD_CLOEXEC = 1030
)

// Socket domain/type constants used by the socket override tests
// (spec.md §4.F recv/send/connect); the overrides themselves do not use them.
const (
	AF_UNIX     = 1
	SOCK_STREAM = 1
)
