// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"bytes"
	"fmt"
	"os"

	"code.hybscloud.com/zcall"
)

// KCMP_FILE is the kcmp(2) comparison type for "do these two descriptors
// of the same process refer to the same open file description".
const kcmpFile = 0

// sameKernelObject reports whether fd1 and fd2, both plausibly open in
// the current process, refer to the same kernel file object.
//
// Primary strategy: the kcmp(2) syscall, exactly as
// original_source/include/fakeclock/ClockSimulator.h's client_closed()
// uses SYS_kcmp/KCMP_FILE. Fallback: compare the two descriptors'
// /proc/self/fdinfo contents byte-for-byte ("use /proc" is the fallback
// that eventfd.go's Value() comment also names for descriptor introspection).
func sameKernelObject(fd1, fd2 int32) bool {
	pid := uintptr(os.Getpid())
	ret, errno := zcall.Syscall6(SYS_KCMP, pid, pid, kcmpFile, uintptr(fd1), uintptr(fd2), 0)
	if errno == 0 {
		return ret == 0
	}

	// kcmp unavailable (e.g. denied by seccomp, or kernel without
	// CONFIG_CHECKPOINT_RESTORE) - fall back to comparing fdinfo text.
	info1, err1 := readFdInfo(fd1)
	info2, err2 := readFdInfo(fd2)
	if err1 != nil || err2 != nil {
		// Either side vanished - in particular the user's side, which is
		// exactly how we detect they closed it.
		return false
	}
	return bytes.Equal(info1, info2)
}

func readFdInfo(fd int32) ([]byte, error) {
	path := fmt.Sprintf("/proc/self/fdinfo/%d", fd)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}
