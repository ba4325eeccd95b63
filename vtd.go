// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import "time"

// vtd is a Virtual Timer Descriptor: a pair of real kernel event-signal
// descriptors sharing one kernel counter object, modeling a single
// arm-able, interval-capable timer entirely on top of a real eventfd.
//
// The user fd is indistinguishable from a real timerfd to read/poll/
// epoll/select: it is a real, blocking eventfd, and the simulator only
// ever writes to it to "fire" it. The internal fd is an independent
// reference to the same kernel object, obtained by duplicating the user
// fd immediately after creation, used solely to detect that the user has
// closed their side (see equiv.go).
//
// Invariants (spec.md §3):
//   - valid iff both fds are open
//   - nextExpiration == 0 means disarmed
//   - nextExpiration == 0 on creation implies interval == 0, but interval
//     may be non-zero while the timer is momentarily unarmed during a
//     disarm (set_time(0, ·) clears nextExpiration, leaving interval in
//     place is never relied upon by callers; setTime always sets both).
type vtd struct {
	user           *EventFD
	internalFd     FD
	nextExpiration Instant
	interval       time.Duration
}

// openVTD allocates a fresh, disarmed virtual timer descriptor.
func openVTD() (*vtd, error) {
	user, err := newBlockingEventFD(0)
	if err != nil {
		return nil, err
	}
	internal, err := user.fd.Dup()
	if err != nil {
		user.Close()
		return nil, err
	}
	return &vtd{user: user, internalFd: internal}, nil
}

// userFd returns the descriptor number handed to the user.
func (v *vtd) userFd() int32 {
	return v.user.fd.Raw()
}

// setTime overwrites the arm state. Does not itself fire the timer;
// callers that want "fire immediately if already past due" must follow
// up with advanceTo(now).
func (v *vtd) setTime(expiration Instant, interval time.Duration) {
	v.nextExpiration = expiration
	v.interval = interval
}

// advanceTo fires the timer if it is armed and t has reached its
// expiration, incrementing the user-visible counter by the number of
// intervals elapsed (at least 1), and rearms for the next interval or
// disarms for a one-shot.
func (v *vtd) advanceTo(t Instant) {
	if v.nextExpiration == 0 || t < v.nextExpiration {
		return
	}
	var k uint64 = 1
	if v.interval > 0 {
		k = 1 + uint64(t.Sub(v.nextExpiration)/v.interval)
	}
	// Best-effort: a write to a real eventfd with room for the value
	// cannot fail except if the user has already closed their side, in
	// which case this vtd is about to be evicted anyway.
	_ = v.user.Signal(k)
	if v.interval > 0 {
		v.nextExpiration = v.nextExpiration.Add(time.Duration(k) * v.interval)
	} else {
		v.nextExpiration = 0
	}
}

// userClosed reports whether the user has closed their side of the pair.
func (v *vtd) userClosed() bool {
	return !sameKernelObject(v.userFd(), int32(v.internalFd.Raw()))
}

// close releases the simulator's own internal fd. The user fd is the
// user's property and is never closed here.
func (v *vtd) close() {
	_ = v.internalFd.Close()
}
