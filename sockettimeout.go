// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import (
	"sync"
	"time"
)

// socketTimeouts holds the per-socket virtual receive/send timeouts set
// via setsockopt(SO_RCVTIMEO|SO_SNDTIMEO) while a client is active.
//
// A zero duration means "no virtual timeout" (spec.md §3). Mutations
// happen in addition to the real setsockopt call so that blocking
// semantics stay realistic the moment interception turns off.
type socketTimeouts struct {
	mu   sync.Mutex
	recv map[int32]time.Duration
	send map[int32]time.Duration
}

func newSocketTimeouts() *socketTimeouts {
	return &socketTimeouts{
		recv: make(map[int32]time.Duration),
		send: make(map[int32]time.Duration),
	}
}

func (s *socketTimeouts) getRecv(fd int32) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recv[fd]
}

func (s *socketTimeouts) getSend(fd int32) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.send[fd]
}

func (s *socketTimeouts) setRecv(fd int32, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recv[fd] = d
}

func (s *socketTimeouts) setSend(fd int32, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send[fd] = d
}

// forget drops any timeouts recorded for fd, called when a socket is
// closed so the registry does not grow unbounded across a long test run.
func (s *socketTimeouts) forget(fd int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recv, fd)
	delete(s.send, fd)
}
