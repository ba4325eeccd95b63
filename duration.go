// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package vtime

import "time"

// Instant is a signed 64-bit count of nanoseconds since a fixed, otherwise
// irrelevant origin. Zero is reserved as the "disarmed/no value" sentinel,
// which is why the simulator's initial instant is 1 second, not zero.
type Instant int64

// Add returns the instant advanced by d.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d)
}

// Sub returns the duration between two instants.
func (i Instant) Sub(other Instant) time.Duration {
	return time.Duration(i - other)
}

// timeval mirrors struct timeval (seconds, microseconds).
type timeval struct {
	sec  int64
	usec int64
}

// toTimeval converts a non-negative duration to seconds+microseconds,
// truncating any sub-microsecond remainder.
func toTimeval(d time.Duration) timeval {
	ns := int64(d)
	return timeval{
		sec:  ns / 1e9,
		usec: (ns % 1e9) / 1e3,
	}
}

// durationFromTimeval is the inverse of toTimeval: total nanoseconds
// represented by a seconds+microseconds pair.
func durationFromTimeval(tv timeval) time.Duration {
	return time.Duration(tv.sec*1e9 + tv.usec*1e3)
}

// toTimespec converts a non-negative duration to seconds+nanoseconds.
func toTimespec(d time.Duration) timespec {
	ns := int64(d)
	return timespec{
		sec:  ns / 1e9,
		nsec: ns % 1e9,
	}
}

// durationFromTimespec is the inverse of toTimespec.
func durationFromTimespec(ts timespec) time.Duration {
	return time.Duration(ts.sec*1e9 + ts.nsec)
}

// instantFromTimespec interprets a timespec as an absolute instant
// (seconds+nanoseconds since the simulator's origin), used for
// TFD_TIMER_ABSTIME-style absolute arm requests.
func instantFromTimespec(ts timespec) Instant {
	return Instant(ts.sec*1e9 + ts.nsec)
}

// toTimespecInstant is the inverse of instantFromTimespec.
func toTimespecInstant(t Instant) timespec {
	ns := int64(t)
	return timespec{sec: ns / 1e9, nsec: ns % 1e9}
}
