package testutil

import (
	"testing"
	"time"
)

// DefaultWait bounds how long tests wait on asynchronous delivery
const DefaultWait = 2 * time.Second

// Receive returns the next value from ch, failing the test if none arrives
// within DefaultWait or the channel is closed
func Receive[T any](t testing.TB, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed while waiting for a value")
		}
		return v
	case <-time.After(DefaultWait):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

// ReceiveMatching discards values from ch until match returns true
func ReceiveMatching[T any](t testing.TB, ch <-chan T, match func(T) bool) T {
	t.Helper()
	deadline := time.After(DefaultWait)
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				t.Fatal("channel closed while waiting for a matching value")
			}
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching value")
		}
	}
}

// WaitClosed fails the test unless ch is closed within DefaultWait. Values
// still buffered are drained.
func WaitClosed[T any](t testing.TB, ch <-chan T) {
	t.Helper()
	deadline := time.After(DefaultWait)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel to close")
		}
	}
}
