package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/chessmatch-go/internal/dependencies/random"
)

// MockRandom replays queued values. When a queue runs dry Intn returns 0 and
// String returns a deterministic, never-repeating code, so tests that do not
// care about codes never hit an endless collision loop.
type MockRandom struct {
	mu       sync.Mutex
	ints     []int
	strings  []string
	fallback int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates an empty MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	if n > 0 {
		v %= n
	}
	return v
}

func (r *MockRandom) String(length int, _ string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.strings) > 0 {
		v := r.strings[0]
		r.strings = r.strings[1:]
		return v
	}
	r.fallback++
	code := fmt.Sprintf("Z%0*d", max(length-1, 1), r.fallback)
	return code
}

// QueueIntn appends values returned by subsequent Intn calls
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ints = append(r.ints, values...)
}

// QueueString appends values returned by subsequent String calls
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strings = append(r.strings, values...)
}
