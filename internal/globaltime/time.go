// Package globaltime is the process-wide clock. Tests pin it with SetMockTime or
// hand a Fixed clock to components that accept one.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	nowFunc = time.Now
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return nowFunc()
}

func UTC() time.Time {
	return Now().UTC()
}

// Fixed returns a clock that always reports t in UTC.
func Fixed(t time.Time) func() time.Time {
	pinned := t.UTC()
	return func() time.Time { return pinned }
}

func SetMockTime(t time.Time) {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = func() time.Time { return t }
}

func ResetTime() {
	mu.Lock()
	defer mu.Unlock()
	nowFunc = time.Now
}
