// ABOUTME: Thread-safe in-flight request tracker for deduplicating admissions.
// ABOUTME: The dispatcher acquires a key before work starts and releases it after.

package dedupe

import (
	"sync"
	"time"
)

// InFlight tracks requests that are currently being processed. A key is
// acquired when a request is admitted and released when its terminal
// outcome is reached. A second acquire for the same key fails until the
// first holder releases it.
//
// A background janitor reaps entries older than maxAge so a leaked key
// (a crashed worker that never released) cannot block a requester forever.
type InFlight struct {
	mu     sync.Mutex
	active map[string]time.Time
	maxAge time.Duration
	done   chan struct{}
	closed bool
}

// New creates an in-flight tracker. Entries older than maxAge are reaped
// by a background goroutine.
func New(maxAge time.Duration) *InFlight {
	f := &InFlight{
		active: make(map[string]time.Time),
		maxAge: maxAge,
		done:   make(chan struct{}),
	}
	go f.janitor()
	return f
}

// TryAcquire attempts to admit the key. Returns true if the key was free
// and is now held by the caller, false if another request already holds it.
// The check and the insert are a single atomic step.
func (f *InFlight) TryAcquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if since, held := f.active[key]; held && time.Since(since) < f.maxAge {
		return false
	}

	f.active[key] = time.Now()
	return true
}

// Release frees the key so a new request for it can be admitted.
// Releasing a key that is not held is a no-op.
func (f *InFlight) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, key)
}

// Held reports whether the key is currently admitted and not expired.
func (f *InFlight) Held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	since, held := f.active[key]
	return held && time.Since(since) < f.maxAge
}

// Len returns the number of keys currently tracked, including expired
// entries the janitor has not reaped yet.
func (f *InFlight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// janitor runs in a background goroutine, periodically reaping leaked entries.
func (f *InFlight) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.reap()
		case <-f.done:
			return
		}
	}
}

// reap removes all entries older than maxAge.
func (f *InFlight) reap() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for key, since := range f.active {
		if now.Sub(since) > f.maxAge {
			delete(f.active, key)
		}
	}
}

// Close stops the janitor goroutine. It is safe to call multiple times.
func (f *InFlight) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		close(f.done)
		f.closed = true
	}
}
