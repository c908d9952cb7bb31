package core

// run_limiter.go implements concurrency control for import runs.
//
// Two limits apply. A semaphore caps the number of runs across all tenants,
// and a per-tenant lock serializes runs of one tenant so that an entity
// created by one run is visible to the next. A caller waits up to maxWait
// for both before failing with ErrRunBusy or ErrTenantBusy.
//
// WaitForDrain blocks until all active runs complete, for graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrRunBusy is returned when all run slots stay occupied for maxWait.
	ErrRunBusy = errors.New("too many imports running, please try again later")

	// ErrTenantBusy is returned when the tenant's previous run does not finish within maxWait.
	ErrTenantBusy = errors.New("import already running for this tenant")
)

// DefaultMaxConcurrentRuns is the default limit for parallel runs.
const DefaultMaxConcurrentRuns = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunLimiter bounds concurrent runs and serializes runs per tenant.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.Mutex
	active  int
	tenants map[string]chan struct{}
}

// NewRunLimiter creates a limiter that allows at most maxConcurrent simultaneous runs.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		tenants:   make(map[string]chan struct{}),
	}
}

// tenantLock returns the lock channel of tenant, creating it on first use.
func (l *RunLimiter) tenantLock(tenant string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.tenants[tenant]
	if !ok {
		lock = make(chan struct{}, 1)
		l.tenants[tenant] = lock
	}
	return lock
}

// Acquire takes the tenant's lock and then a run slot.
// The caller MUST call Release(tenant) when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context, tenant string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	lock := l.tenantLock(tenant)
	select {
	case lock <- struct{}{}:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTenantBusy
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		<-lock
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRunBusy
	}
}

// TryAcquire attempts to acquire without blocking.
// Returns true if both the tenant lock and a slot were acquired.
func (l *RunLimiter) TryAcquire(tenant string) bool {
	lock := l.tenantLock(tenant)
	select {
	case lock <- struct{}{}:
	default:
		return false
	}

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		<-lock
		return false
	}
}

// Release releases the slot and the tenant lock.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *RunLimiter) Release(tenant string) {
	l.mu.Lock()
	l.active--
	lock := l.tenants[tenant]
	l.mu.Unlock()

	<-l.semaphore
	<-lock
}

// ActiveCount returns the number of currently active runs.
func (l *RunLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent runs.
func (l *RunLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of available slots.
func (l *RunLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active runs complete or ctx is cancelled.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter's current state.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring/debugging.
func (l *RunLimiter) Status() RunLimiterStatus {
	return RunLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.semaphore),
	}
}
