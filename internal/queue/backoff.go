package queue

import (
	"sync"
	"time"
)

const (
	defaultMaxFailures = 3
	defaultBackoff     = 5 * time.Minute
)

// attemptRecord tracks download failures for one locator.
type attemptRecord struct {
	failures    int
	lastFailure time.Time
}

// AttemptRecords is the download retry policy: a locator that has failed
// maxFailures times is skipped until the backoff window has elapsed since its
// last failure, at which point its counter resets and it becomes eligible
// again. A success clears the record entirely.
//
// Safe for concurrent use.
type AttemptRecords struct {
	mu      sync.Mutex
	records map[string]*attemptRecord

	maxFailures int
	backoff     time.Duration

	// now is the clock, overridden in tests.
	now func() time.Time
}

// NewAttemptRecords creates the policy with the default ceiling (3 failures)
// and backoff window (5 minutes).
func NewAttemptRecords() *AttemptRecords {
	return &AttemptRecords{
		records:     make(map[string]*attemptRecord),
		maxFailures: defaultMaxFailures,
		backoff:     defaultBackoff,
		now:         time.Now,
	}
}

// Allowed reports whether a download attempt for locator may proceed. When a
// suppressed locator's backoff window has elapsed, its failure count resets
// as a side effect.
func (a *AttemptRecords) Allowed(locator string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[locator]
	if !ok || rec.failures < a.maxFailures {
		return true
	}
	if a.now().Sub(rec.lastFailure) >= a.backoff {
		rec.failures = 0
		return true
	}
	return false
}

// RecordFailure notes a failed download attempt for locator.
func (a *AttemptRecords) RecordFailure(locator string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[locator]
	if !ok {
		rec = &attemptRecord{}
		a.records[locator] = rec
	}
	rec.failures++
	rec.lastFailure = a.now()
}

// RecordSuccess clears the failure record for locator.
func (a *AttemptRecords) RecordSuccess(locator string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.records, locator)
}

// Failures reports the current failure count for locator.
func (a *AttemptRecords) Failures(locator string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec, ok := a.records[locator]; ok {
		return rec.failures
	}
	return 0
}
