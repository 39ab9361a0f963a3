// Package fail2ban temporarily bans clients that repeatedly fail API key
// validation, shielding the auth gate from brute-force probing.
package fail2ban

import (
	"sync"
	"time"
)

type Fail2Ban struct {
	mu          sync.RWMutex
	maxAttempts int
	banDuration time.Duration // 0 means permanent ban
	failures    map[string]int
	banned      map[string]time.Time
}

// New creates a Fail2Ban tracker keyed by client address.
func New(maxAttempts int, banDuration time.Duration) *Fail2Ban {
	return &Fail2Ban{
		maxAttempts: maxAttempts,
		banDuration: banDuration,
		failures:    make(map[string]int),
		banned:      make(map[string]time.Time),
	}
}

// RecordFailure counts one failed auth attempt; the client is banned once
// maxAttempts is reached.
func (f *Fail2Ban) RecordFailure(clientIP string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, isBanned := f.banned[clientIP]; isBanned {
		return
	}
	f.failures[clientIP]++
	if f.failures[clientIP] >= f.maxAttempts {
		f.banned[clientIP] = time.Now()
	}
}

// RecordSuccess resets the failure counter after a valid key.
func (f *Fail2Ban) RecordSuccess(clientIP string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, clientIP)
}

// IsBanned reports whether the client is currently banned. Expired bans are
// lifted lazily.
func (f *Fail2Ban) IsBanned(clientIP string) bool {
	f.mu.RLock()
	banTime, isBanned := f.banned[clientIP]
	f.mu.RUnlock()

	if !isBanned {
		return false
	}
	if f.banDuration == 0 {
		return true
	}
	if time.Since(banTime) < f.banDuration {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Re-check after lock upgrade.
	if banTime, stillBanned := f.banned[clientIP]; stillBanned && time.Since(banTime) >= f.banDuration {
		delete(f.banned, clientIP)
		delete(f.failures, clientIP)
	}
	return false
}

// FailureCount returns the current failure counter for a client.
func (f *Fail2Ban) FailureCount(clientIP string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.failures[clientIP]
}
