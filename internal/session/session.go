// Package session derives stable upstream session identifiers from client
// identity. Session ids are purely a routing hint for upstream gateways;
// bridge semantics never depend on upstream honoring them.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// maxEntries bounds the session table. The LRU evicts least-recently-used
// records beyond this watermark independent of TTL expiry.
const maxEntries = 100_000

// ttlTokenHalfPoint is the token volume at which the dynamic TTL sits halfway
// between its minimum and maximum.
const ttlTokenHalfPoint = 50_000.0

// entry is one session record.
type entry struct {
	sessionID  string
	createdAt  time.Time
	lastAccess time.Time
	hitCount   int
	tokens     int64
	ttlCurrent time.Duration
}

// Manager is the concurrent session table.
type Manager struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *entry]

	ttlMin          time.Duration
	ttlMax          time.Duration
	cleanupInterval time.Duration

	log *slog.Logger

	now func() time.Time // overridable in tests
}

// NewManager creates a session table with the given TTL bounds (seconds).
func NewManager(ttlMinSecs, ttlMaxSecs, cleanupIntervalSecs int, log *slog.Logger) (*Manager, error) {
	cache, err := lru.New[string, *entry](maxEntries)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cache:           cache,
		ttlMin:          time.Duration(ttlMinSecs) * time.Second,
		ttlMax:          time.Duration(ttlMaxSecs) * time.Second,
		cleanupInterval: time.Duration(cleanupIntervalSecs) * time.Second,
		log:             log,
		now:             time.Now,
	}, nil
}

// IdentityKey derives the session identity. The x-device-id header wins when
// present; otherwise the identity is the fingerprint of (auth key, client IP).
func IdentityKey(deviceID, apiKey, clientIP string) string {
	var source string
	if deviceID != "" {
		source = "device|" + deviceID
	} else {
		if apiKey == "" {
			apiKey = "anonymous"
		}
		if clientIP == "" {
			clientIP = "unknown"
		}
		source = apiKey + "|" + clientIP
	}
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Resolve returns the session id for an identity, creating a record on first
// observation. Hits refresh last access, bump the hit counter, and extend
// the current TTL.
func (m *Manager) Resolve(identity string) string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.cache.Get(identity); ok && !m.expiredLocked(record, now) {
		record.lastAccess = now
		record.hitCount++
		record.ttlCurrent = m.dynamicTTL(record.tokens, record.hitCount)
		return record.sessionID
	}

	record := &entry{
		sessionID:  "sess_" + uuid.NewString(),
		createdAt:  now,
		lastAccess: now,
		hitCount:   1,
		ttlCurrent: m.ttlMin,
	}
	m.cache.Add(identity, record)
	return record.sessionID
}

// AddUsage credits a request's token volume to the identity's record,
// extending its TTL. Unknown identities are ignored (the record may already
// have been evicted by the time a slow stream finishes).
func (m *Manager) AddUsage(identity string, tokens int) {
	if tokens <= 0 {
		return
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.cache.Get(identity)
	if !ok {
		return
	}
	record.tokens += int64(tokens)
	record.lastAccess = now
	record.ttlCurrent = m.dynamicTTL(record.tokens, record.hitCount)
}

// Len returns the current table size.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// CleanupExpired drops all records whose TTL has lapsed and returns how many
// were removed.
func (m *Manager) CleanupExpired() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, key := range m.cache.Keys() {
		record, ok := m.cache.Peek(key)
		if !ok {
			continue
		}
		if m.expiredLocked(record, now) {
			m.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs the periodic cleanup task until ctx is cancelled.
func (m *Manager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := m.CleanupExpired(); removed > 0 {
					m.log.Debug("Session cleanup", "removed", removed, "remaining", m.Len())
				}
			}
		}
	}()
}

func (m *Manager) expiredLocked(record *entry, now time.Time) bool {
	return now.Sub(record.lastAccess) > record.ttlCurrent
}

// dynamicTTL extends the TTL with token volume (saturating curve) and hit
// frequency (logarithmic bonus), clamped to [ttlMin, ttlMax].
func (m *Manager) dynamicTTL(tokens int64, hits int) time.Duration {
	minSecs := m.ttlMin.Seconds()
	maxSecs := m.ttlMax.Seconds()
	if maxSecs <= minSecs {
		return m.ttlMin
	}

	usage := float64(tokens)
	ttlSecs := minSecs + (maxSecs-minSecs)*(usage/(usage+ttlTokenHalfPoint))
	ttlSecs += 60 * math.Log2(float64(hits)+1)

	ttlSecs = math.Min(math.Max(ttlSecs, minSecs), maxSecs)
	return time.Duration(ttlSecs * float64(time.Second))
}
