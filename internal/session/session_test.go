package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixaill76/claude_openai_bridge/internal/testhelpers"
)

func newTestManager(t *testing.T, ttlMin, ttlMax int) *Manager {
	t.Helper()
	manager, err := NewManager(ttlMin, ttlMax, 60, testhelpers.NewTestLogger())
	require.NoError(t, err)
	return manager
}

func TestResolveReusesSessionForSameIdentity(t *testing.T) {
	manager := newTestManager(t, 10, 100)
	first := manager.Resolve("identity-a")
	second := manager.Resolve("identity-a")
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "sess_"))
}

func TestResolveDistinctIdentities(t *testing.T) {
	manager := newTestManager(t, 10, 100)
	assert.NotEqual(t, manager.Resolve("identity-a"), manager.Resolve("identity-b"))
}

func TestResolveIssuesNewIDAfterExpiry(t *testing.T) {
	manager := newTestManager(t, 10, 100)
	current := time.Now()
	manager.now = func() time.Time { return current }

	first := manager.Resolve("identity-a")

	current = current.Add(11 * time.Second)
	second := manager.Resolve("identity-a")
	assert.NotEqual(t, first, second)
}

func TestResolveWithinTTLKeepsID(t *testing.T) {
	manager := newTestManager(t, 10, 100)
	current := time.Now()
	manager.now = func() time.Time { return current }

	first := manager.Resolve("identity-a")
	current = current.Add(9 * time.Second)
	assert.Equal(t, first, manager.Resolve("identity-a"))
}

func TestDynamicTTLBoundedAndMonotonic(t *testing.T) {
	manager := newTestManager(t, 600, 7200)

	ttlZero := manager.dynamicTTL(0, 1)
	ttlMid := manager.dynamicTTL(50_000, 1)
	ttlHigh := manager.dynamicTTL(50_000_000, 1)

	assert.GreaterOrEqual(t, ttlZero, 600*time.Second)
	assert.LessOrEqual(t, ttlHigh, 7200*time.Second)
	assert.LessOrEqual(t, ttlZero, ttlMid)
	assert.LessOrEqual(t, ttlMid, ttlHigh)
	assert.GreaterOrEqual(t, ttlHigh, 7190*time.Second)
}

func TestDynamicTTLHitBonus(t *testing.T) {
	manager := newTestManager(t, 600, 7200)
	assert.Greater(t, manager.dynamicTTL(1000, 100), manager.dynamicTTL(1000, 1))
}

func TestAddUsageExtendsTTL(t *testing.T) {
	manager := newTestManager(t, 10, 86400)
	current := time.Now()
	manager.now = func() time.Time { return current }

	first := manager.Resolve("identity-a")
	manager.AddUsage("identity-a", 1_000_000)

	// Far beyond the minimum TTL, but the token volume keeps it alive.
	current = current.Add(3 * time.Hour)
	assert.Equal(t, first, manager.Resolve("identity-a"))
}

func TestCleanupRemovesExpiredKeepsActive(t *testing.T) {
	manager := newTestManager(t, 60, 3600)
	current := time.Now()
	manager.now = func() time.Time { return current }

	manager.Resolve("expired")
	current = current.Add(30 * time.Second)
	manager.Resolve("active")

	current = current.Add(45 * time.Second)
	removed := manager.CleanupExpired()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, manager.Len())
}

func TestIdentityKeyPriority(t *testing.T) {
	withDevice := IdentityKey("device-1", "key", "1.2.3.4")
	sameDeviceOtherIP := IdentityKey("device-1", "key", "5.6.7.8")
	assert.Equal(t, withDevice, sameDeviceOtherIP, "device id wins over ip")

	anonA := IdentityKey("", "key", "1.2.3.4")
	anonB := IdentityKey("", "key", "5.6.7.8")
	assert.NotEqual(t, anonA, anonB, "ip participates without device id")

	assert.Len(t, withDevice, 64)
}
