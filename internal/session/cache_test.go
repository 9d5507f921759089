// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestFamilyCache_AbsentIsSilentNoOp verifies the degraded path: when the named
cache does not resolve, every operation no-ops without error.
*/
func TestFamilyCache_AbsentIsSilentNoOp(t *testing.T) {
	ctx := context.Background()
	fc := absentCache(FamilySession)

	require.True(t, fc.absent())

	// Writes vanish, reads miss, evictions remove nothing.
	fc.put(ctx, "session-pool-abc", &Session{ID: "abc"})

	target := &Session{}
	assert.False(t, fc.get(ctx, "session-pool-abc", target))
	assert.False(t, fc.evict(ctx, "session-pool-abc"))
	assert.Empty(t, fc.multiGet(ctx, []string{"session-pool-abc"}))
	assert.Zero(t, fc.multiEvict(ctx, []string{"session-pool-abc"}))
}

/*
TestFamilyCache_UndeclaredNameResolvesAbsent verifies that a provider answers
nil for a cache name it never declared, and the family layer degrades to the
absent path rather than failing.
*/
func TestFamilyCache_UndeclaredNameResolvesAbsent(t *testing.T) {
	provider := newMemoryProvider("session-pool")

	fc := newFamilyCache(FamilyRevocation, "no-such-pool", provider, testLogger())
	assert.True(t, fc.absent())

	resolved := newFamilyCache(FamilySession, "session-pool", provider, testLogger())
	assert.False(t, resolved.absent())
}

/*
TestFamilyCache_RoundTrip verifies JSON encode/decode through a backed cache.
*/
func TestFamilyCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fc, _ := backedCache(FamilySession)

	stored := &Session{ID: "sid-1", UserID: "user-1", DeviceFingerprint: "fp", DeviceOS: "linux"}
	fc.put(ctx, sessionKey(stored.ID), stored)

	loaded := &Session{}
	require.True(t, fc.get(ctx, sessionKey(stored.ID), loaded))
	assert.Equal(t, stored.ID, loaded.ID)
	assert.Equal(t, stored.UserID, loaded.UserID)
	assert.Equal(t, stored.DeviceOS, loaded.DeviceOS)

	// DeviceFingerprint is json:"-": it never crosses the wire.
	assert.Empty(t, loaded.DeviceFingerprint)

	assert.True(t, fc.evict(ctx, sessionKey(stored.ID)))
	assert.False(t, fc.get(ctx, sessionKey(stored.ID), &Session{}))
}

/*
TestFamilyCache_MultiOps verifies batched fetch and eviction.
*/
func TestFamilyCache_MultiOps(t *testing.T) {
	ctx := context.Background()
	fc, backing := backedCache(FamilySession)

	fc.put(ctx, "k1", "v1")
	fc.put(ctx, "k2", "v2")

	entries := fc.multiGet(ctx, []string{"k1", "k2", "k3"})
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "k1")
	assert.NotContains(t, entries, "k3")

	assert.EqualValues(t, 2, fc.multiEvict(ctx, []string{"k1", "k2", "k3"}))
	assert.Zero(t, backing.size())
}

/*
TestCacheKeys pins the canonical key shapes. Cooperating replicas rely on
these exact prefixes.
*/
func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "session-pool-sid1", sessionKey("sid1"))
	assert.Equal(t, "user-sessions-u1", userSessionsKey("u1"))
	assert.Equal(t, "revocation-sid1", revocationKey("sid1"))
	assert.Equal(t, "revocation-by-user-u1", revocationByUserKey("u1"))
	assert.Equal(t, "fingerprint-sid1", fingerprintKey("sid1"))
}

/*
TestCanonicalCacheNames pins the default cache aliases per family.
*/
func TestCanonicalCacheNames(t *testing.T) {
	assert.Equal(t, "session-pool", FamilySession.CanonicalCacheName())
	assert.Equal(t, "revoked-session-pool", FamilyRevocation.CanonicalCacheName())
	assert.Equal(t, "user-session-mapping", FamilyUserIndex.CanonicalCacheName())
	assert.Equal(t, "activity-log-pool", FamilyActivityLog.CanonicalCacheName())
}
