// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCacheManager() *cacheManager {
	entries, _ := backedCache(FamilySession)
	index, _ := backedCache(FamilyUserIndex)
	return newCacheManager(entries, index, DefaultFingerprintGenerator{}, testClock(), testLogger())
}

func newTestStoreManager(repo *memorySessionRepo) *storeManager {
	return newStoreManager(repo, DefaultFingerprintGenerator{}, testClock(), testLogger())
}

func newTestHybridManager(repo *memorySessionRepo) (*hybridManager, *familyCache, *familyCache) {
	entries, _ := backedCache(FamilySession)
	index, _ := backedCache(FamilyUserIndex)
	store := newTestStoreManager(repo)
	return newHybridManager(store, entries, index, testClock(), testLogger()), entries, index
}

/*
TestCacheManager_Lifecycle runs the full create/get/list/count/delete cycle
against the cache-only variant.
*/
func TestCacheManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	manager := newTestCacheManager()

	first, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-a", "en", `"Linux"`))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, first.DeviceFingerprint)

	second, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-b", "en", `"Windows"`))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// Get answers the entry; fingerprint survives only via the parallel key.
	loaded, err := manager.GetSession(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "user-1", loaded.UserID)

	fingerprint, err := manager.GetSessionFingerprint(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.DeviceFingerprint, fingerprint)

	// List and count reflect both sessions.
	sessions, err := manager.GetSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	total, err := manager.TotalUserSessions(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Deleting one leaves the other intact and heals the index.
	require.NoError(t, manager.DeleteSession(ctx, first.ID))

	gone, err := manager.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	remaining, err := manager.GetSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)
}

/*
TestCacheManager_BlankInputs verifies the silent-and-safe read posture and
the fatal mutation posture on blank identifiers.
*/
func TestCacheManager_BlankInputs(t *testing.T) {
	ctx := context.Background()
	manager := newTestCacheManager()

	_, err := manager.CreateSession(ctx, "  ", deviceRequest("d", "", ""))
	assert.Error(t, err)

	session, err := manager.GetSession(ctx, "")
	assert.NoError(t, err)
	assert.Nil(t, session)

	sessions, err := manager.GetSessionsByUser(ctx, " ")
	assert.NoError(t, err)
	assert.Empty(t, sessions)

	assert.NoError(t, manager.DeleteSession(ctx, ""))
}

/*
TestCacheManager_DeleteAll verifies batched deletion updates every affected
user's index.
*/
func TestCacheManager_DeleteAll(t *testing.T) {
	ctx := context.Background()
	manager := newTestCacheManager()

	a, _ := manager.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	b, _ := manager.CreateSession(ctx, "user-1", deviceRequest("d2", "en", ""))
	c, _ := manager.CreateSession(ctx, "user-2", deviceRequest("d3", "en", ""))

	require.NoError(t, manager.DeleteAllSessions(ctx, []string{a.ID, c.ID}))

	userOne, err := manager.GetSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, userOne, 1)
	assert.Equal(t, b.ID, userOne[0].ID)

	userTwo, err := manager.GetSessionsByUser(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, userTwo)
}

/*
TestStoreManager_Lifecycle runs the lifecycle against the store-only variant
with an in-memory repository.
*/
func TestStoreManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySessionRepo()
	manager := newTestStoreManager(repo)

	created, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-a", "en", `"macOS"`))
	require.NoError(t, err)
	assert.Equal(t, "macos", created.DeviceOS)

	loaded, err := manager.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, created.DeviceFingerprint, loaded.DeviceFingerprint)

	// Missing IDs resolve nil, not error.
	missing, err := manager.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Mark-on-revoke keeps the row but drops it from the active view.
	require.NoError(t, manager.markRevoked(ctx, created.ID, testClock().Now()))

	all, err := manager.GetSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := manager.GetActiveSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

/*
TestHybridManager_ReadThrough verifies cache population on read miss and the
write-through on create.
*/
func TestHybridManager_ReadThrough(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySessionRepo()
	manager, entries, _ := newTestHybridManager(repo)

	created, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-a", "en", `"Linux"`))
	require.NoError(t, err)

	// Create wrote through: entry and fingerprint are cached.
	assert.True(t, entries.get(ctx, sessionKey(created.ID), &Session{}))
	var fingerprint string
	require.True(t, entries.get(ctx, fingerprintKey(created.ID), &fingerprint))
	assert.Equal(t, created.DeviceFingerprint, fingerprint)

	// Evict the entry; the next read must fall back to the store and
	// repopulate the cache.
	entries.evict(ctx, sessionKey(created.ID))

	loaded, err := manager.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, entries.get(ctx, sessionKey(created.ID), &Session{}))
}

/*
TestHybridManager_DeleteEvicts verifies store-first deletion with cache
eviction of entry, fingerprint, and user index.
*/
func TestHybridManager_DeleteEvicts(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySessionRepo()
	manager, entries, index := newTestHybridManager(repo)

	created, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-a", "en", ""))
	require.NoError(t, err)

	// Listing refreshes the cached index.
	_, err = manager.GetSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, index.get(ctx, userSessionsKey("user-1"), &UserSessionIndex{}))

	require.NoError(t, manager.DeleteSession(ctx, created.ID))

	assert.False(t, entries.get(ctx, sessionKey(created.ID), &Session{}))
	var fingerprint string
	assert.False(t, entries.get(ctx, fingerprintKey(created.ID), &fingerprint))
	assert.False(t, index.get(ctx, userSessionsKey("user-1"), &UserSessionIndex{}))

	stillThere, err := repo.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, stillThere)
}

/*
TestHybridManager_MarkRevokedRefreshesCache verifies that marking a session
revoked updates the cached copy in place.
*/
func TestHybridManager_MarkRevokedRefreshesCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemorySessionRepo()
	manager, entries, _ := newTestHybridManager(repo)

	created, err := manager.CreateSession(ctx, "user-1", deviceRequest("device-a", "en", ""))
	require.NoError(t, err)

	require.NoError(t, manager.markRevoked(ctx, created.ID, testClock().Now()))

	cached := &Session{}
	require.True(t, entries.get(ctx, sessionKey(created.ID), cached))
	assert.True(t, cached.IsRevoked)
	require.NotNil(t, cached.RevokedAt)
}

/*
TestNewSessionFromRequest_DeviceMetadata verifies the fingerprint binding and
the optional metadata extraction.
*/
func TestNewSessionFromRequest_DeviceMetadata(t *testing.T) {
	request := deviceRequest("device-a", "en-US", `"Windows"`)
	request.Header.Set("X-Device-Name", "Work Laptop")
	request.Header.Set("X-Device-Type", "desktop")

	session, err := newSessionFromRequest(DefaultFingerprintGenerator{}, testClock(), "user-1", request)
	require.NoError(t, err)

	assert.Equal(t, "Work Laptop", session.DeviceName)
	assert.Equal(t, "windows", session.DeviceOS)
	assert.Equal(t, "desktop", session.DeviceType)
	assert.False(t, session.IsRevoked)
	assert.Equal(t, testClock().Now(), session.CreatedAt)
}
