// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeEngine builds a mark-on-revoke engine over in-memory repositories.
func storeEngine(t *testing.T) (*Engine, *storeManager, *memoryRevocationRepo) {
	t.Helper()
	sessions := newTestStoreManager(newMemorySessionRepo())
	records := newMemoryRevocationRepo()
	cache := absentCache(FamilyRevocation)

	engine := newEngine(sessions, sessions, records, cache, false,
		staticProbe{actor: "admin-7"}, testClock(), testLogger())
	return engine, sessions, records
}

// cacheOnlyEngine builds an engine over the cache-only manager: no store, no
// reflector, delete-on-revoke forced.
func cacheOnlyEngine(t *testing.T) (*Engine, *cacheManager) {
	t.Helper()
	sessions := newTestCacheManager()
	cache, _ := backedCache(FamilyRevocation)

	engine := newEngine(sessions, nil, nil, cache, false,
		staticProbe{actor: "admin-7"}, testClock(), testLogger())
	return engine, sessions
}

/*
TestEngine_RevokeOne verifies single-session revocation under mark-on-revoke:
the record is written, the session stays but leaves the active view.
*/
func TestEngine_RevokeOne(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)

	revoked, err := engine.Revoke(ctx, OneIntent(created.ID, "stolen laptop"))
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, revoked)

	// Record carries the probe's actor and the intent note.
	record, err := engine.RevocationFor(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "admin-7", record.TriggeredBy)
	assert.Equal(t, "stolen laptop", record.Note)
	assert.Equal(t, RevokeOne, record.Kind)

	// Mark-on-revoke: the session survives, flagged.
	kept, err := sessions.GetSession(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.True(t, kept.IsRevoked)

	active, err := sessions.GetActiveSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

/*
TestEngine_RevokeOne_Idempotent verifies that revoking an already-revoked
session is a no-op answering zero new targets, and the original record is
untouched.
*/
func TestEngine_RevokeOne_Idempotent(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)

	first, err := engine.Revoke(ctx, OneIntent(created.ID, "first"))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := engine.Revoke(ctx, OneIntent(created.ID, "second"))
	require.NoError(t, err)
	assert.Empty(t, second)

	record, err := engine.RevocationFor(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", record.Note)
}

/*
TestEngine_RevokeOne_MissingSession verifies that a ONE intent against an
unknown session is a logged no-op, not an error.
*/
func TestEngine_RevokeOne_MissingSession(t *testing.T) {
	engine, _, _ := storeEngine(t)

	revoked, err := engine.Revoke(context.Background(), OneIntent("no-such-session", ""))
	require.NoError(t, err)
	assert.Empty(t, revoked)
}

/*
TestEngine_RevokeAll verifies whole-user revocation from a single snapshot.
*/
func TestEngine_RevokeAll(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	for i := 0; i < 3; i++ {
		_, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d", "en", ""))
		require.NoError(t, err)
	}
	other, err := sessions.CreateSession(ctx, "user-2", deviceRequest("d", "en", ""))
	require.NoError(t, err)

	revoked, err := engine.Revoke(ctx, AllIntent("user-1", "account takeover"))
	require.NoError(t, err)
	assert.Len(t, revoked, 3)

	active, err := sessions.GetActiveSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Unrelated users are untouched.
	otherRevoked, err := engine.IsRevoked(ctx, other.ID)
	require.NoError(t, err)
	assert.False(t, otherRevoked)
}

/*
TestEngine_RevokeAllExcept verifies the exclusion set: the kept session stays
active, every other active session is revoked, and blank exclusion entries
are dropped silently.
*/
func TestEngine_RevokeAllExcept(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	kept, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d-keep", "en", ""))
	require.NoError(t, err)
	doomed, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d-doom", "en", ""))
	require.NoError(t, err)

	excluded := []string{"", "  ", kept.ID + " "}
	revoked, err := engine.Revoke(ctx, AllExceptIntent("user-1", excluded, "sign out other devices"))
	require.NoError(t, err)
	assert.Equal(t, []string{doomed.ID}, revoked)

	active, err := sessions.GetActiveSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, kept.ID, active[0].ID)
}

/*
TestEngine_MalformedIntents verifies shape validation before any backend
access.
*/
func TestEngine_MalformedIntents(t *testing.T) {
	engine, _, _ := storeEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		intent Intent
	}{
		{"one_without_session_id", Intent{Kind: RevokeOne}},
		{"all_without_user_id", Intent{Kind: RevokeAll}},
		{"all_except_without_user_id", Intent{Kind: RevokeAllExcept}},
		{"unknown_kind", Intent{Kind: "SOMETIMES", UserID: "user-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Revoke(ctx, tt.intent)
			assert.Error(t, err)
		})
	}
}

/*
TestEngine_CacheOnlyForcesDelete verifies that without a reflector the engine
falls back to delete-on-revoke: the targeted session disappears entirely while
the revocation record stays in the cache tier.
*/
func TestEngine_CacheOnlyForcesDelete(t *testing.T) {
	ctx := context.Background()
	engine, sessions := cacheOnlyEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)

	revoked, err := engine.Revoke(ctx, OneIntent(created.ID, ""))
	require.NoError(t, err)
	require.Len(t, revoked, 1)

	gone, err := sessions.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	isRevoked, err := engine.IsRevoked(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, isRevoked)

	records, err := engine.RevokedSessionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].SessionID)
}

/*
TestEngine_IsRevoked_ReadThrough verifies that a cold revocation cache is
repopulated from the store.
*/
func TestEngine_IsRevoked_ReadThrough(t *testing.T) {
	ctx := context.Background()
	sessions := newTestStoreManager(newMemorySessionRepo())
	records := newMemoryRevocationRepo()
	cache, backing := backedCache(FamilyRevocation)

	engine := newEngine(sessions, sessions, records, cache, false,
		staticProbe{actor: "system"}, testClock(), testLogger())

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)
	_, err = engine.Revoke(ctx, OneIntent(created.ID, ""))
	require.NoError(t, err)

	// Drop the cached record; the store still answers, and the cache heals.
	cache.evict(ctx, revocationKey(created.ID))

	isRevoked, err := engine.IsRevoked(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, isRevoked)
	assert.True(t, cache.get(ctx, revocationKey(created.ID), &RevocationRecord{}))
	assert.NotZero(t, backing.size())
}

/*
TestEngine_HasRevocationSince verifies the recency check on both tiers.
*/
func TestEngine_HasRevocationSince(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)
	_, err = engine.Revoke(ctx, OneIntent(created.ID, ""))
	require.NoError(t, err)

	revokedAt := testClock().Now()

	recent, err := engine.HasRevocationSince(ctx, "user-1", revokedAt.Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, recent)

	stale, err := engine.HasRevocationSince(ctx, "user-1", revokedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, stale)
}

/*
TestEngine_DeleteRevocationsOlderThan verifies retention cleanup: old records
are purged, recent ones survive, and the store-less engine answers zero.
*/
func TestEngine_DeleteRevocationsOlderThan(t *testing.T) {
	ctx := context.Background()
	engine, sessions, records := storeEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)
	_, err = engine.Revoke(ctx, OneIntent(created.ID, ""))
	require.NoError(t, err)

	// A cutoff before the record keeps it.
	kept, err := engine.DeleteRevocationsOlderThan(ctx, testClock().Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, kept)

	// A cutoff after the record purges it.
	purged, err := engine.DeleteRevocationsOlderThan(ctx, testClock().Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	remaining, err := records.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Without a store there is nothing to page over.
	storeless, _ := cacheOnlyEngine(t)
	none, err := storeless.DeleteRevocationsOlderThan(ctx, testClock().Now())
	require.NoError(t, err)
	assert.Zero(t, none)
}

/*
TestEngine_DeleteRevocationsOlderThan_Paging verifies that a large backlog is
purged in fixed-size batches: 2,500 aged records take three pages, the run
stops on the short final page, and records newer than the cutoff survive.
*/
func TestEngine_DeleteRevocationsOlderThan_Paging(t *testing.T) {
	ctx := context.Background()
	engine, _, records := storeEngine(t)

	cutoff := testClock().Now()
	aged := cutoff.Add(-24 * time.Hour)

	// 2,500 records past the cutoff, 3 newer ones that must survive.
	for i := 0; i < 2500; i++ {
		require.NoError(t, records.Create(ctx, &RevocationRecord{
			SessionID: fmt.Sprintf("aged-%04d", i),
			UserID:    "user-1",
			Kind:      RevokeAll,
			RevokedAt: aged,
		}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, records.Create(ctx, &RevocationRecord{
			SessionID: fmt.Sprintf("fresh-%d", i),
			UserID:    "user-1",
			Kind:      RevokeAll,
			RevokedAt: cutoff.Add(time.Hour),
		}))
	}

	purged, err := engine.DeleteRevocationsOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2500, purged)

	// Two full pages of 1,000 plus a short page of 500, which ends the run.
	assert.Equal(t, 3, records.findBeforeCalls)

	remaining, err := records.FindByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

/*
TestEngine_ClearRevocation verifies record expunging across tiers.
*/
func TestEngine_ClearRevocation(t *testing.T) {
	ctx := context.Background()
	engine, sessions, _ := storeEngine(t)

	created, err := sessions.CreateSession(ctx, "user-1", deviceRequest("d1", "en", ""))
	require.NoError(t, err)
	_, err = engine.Revoke(ctx, OneIntent(created.ID, ""))
	require.NoError(t, err)

	removed, err := engine.ClearRevocation(ctx, []string{created.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	isRevoked, err := engine.IsRevoked(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, isRevoked)
}
