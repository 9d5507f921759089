// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/vaultiq/internal/platform/ctxutil"
)

// validatorFixture wires a validator over the store-only manager and a
// mark-on-revoke engine.
type validatorFixture struct {
	validator *Validator
	sessions  *storeManager
	engine    *Engine
}

func newValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	sessions := newTestStoreManager(newMemorySessionRepo())
	cache := absentCache(FamilyRevocation)
	engine := newEngine(sessions, sessions, newMemoryRevocationRepo(), cache, false,
		staticProbe{actor: "system"}, testClock(), testLogger())

	generator := DefaultFingerprintGenerator{}
	validator := newValidator(sessions, engine, RecomputeFingerprintValidator{Generator: generator}, testLogger())

	return &validatorFixture{validator: validator, sessions: sessions, engine: engine}
}

// boundRequest builds a request carrying the given session ID in its context
// plus the device signals.
func boundRequest(sessionID, deviceID, language, platform string) *http.Request {
	request := deviceRequest(deviceID, language, platform)
	return request.WithContext(ctxutil.WithSessionID(request.Context(), sessionID))
}

/*
TestValidator_HappyPath verifies the full four-step pass: bound session,
existing, unrevoked, same device.
*/
func TestValidator_HappyPath(t *testing.T) {
	fixture := newValidatorFixture(t)

	created, err := fixture.sessions.CreateSession(context.Background(),
		"user-1", deviceRequest("device-a", "en-US", `"Linux"`))
	require.NoError(t, err)

	request := boundRequest(created.ID, "device-a", "en-US", `"Linux"`)
	assert.True(t, fixture.validator.ValidateForRequest(request))
}

/*
TestValidator_ShortCircuits walks each failing step in order.
*/
func TestValidator_ShortCircuits(t *testing.T) {
	fixture := newValidatorFixture(t)
	ctx := context.Background()

	created, err := fixture.sessions.CreateSession(ctx,
		"user-1", deviceRequest("device-a", "en-US", `"Linux"`))
	require.NoError(t, err)

	t.Run("no_session_id_bound", func(t *testing.T) {
		request := deviceRequest("device-a", "en-US", `"Linux"`)
		assert.False(t, fixture.validator.ValidateForRequest(request))
	})

	t.Run("unknown_session", func(t *testing.T) {
		request := boundRequest("no-such-session", "device-a", "en-US", `"Linux"`)
		assert.False(t, fixture.validator.ValidateForRequest(request))
	})

	t.Run("fingerprint_mismatch", func(t *testing.T) {
		// Same session, different device.
		request := boundRequest(created.ID, "device-b", "en-US", `"Linux"`)
		assert.False(t, fixture.validator.ValidateForRequest(request))
	})

	t.Run("revoked_session", func(t *testing.T) {
		_, err := fixture.engine.Revoke(ctx, OneIntent(created.ID, ""))
		require.NoError(t, err)

		request := boundRequest(created.ID, "device-a", "en-US", `"Linux"`)
		assert.False(t, fixture.validator.ValidateForRequest(request))
	})
}

/*
TestValidator_DisabledRevocationLedger verifies that a switched-off REVOCATION
family does not fail every request closed: the ledger offers no signal, so a
live device-bound session still validates on the entity flag alone.
*/
func TestValidator_DisabledRevocationLedger(t *testing.T) {
	sessions := newTestStoreManager(newMemorySessionRepo())
	engine := newDisabledEngine(testLogger())

	generator := DefaultFingerprintGenerator{}
	validator := newValidator(sessions, engine, RecomputeFingerprintValidator{Generator: generator}, testLogger())

	created, err := sessions.CreateSession(context.Background(),
		"user-1", deviceRequest("device-a", "en-US", `"Linux"`))
	require.NoError(t, err)

	request := boundRequest(created.ID, "device-a", "en-US", `"Linux"`)
	assert.True(t, validator.ValidateForRequest(request))

	// The entity flag still rejects on its own.
	require.NoError(t, sessions.markRevoked(context.Background(), created.ID, testClock().Now()))
	assert.False(t, validator.ValidateForRequest(request))
}

/*
TestValidator_CacheOnlyMode verifies the validator over the cache-only
manager, where the stored fingerprint lives only under its parallel key.
*/
func TestValidator_CacheOnlyMode(t *testing.T) {
	sessions := newTestCacheManager()
	cache, _ := backedCache(FamilyRevocation)
	engine := newEngine(sessions, nil, nil, cache, false,
		staticProbe{actor: "system"}, testClock(), testLogger())

	generator := DefaultFingerprintGenerator{}
	validator := newValidator(sessions, engine, RecomputeFingerprintValidator{Generator: generator}, testLogger())

	created, err := sessions.CreateSession(context.Background(),
		"user-1", deviceRequest("device-a", "en", `"Android"`))
	require.NoError(t, err)

	assert.True(t, validator.ValidateForRequest(boundRequest(created.ID, "device-a", "en", `"Android"`)))
	assert.False(t, validator.ValidateForRequest(boundRequest(created.ID, "device-z", "en", `"Android"`)))
}
