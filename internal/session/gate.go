// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
)

// # Mode Gate

// Mode is the operational shape a data family runs in, derived from its
// resolved (useStore, useCache) pair.
type Mode string

const (
	ModeOff        Mode = "OFF"
	ModeCacheOnly  Mode = "CACHE_ONLY"
	ModeStoreOnly  Mode = "STORE_ONLY"
	ModeStoreCache Mode = "STORE_CACHE"
)

// modeFor maps a resolved family policy onto its operational mode.
func modeFor(policy FamilyPolicy) Mode {
	switch {
	case policy.UseStore && policy.UseCache:
		return ModeStoreCache
	case policy.UseStore:
		return ModeStoreOnly
	case policy.UseCache:
		return ModeCacheOnly
	default:
		return ModeOff
	}
}

// Deps carries everything the gate needs to assemble a [Bundle]. Zero-value
// capability fields fall back to the package defaults.
type Deps struct {
	Policy map[Family]FamilyPolicy

	Pool     *pgxpool.Pool // nil when no durable store is available
	Provider Provider      // nil when no cache infrastructure is available

	Logger *slog.Logger

	Fingerprints     FingerprintGenerator
	FingerprintCheck FingerprintValidator
	Probe            IdentityProbe
	Clock            Clock

	// DeleteOnRevoke removes targeted sessions outright instead of marking
	// them. Forced on when the session manager cannot mark entries.
	DeleteOnRevoke bool
}

// Bundle is the assembled capability set handed to the embedding host.
type Bundle struct {
	Sessions    Manager
	Revocations *Engine
	Validator   *Validator
	Policy      map[Family]FamilyPolicy
}

/*
NewBundle assembles the session capabilities for the resolved policy.

Description: Validates at startup that every enabled tier has its backing
infrastructure — a family asking for the store without a connection pool, or
for the cache without a provider, is a configuration contradiction and fails
fast. A family whose both tiers are off gets a disabled capability answering
NOT_CONFIGURED on every operation.

Parameters:
  - deps: Deps

Returns:
  - *Bundle: Assembled capabilities
  - error: Startup contradiction between policy and available infrastructure
*/
func NewBundle(deps Deps) (*Bundle, error) {

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Capability defaults.
	if deps.Fingerprints == nil {
		deps.Fingerprints = DefaultFingerprintGenerator{}
	}
	if deps.FingerprintCheck == nil {
		deps.FingerprintCheck = RecomputeFingerprintValidator{Generator: deps.Fingerprints}
	}
	if deps.Probe == nil {
		deps.Probe = ContextIdentityProbe{}
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Policy == nil {
		deps.Policy = ResolvePolicy(RawPolicy{})
	}

	// 1. Startup contradiction check across every family.
	for _, family := range Families() {
		policy := deps.Policy[family]

		if policy.UseStore && deps.Pool == nil {
			return nil, fmt.Errorf("session_gate_store_without_pool: family %s enables the store but no database pool is configured", family)
		}
		if policy.UseCache && deps.Provider == nil {
			return nil, fmt.Errorf("session_gate_cache_without_provider: family %s enables the cache but no cache provider is configured", family)
		}

		logger.Info("session_family_mode_resolved",
			slog.String("family", string(family)),
			slog.String("mode", string(modeFor(policy))),
			slog.String("cache", policy.CacheName),
		)
	}

	// 2. Family caches. Disabled tiers get a permanently absent handle so
	// downstream code runs uniformly.
	entriesCache := familyCacheFor(deps.Policy[FamilySession], deps.Provider, logger)
	indexCache := familyCacheFor(deps.Policy[FamilyUserIndex], deps.Provider, logger)
	revocationCache := familyCacheFor(deps.Policy[FamilyRevocation], deps.Provider, logger)

	// 3. Session manager variant for the SESSION family mode.
	var (
		sessions  Manager
		reflector sessionReflector
	)
	switch modeFor(deps.Policy[FamilySession]) {

	case ModeStoreCache:
		store := newStoreManager(NewSessionRepository(deps.Pool), deps.Fingerprints, deps.Clock, logger)
		hybrid := newHybridManager(store, entriesCache, indexCache, deps.Clock, logger)
		sessions, reflector = hybrid, hybrid

	case ModeStoreOnly:
		store := newStoreManager(NewSessionRepository(deps.Pool), deps.Fingerprints, deps.Clock, logger)
		sessions, reflector = store, store

	case ModeCacheOnly:
		sessions = newCacheManager(entriesCache, indexCache, deps.Fingerprints, deps.Clock, logger)

	default:
		sessions = disabledManager{family: FamilySession}
	}

	// 4. Revocation engine for the REVOCATION family mode. An off family gets
	// a disabled engine: revoking without any record tier would destroy
	// sessions with no audit trail, so the boundary diagnoses instead.
	var engine *Engine
	if modeFor(deps.Policy[FamilyRevocation]) == ModeOff {
		engine = newDisabledEngine(logger)
	} else {
		var records RevocationRepository
		if deps.Policy[FamilyRevocation].UseStore {
			records = NewRevocationRepository(deps.Pool)
		}
		engine = newEngine(sessions, reflector, records, revocationCache,
			deps.DeleteOnRevoke, deps.Probe, deps.Clock, logger)
	}

	validator := newValidator(sessions, engine, deps.FingerprintCheck, logger)

	return &Bundle{
		Sessions:    sessions,
		Revocations: engine,
		Validator:   validator,
		Policy:      deps.Policy,
	}, nil
}

// familyCacheFor resolves the family's cache handle, or a permanently absent
// one when the family's cache tier is off.
func familyCacheFor(policy FamilyPolicy, provider Provider, logger *slog.Logger) *familyCache {
	if !policy.UseCache {
		return &familyCache{family: policy.Family, name: policy.CacheName, logger: logger}
	}
	return newFamilyCache(policy.Family, policy.CacheName, provider, logger)
}

// # Disabled Capability

// disabledManager answers NOT_CONFIGURED on every operation. It exists so a
// host can wire the full capability surface even when the SESSION family is
// switched off, and get a diagnostic instead of a nil dereference.
type disabledManager struct {
	family Family
}

func (manager disabledManager) notConfigured() error {
	return apperr.NotConfigured(string(manager.family))
}

func (manager disabledManager) CreateSession(context.Context, string, *http.Request) (*Session, error) {
	return nil, manager.notConfigured()
}

func (manager disabledManager) GetSession(context.Context, string) (*Session, error) {
	return nil, manager.notConfigured()
}

func (manager disabledManager) GetSessionsByUser(context.Context, string) ([]*Session, error) {
	return nil, manager.notConfigured()
}

func (manager disabledManager) GetActiveSessionsByUser(context.Context, string) ([]*Session, error) {
	return nil, manager.notConfigured()
}

func (manager disabledManager) TotalUserSessions(context.Context, string) (int, error) {
	return 0, manager.notConfigured()
}

func (manager disabledManager) DeleteSession(context.Context, string) error {
	return manager.notConfigured()
}

func (manager disabledManager) DeleteAllSessions(context.Context, []string) error {
	return manager.notConfigured()
}

func (manager disabledManager) GetSessionFingerprint(context.Context, string) (string, error) {
	return "", manager.notConfigured()
}
