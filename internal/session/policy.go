// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"time"

	"github.com/taibuivan/vaultiq/internal/platform/config"
)

// # Data Families

// Family identifies a logical data category managed independently by the engine.
type Family string

const (
	// FamilySession holds the live session entries.
	FamilySession Family = "SESSION"
	// FamilyRevocation holds the revocation audit records and blocklist.
	FamilyRevocation Family = "REVOCATION"
	// FamilyUserIndex holds the per-user session ID index.
	FamilyUserIndex Family = "USER_SESSION_INDEX"
	// FamilyActivityLog holds optional session activity entries.
	FamilyActivityLog Family = "ACTIVITY_LOG"
)

// Families returns every known family in declaration order.
//
// The resolved policy map is total over this set.
func Families() []Family {
	return []Family{FamilySession, FamilyRevocation, FamilyUserIndex, FamilyActivityLog}
}

// CanonicalCacheName returns the family's default cache alias, used when no
// explicit cacheName override is configured.
func (family Family) CanonicalCacheName() string {
	switch family {
	case FamilySession:
		return "session-pool"
	case FamilyRevocation:
		return "revoked-session-pool"
	case FamilyUserIndex:
		return "user-session-mapping"
	case FamilyActivityLog:
		return "activity-log-pool"
	default:
		return string(family)
	}
}

// # Policy Resolution

// defaultSyncInterval applies when a family declares no explicit interval.
const defaultSyncInterval = 5 * time.Minute

// FamilyPolicy is the resolved persistence policy for one data family.
//
// Resolution happens once at startup; the record is frozen for the process
// lifetime.
type FamilyPolicy struct {
	Family       Family
	UseStore     bool
	UseCache     bool
	CacheName    string
	SyncInterval time.Duration
}

// FamilyOverride carries the family-specific raw settings before resolution.
// Nil pointers mean "not set" — resolution falls through.
type FamilyOverride struct {
	UseStore     *bool
	UseCache     *bool
	CacheName    string
	SyncInterval time.Duration
}

// RawPolicy is the declarative input to [ResolvePolicy].
type RawPolicy struct {
	// ProductionMode makes BOTH tiers default to true when set; both default
	// to false otherwise. The safe posture is false: no persistence unless
	// explicitly opted in.
	ProductionMode bool

	// Global tier defaults. Nil means "not set".
	UseStore *bool
	UseCache *bool

	// Per-family overrides, first in the fallback chain.
	Overrides map[Family]FamilyOverride
}

/*
ResolvePolicy computes the frozen per-family persistence policy.

Description: Pure function, called once at startup. For each tier flag the
fallback chain is: family-specific explicit value, then global explicit
value, then the production-mode default.

Parameters:
  - raw: RawPolicy

Returns:
  - map[Family]FamilyPolicy: A total map with an entry per known family
*/
func ResolvePolicy(raw RawPolicy) map[Family]FamilyPolicy {

	resolved := make(map[Family]FamilyPolicy, len(Families()))

	for _, family := range Families() {
		override := raw.Overrides[family]

		policy := FamilyPolicy{
			Family:       family,
			UseStore:     resolveTier(override.UseStore, raw.UseStore, raw.ProductionMode),
			UseCache:     resolveTier(override.UseCache, raw.UseCache, raw.ProductionMode),
			CacheName:    family.CanonicalCacheName(),
			SyncInterval: defaultSyncInterval,
		}

		// Family-specific cache name wins over the canonical alias.
		if override.CacheName != "" {
			policy.CacheName = override.CacheName
		}

		if override.SyncInterval > 0 {
			policy.SyncInterval = override.SyncInterval
		}

		resolved[family] = policy
	}

	return resolved
}

// resolveTier applies the three-step fallback chain for one tier flag.
func resolveTier(familyValue *bool, globalValue *bool, productionDefault bool) bool {
	if familyValue != nil {
		return *familyValue
	}
	if globalValue != nil {
		return *globalValue
	}
	return productionDefault
}

// RawPolicyFromConfig adapts the environment-backed [config.Config] into the
// resolver's declarative input.
func RawPolicyFromConfig(cfg *config.Config) RawPolicy {
	return RawPolicy{
		ProductionMode: cfg.ProductionMode,
		UseStore:       cfg.PersistUseStore,
		UseCache:       cfg.PersistUseCache,
		Overrides: map[Family]FamilyOverride{
			FamilySession: {
				UseStore:  cfg.SessionUseStore,
				UseCache:  cfg.SessionUseCache,
				CacheName: cfg.SessionCacheName,
			},
			FamilyRevocation: {
				UseStore:  cfg.RevocationUseStore,
				UseCache:  cfg.RevocationUseCache,
				CacheName: cfg.RevocationCacheName,
			},
			FamilyUserIndex: {
				UseStore:  cfg.IndexUseStore,
				UseCache:  cfg.IndexUseCache,
				CacheName: cfg.IndexCacheName,
			},
			FamilyActivityLog: {
				UseStore:  cfg.ActivityUseStore,
				UseCache:  cfg.ActivityUseCache,
				CacheName: cfg.ActivityCacheName,
			},
		},
	}
}
