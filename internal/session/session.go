// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session implements the session lifecycle and revocation engine.

It owns the authoritative state of which device may present which session
identifier, and the authoritative audit trail of revocations. The engine
transparently fronts two backends — a fast key-value cache (Redis) and a
durable store (PostgreSQL) — with four selectable operating modes per data
family: off, cache-only, store-only, and store+cache.

Architecture:

  - Policy: Resolves the declarative per-family persistence policy at startup.
  - Manager: The capability-typed session store (create/read/delete/list/count).
  - Engine: Translates revocation intents into persisted revocation records.
  - Validator: Checks an inbound request against active+revoked state plus a
    device-fingerprint comparison.

The engine is a library embedded in a host; transport, ORM mechanics, and
identity resolution are external collaborators expressed as small interfaces.
*/
package session

import (
	"strings"
	"time"
)

// # Domain Entities

// Session identifies a live authenticated device binding.
//
// Equality and hashing use ID alone; session IDs are never reused.
type Session struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	DeviceFingerprint string     `json:"-"` // Explicitly omitted from JSON for security.
	DeviceName        string     `json:"device_name,omitempty"`
	DeviceOS          string     `json:"device_os,omitempty"`
	DeviceType        string     `json:"device_type,omitempty"`
	IsRevoked         bool       `json:"is_revoked"`
	CreatedAt         time.Time  `json:"created_at"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// RevocationRecord is the audit trail of a single revocation. Keyed by SessionID.
type RevocationRecord struct {
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id"`
	Kind        RevocationKind `json:"kind"`
	Note        string         `json:"note,omitempty"`
	TriggeredBy string         `json:"triggered_by"`
	RevokedAt   time.Time      `json:"revoked_at"`
}

// UserSessionIndex is the per-user set of session IDs with a freshness stamp.
//
// # Consistency
//
// The index is a strict superset of the session IDs retrievable by ID for
// that user: stale entries are tolerated and self-heal on the next
// read-through; a live ID must never be omitted.
type UserSessionIndex struct {
	UserID      string   `json:"user_id"`
	SessionIDs  []string `json:"session_ids"`
	LastUpdated int64    `json:"last_updated"` // epoch millis, bumped on every mutation
}

// touch stamps the index with the mutation time.
func (index *UserSessionIndex) touch(now time.Time) {
	index.LastUpdated = now.UnixMilli()
}

// add appends a session ID if not already present and bumps the stamp.
func (index *UserSessionIndex) add(sessionID string, now time.Time) {
	for _, existing := range index.SessionIDs {
		if existing == sessionID {
			index.touch(now)
			return
		}
	}
	index.SessionIDs = append(index.SessionIDs, sessionID)
	index.touch(now)
}

// remove drops a session ID if present and bumps the stamp.
func (index *UserSessionIndex) remove(sessionID string, now time.Time) {
	kept := index.SessionIDs[:0]
	for _, existing := range index.SessionIDs {
		if existing != sessionID {
			kept = append(kept, existing)
		}
	}
	index.SessionIDs = kept
	index.touch(now)
}

// # Revocation Intents

// RevocationKind enumerates the supported revocation strategies.
type RevocationKind string

const (
	// RevokeOne targets a single session by ID.
	RevokeOne RevocationKind = "ONE"
	// RevokeAll targets every active session of a user.
	RevokeAll RevocationKind = "ALL"
	// RevokeAllExcept targets every active session of a user minus an exclusion set.
	RevokeAllExcept RevocationKind = "ALL_EXCEPT"
)

// Intent is an immutable revocation request. It is never persisted; it lives
// only for the duration of one Engine.Revoke call.
type Intent struct {
	Kind      RevocationKind
	SessionID string   // ONE only
	UserID    string   // ALL and ALL_EXCEPT
	Excluded  []string // ALL_EXCEPT only
	Note      string
}

// OneIntent builds an intent targeting a single session.
func OneIntent(sessionID, note string) Intent {
	return Intent{Kind: RevokeOne, SessionID: sessionID, Note: note}
}

// AllIntent builds an intent targeting every active session of a user.
func AllIntent(userID, note string) Intent {
	return Intent{Kind: RevokeAll, UserID: userID, Note: note}
}

// AllExceptIntent builds an intent targeting every active session of a user
// except the given IDs.
func AllExceptIntent(userID string, excluded []string, note string) Intent {
	return Intent{Kind: RevokeAllExcept, UserID: userID, Excluded: excluded, Note: note}
}

// sanitizedExcluded returns the exclusion set with null/blank elements
// dropped silently and the remainder trimmed.
func (intent Intent) sanitizedExcluded() []string {
	if len(intent.Excluded) == 0 {
		return nil
	}

	cleaned := make([]string, 0, len(intent.Excluded))
	for _, raw := range intent.Excluded {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}
