// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

// # Cache Key Taxonomy
//
// Keys are opaque strings; collisions between data families are prevented by
// prefixing. The canonical shapes are fixed — cooperating replicas rely on them.

const (
	keyPrefixSession          = "session-pool-"
	keyPrefixUserSessions     = "user-sessions-"
	keyPrefixRevocation       = "revocation-"
	keyPrefixRevocationByUser = "revocation-by-user-"
	keyPrefixFingerprint      = "fingerprint-"
)

// sessionKey builds the cache key for a single session entry.
func sessionKey(sessionID string) string { return keyPrefixSession + sessionID }

// userSessionsKey builds the cache key for a user's session index.
func userSessionsKey(userID string) string { return keyPrefixUserSessions + userID }

// revocationKey builds the cache key for a single revocation record.
func revocationKey(sessionID string) string { return keyPrefixRevocation + sessionID }

// revocationByUserKey builds the cache key for a user's revoked session index.
func revocationByUserKey(userID string) string { return keyPrefixRevocationByUser + userID }

// fingerprintKey builds the cache key for a session's device fingerprint.
func fingerprintKey(sessionID string) string { return keyPrefixFingerprint + sessionID }
