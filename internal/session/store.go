// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"net/http"
	"time"
)

// # Session Capability

// Manager is the capability-typed session store exposed to the embedding host.
//
// Exactly one implementation per process is selected at startup from the
// resolved SESSION family policy: cache-only, store-only, store+cache, or
// disabled. Every method is reentrant and safe for concurrent use.
type Manager interface {

	/*
		CreateSession binds a user to the requesting device.

		Description: Assigns a fresh session ID, computes the device
		fingerprint from the request, persists the entry per the configured
		mode, and registers the ID in the user's session index.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - request: *http.Request

		Returns:
		  - *Session: Created entity
		  - error: Validation failure on blank userID, or persistence failures
	*/
	CreateSession(context context.Context, userID string, request *http.Request) (*Session, error)

	/*
		GetSession returns the session with the given ID.

		Description: Invalid input resolves to (nil, nil) silently — read
		operations lean "silent and safe".

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated entity, nil when absent
		  - error: Backend failures only
	*/
	GetSession(context context.Context, sessionID string) (*Session, error)

	/*
		GetSessionsByUser lists every session of a user, revoked included.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Possibly empty list
		  - error: Backend failures
	*/
	GetSessionsByUser(context context.Context, userID string) ([]*Session, error)

	/*
		GetActiveSessionsByUser lists the non-revoked sessions of a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Possibly empty list
		  - error: Backend failures
	*/
	GetActiveSessionsByUser(context context.Context, userID string) ([]*Session, error)

	/*
		TotalUserSessions counts the sessions currently tracked for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int: Count, always >= 0
		  - error: Backend failures
	*/
	TotalUserSessions(context context.Context, userID string) (int, error)

	/*
		DeleteSession removes a session entry. Missing sessions are a no-op.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Backend failures
	*/
	DeleteSession(context context.Context, sessionID string) error

	/*
		DeleteAllSessions removes a batch of session entries and updates each
		affected user's index. An empty set is a no-op.

		Parameters:
		  - context: context.Context
		  - sessionIDs: []string

		Returns:
		  - error: Backend failures
	*/
	DeleteAllSessions(context context.Context, sessionIDs []string) error

	/*
		GetSessionFingerprint returns the device fingerprint bound to a session.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - string: Fingerprint, empty when the session is absent
		  - error: Backend failures
	*/
	GetSessionFingerprint(context context.Context, sessionID string) (string, error)
}

// sessionReflector is the internal mutation hook the revocation engine uses
// to reflect a revocation in the session view under the mark-on-revoke policy.
//
// The cache-only manager does not implement it; the engine falls back to
// delete-on-revoke there.
type sessionReflector interface {
	markRevoked(context context.Context, sessionID string, revokedAt time.Time) error
}

// # Durable Store Contracts

// SessionRepository defines the durable data access contract for sessions.
type SessionRepository interface {

	/*
		Create persists a brand-new session entry.

		Parameters:
		  - context: context.Context
		  - session: *Session

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		FindByID returns the session with the given ID.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *Session: Hydrated entity
		  - error: apperr.NotFound or retrieval failures
	*/
	FindByID(context context.Context, sessionID string) (*Session, error)

	/*
		FindByUser returns every session of a user, revoked included.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Possibly empty list
		  - error: Retrieval failures
	*/
	FindByUser(context context.Context, userID string) ([]*Session, error)

	/*
		FindActiveByUser returns the non-revoked sessions of a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*Session: Possibly empty list
		  - error: Retrieval failures
	*/
	FindActiveByUser(context context.Context, userID string) ([]*Session, error)

	/*
		CountByUser counts the sessions tracked for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - int: Count
		  - error: Retrieval failures
	*/
	CountByUser(context context.Context, userID string) (int, error)

	/*
		MarkRevoked flips a session to revoked with the given timestamp.

		Parameters:
		  - context: context.Context
		  - sessionID: string
		  - revokedAt: time.Time

		Returns:
		  - error: Persistence failures
	*/
	MarkRevoked(context context.Context, sessionID string, revokedAt time.Time) error

	/*
		Delete removes a session row. Missing rows are a no-op.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, sessionID string) error

	/*
		DeleteAll removes a batch of session rows.

		Parameters:
		  - context: context.Context
		  - sessionIDs: []string

		Returns:
		  - error: Persistence failures
	*/
	DeleteAll(context context.Context, sessionIDs []string) error
}

// RevocationRepository defines the durable data access contract for
// revocation audit records.
type RevocationRepository interface {

	/*
		Create persists a revocation record.

		Parameters:
		  - context: context.Context
		  - record: *RevocationRecord

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, record *RevocationRecord) error

	/*
		FindBySession returns the revocation record keyed by session ID.

		Parameters:
		  - context: context.Context
		  - sessionID: string

		Returns:
		  - *RevocationRecord: Hydrated record
		  - error: apperr.NotFound or retrieval failures
	*/
	FindBySession(context context.Context, sessionID string) (*RevocationRecord, error)

	/*
		FindByUser returns every revocation record of a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []*RevocationRecord: Possibly empty list
		  - error: Retrieval failures
	*/
	FindByUser(context context.Context, userID string) ([]*RevocationRecord, error)

	/*
		Delete removes revocation records by session ID.

		Parameters:
		  - context: context.Context
		  - sessionIDs: []string

		Returns:
		  - int64: Number of records removed
		  - error: Persistence failures
	*/
	Delete(context context.Context, sessionIDs []string) (int64, error)

	/*
		FindRevokedBefore pages session IDs of records older than the cutoff.

		Parameters:
		  - context: context.Context
		  - cutoff: time.Time
		  - limit: int

		Returns:
		  - []string: Session IDs, at most limit entries
		  - error: Retrieval failures
	*/
	FindRevokedBefore(context context.Context, cutoff time.Time, limit int) ([]string, error)

	/*
		ExistsByUserRevokedAfter reports whether the user has any revocation
		newer than the given instant.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - after: time.Time

		Returns:
		  - bool: true when at least one newer record exists
		  - error: Retrieval failures
	*/
	ExistsByUserRevokedAfter(context context.Context, userID string, after time.Time) (bool, error)
}
