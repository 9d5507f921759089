// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
)

// # Session Repository

// PostgresSessionRepository implements the SessionRepository interface using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

/*
Create persists a new session record into the vault.session table.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO vault.session (
			id, userid, fingerprint, devicename, deviceos, devicetype, isrevoked, createdat, revokedat
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := repository.pool.Exec(context, query,
		session.ID,
		session.UserID,
		session.DeviceFingerprint,
		session.DeviceName,
		session.DeviceOS,
		session.DeviceType,
		session.IsRevoked,
		session.CreatedAt,
		session.RevokedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a session record by its unique ID.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: Hydrated session entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) FindByID(context context.Context, sessionID string) (*Session, error) {
	const query = `
		SELECT id, userid, fingerprint, devicename, deviceos, devicetype, isrevoked, createdat, revokedat
		FROM vault.session
		WHERE id = $1`

	session := &Session{}
	err := repository.pool.QueryRow(context, query, sessionID).Scan(
		&session.ID,
		&session.UserID,
		&session.DeviceFingerprint,
		&session.DeviceName,
		&session.DeviceOS,
		&session.DeviceType,
		&session.IsRevoked,
		&session.CreatedAt,
		&session.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_find_failed: %w", err)
	}

	return session, nil
}

/*
FindByUser retrieves every session belonging to a user, revoked included.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Session: Possibly empty list
  - error: Retrieval failures
*/
func (repository *PostgresSessionRepository) FindByUser(context context.Context, userID string) ([]*Session, error) {
	const query = `
		SELECT id, userid, fingerprint, devicename, deviceos, devicetype, isrevoked, createdat, revokedat
		FROM vault.session
		WHERE userid = $1
		ORDER BY createdat`

	return repository.querySessions(context, query, userID)
}

/*
FindActiveByUser retrieves the non-revoked sessions of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*Session: Possibly empty list
  - error: Retrieval failures
*/
func (repository *PostgresSessionRepository) FindActiveByUser(context context.Context, userID string) ([]*Session, error) {
	const query = `
		SELECT id, userid, fingerprint, devicename, deviceos, devicetype, isrevoked, createdat, revokedat
		FROM vault.session
		WHERE userid = $1 AND isrevoked = FALSE
		ORDER BY createdat`

	return repository.querySessions(context, query, userID)
}

// querySessions executes a session SELECT and hydrates the result set.
func (repository *PostgresSessionRepository) querySessions(context context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := repository.pool.Query(context, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_query_failed: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		session := &Session{}
		if err := rows.Scan(
			&session.ID,
			&session.UserID,
			&session.DeviceFingerprint,
			&session.DeviceName,
			&session.DeviceOS,
			&session.DeviceType,
			&session.IsRevoked,
			&session.CreatedAt,
			&session.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
CountByUser counts the sessions tracked for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int: Count
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) CountByUser(context context.Context, userID string) (int, error) {
	const query = "SELECT COUNT(*) FROM vault.session WHERE userid = $1"

	var count int
	if err := repository.pool.QueryRow(context, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_session_repo_count_failed: %w", err)
	}
	return count, nil
}

/*
MarkRevoked flips a session to revoked with the given timestamp.

Parameters:
  - context: context.Context
  - sessionID: string
  - revokedAt: time.Time

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) MarkRevoked(context context.Context, sessionID string, revokedAt time.Time) error {
	const query = "UPDATE vault.session SET isrevoked = TRUE, revokedat = $2 WHERE id = $1"

	_, err := repository.pool.Exec(context, query, sessionID, revokedAt)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_mark_revoked_failed: %w", err)
	}
	return nil
}

/*
Delete removes a session row. Missing rows are a silent no-op.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) Delete(context context.Context, sessionID string) error {
	const query = "DELETE FROM vault.session WHERE id = $1"

	_, err := repository.pool.Exec(context, query, sessionID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_delete_failed: %w", err)
	}
	return nil
}

/*
DeleteAll removes a batch of session rows in one statement.

Parameters:
  - context: context.Context
  - sessionIDs: []string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresSessionRepository) DeleteAll(context context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	const query = "DELETE FROM vault.session WHERE id = ANY($1)"

	_, err := repository.pool.Exec(context, query, sessionIDs)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_delete_all_failed: %w", err)
	}
	return nil
}

// # Revocation Repository

// PostgresRevocationRepository implements the RevocationRepository interface.
type PostgresRevocationRepository struct {
	pool *pgxpool.Pool
}

// NewRevocationRepository creates a new PostgreSQL implementation of RevocationRepository.
func NewRevocationRepository(pool *pgxpool.Pool) *PostgresRevocationRepository {
	return &PostgresRevocationRepository{pool: pool}
}

/*
Create persists a revocation record into the vault.revocation table.

Parameters:
  - context: context.Context
  - record: *RevocationRecord

Returns:
  - error: Storage failures
*/
func (repository *PostgresRevocationRepository) Create(context context.Context, record *RevocationRecord) error {
	const query = `
		INSERT INTO vault.revocation (
			sessionid, userid, kind, note, triggeredby, revokedat
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (sessionid) DO NOTHING`

	_, err := repository.pool.Exec(context, query,
		record.SessionID,
		record.UserID,
		record.Kind,
		record.Note,
		record.TriggeredBy,
		record.RevokedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_revocation_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindBySession retrieves the revocation record keyed by session ID.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *RevocationRecord: Hydrated record
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRevocationRepository) FindBySession(context context.Context, sessionID string) (*RevocationRecord, error) {
	const query = `
		SELECT sessionid, userid, kind, note, triggeredby, revokedat
		FROM vault.revocation
		WHERE sessionid = $1`

	record := &RevocationRecord{}
	err := repository.pool.QueryRow(context, query, sessionID).Scan(
		&record.SessionID,
		&record.UserID,
		&record.Kind,
		&record.Note,
		&record.TriggeredBy,
		&record.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Revocation record")
		}
		return nil, fmt.Errorf("postgres_revocation_repo_find_failed: %w", err)
	}

	return record, nil
}

/*
FindByUser retrieves every revocation record of a user, newest first.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*RevocationRecord: Possibly empty list
  - error: Retrieval failures
*/
func (repository *PostgresRevocationRepository) FindByUser(context context.Context, userID string) ([]*RevocationRecord, error) {
	const query = `
		SELECT sessionid, userid, kind, note, triggeredby, revokedat
		FROM vault.revocation
		WHERE userid = $1
		ORDER BY revokedat DESC`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_revocation_repo_query_failed: %w", err)
	}
	defer rows.Close()

	records := make([]*RevocationRecord, 0)
	for rows.Next() {
		record := &RevocationRecord{}
		if err := rows.Scan(
			&record.SessionID,
			&record.UserID,
			&record.Kind,
			&record.Note,
			&record.TriggeredBy,
			&record.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_revocation_repo_scan_failed: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_revocation_repo_rows_failed: %w", err)
	}

	return records, nil
}

/*
Delete removes revocation records by session ID in one statement.

Parameters:
  - context: context.Context
  - sessionIDs: []string

Returns:
  - int64: Number of records removed
  - error: Persistence failures
*/
func (repository *PostgresRevocationRepository) Delete(context context.Context, sessionIDs []string) (int64, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	const query = "DELETE FROM vault.revocation WHERE sessionid = ANY($1)"

	tag, err := repository.pool.Exec(context, query, sessionIDs)
	if err != nil {
		return 0, fmt.Errorf("postgres_revocation_repo_delete_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

/*
FindRevokedBefore pages session IDs of records older than the cutoff.

Description: Oldest-first ordering so repeated calls drain the backlog
deterministically.

Parameters:
  - context: context.Context
  - cutoff: time.Time
  - limit: int

Returns:
  - []string: Session IDs, at most limit entries
  - error: Retrieval failures
*/
func (repository *PostgresRevocationRepository) FindRevokedBefore(context context.Context, cutoff time.Time, limit int) ([]string, error) {
	const query = `
		SELECT sessionid
		FROM vault.revocation
		WHERE revokedat < $1
		ORDER BY revokedat
		LIMIT $2`

	rows, err := repository.pool.Query(context, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres_revocation_repo_page_failed: %w", err)
	}
	defer rows.Close()

	sessionIDs := make([]string, 0, limit)
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("postgres_revocation_repo_page_scan_failed: %w", err)
		}
		sessionIDs = append(sessionIDs, sessionID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_revocation_repo_page_rows_failed: %w", err)
	}

	return sessionIDs, nil
}

/*
ExistsByUserRevokedAfter reports whether the user has any revocation newer
than the given instant.

Parameters:
  - context: context.Context
  - userID: string
  - after: time.Time

Returns:
  - bool: true when at least one newer record exists
  - error: Execution errors
*/
func (repository *PostgresRevocationRepository) ExistsByUserRevokedAfter(context context.Context, userID string, after time.Time) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM vault.revocation WHERE userid = $1 AND revokedat > $2)"

	var exists bool
	if err := repository.pool.QueryRow(context, query, userID, after).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres_revocation_repo_exists_failed: %w", err)
	}
	return exists, nil
}
