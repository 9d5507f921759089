// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
	"github.com/taibuivan/vaultiq/pkg/slice"
)

// # Revocation Engine

const (
	// cleanupPageSize bounds one cleanup query against the store.
	cleanupPageSize = 1000

	// cleanupMaxPages caps a single cleanup run so it never monopolizes the
	// store; the next scheduled run picks up the remainder.
	cleanupMaxPages = 100
)

// Engine turns revocation intents into persisted revocation records and the
// matching session-side effect.
//
// # Target Resolution
//
// Targets are resolved from ONE snapshot of the user's active sessions taken
// at the start of Revoke. Sessions created after the snapshot are not
// affected; that is accepted, not racy.
//
// # Revocation Policy
//
// Under delete-on-revoke the targeted sessions are removed outright. Under
// mark-on-revoke they are kept and flagged via the session manager, so audit
// history survives. Mark-on-revoke requires a manager that can reflect the
// flag; when the active manager cannot (the cache-only variant), the engine
// forces delete-on-revoke.
type Engine struct {
	sessions       Manager
	reflector      sessionReflector     // nil forces delete-on-revoke
	records        RevocationRepository // nil when the REVOCATION family skips the store
	cache          *familyCache         // REVOCATION family, absent-tolerant
	deleteOnRevoke bool
	probe          IdentityProbe
	clock          Clock
	logger         *slog.Logger
	userLocks      *keyedMutex

	// disabled means the REVOCATION family resolved to off: every operation
	// answers NOT_CONFIGURED instead of touching sessions or records.
	disabled bool
}

// notConfigured is the diagnostic a disabled engine surfaces on every call.
func (engine *Engine) notConfigured() error {
	return apperr.NotConfigured(string(FamilyRevocation))
}

// newEngine wires the revocation engine for the resolved REVOCATION policy.
//
// reflector may be nil; deleteOnRevoke is then forced regardless of the
// configured policy.
func newEngine(
	sessions Manager,
	reflector sessionReflector,
	records RevocationRepository,
	cache *familyCache,
	deleteOnRevoke bool,
	probe IdentityProbe,
	clock Clock,
	logger *slog.Logger,
) *Engine {
	if reflector == nil && !deleteOnRevoke {
		logger.Info("revocation_policy_forced_delete",
			slog.String("reason", "session manager cannot mark entries revoked"),
		)
		deleteOnRevoke = true
	}

	return &Engine{
		sessions:       sessions,
		reflector:      reflector,
		records:        records,
		cache:          cache,
		deleteOnRevoke: deleteOnRevoke,
		probe:          probe,
		clock:          clock,
		logger:         logger,
		userLocks:      newKeyedMutex(),
	}
}

// newDisabledEngine builds an engine for a REVOCATION family whose both tiers
// are off. Revoking through it must never destroy sessions without leaving a
// record, so every operation surfaces NOT_CONFIGURED at the boundary instead.
func newDisabledEngine(logger *slog.Logger) *Engine {
	return &Engine{
		disabled: true,
		logger:   logger,
	}
}

/*
Revoke executes a revocation intent.

Description: Resolves the target set from a single snapshot of the user's
active sessions, writes one revocation record per target, and applies the
configured session-side policy. Already-revoked targets are skipped
idempotently.

Parameters:
  - context: context.Context
  - intent: Intent

Returns:
  - []string: Session IDs actually revoked by this call
  - error: Validation failure on a malformed intent, or persistence failures
*/
func (engine *Engine) Revoke(context context.Context, intent Intent) ([]string, error) {
	if engine.disabled {
		return nil, engine.notConfigured()
	}

	// 1. Validate the intent shape before touching any backend.
	switch intent.Kind {
	case RevokeOne:
		if strings.TrimSpace(intent.SessionID) == "" {
			return nil, apperr.ValidationError("sessionId is required for single-session revocation")
		}
	case RevokeAll, RevokeAllExcept:
		if strings.TrimSpace(intent.UserID) == "" {
			return nil, apperr.ValidationError("userId is required")
		}
	default:
		return nil, apperr.ValidationError("unknown revocation kind")
	}

	now := engine.clock.Now()
	triggeredBy := engine.probe.CurrentActor(context)

	// 2. Resolve targets from one snapshot of the active set.
	userID, targets, err := engine.resolveTargets(context, intent)
	if err != nil {
		return nil, err
	}

	if len(targets) == 0 {
		engine.logger.Debug("revocation_no_targets",
			slog.String("user_id", userID),
			slog.String("kind", string(intent.Kind)),
		)
		return []string{}, nil
	}

	// 3. One record per target, skipping sessions already revoked.
	revoked := make([]string, 0, len(targets))
	for _, sessionID := range targets {

		already, err := engine.IsRevoked(context, sessionID)
		if err != nil {
			return revoked, err
		}
		if already {
			engine.logger.Debug("revocation_already_revoked",
				slog.String("session_id", sessionID),
			)
			continue
		}

		record := &RevocationRecord{
			SessionID:   sessionID,
			UserID:      userID,
			Kind:        intent.Kind,
			Note:        intent.Note,
			TriggeredBy: triggeredBy,
			RevokedAt:   now,
		}

		if err := engine.persistRecord(context, record); err != nil {
			return revoked, err
		}

		revoked = append(revoked, sessionID)
	}

	// 4. Session-side effect, applied once over the whole batch.
	if len(revoked) > 0 {
		if err := engine.applyPolicy(context, revoked, now); err != nil {
			return revoked, err
		}
	}

	engine.logger.Info("sessions_revoked",
		slog.String("user_id", userID),
		slog.String("kind", string(intent.Kind)),
		slog.String("triggered_by", triggeredBy),
		slog.Int("count", len(revoked)),
	)
	return revoked, nil
}

// resolveTargets computes the owning user and the target session IDs for an
// intent from a single active-set snapshot.
//
// A ONE intent against a missing session resolves to zero targets: the
// session is already gone, so revoking it again is a logged no-op rather
// than an error.
func (engine *Engine) resolveTargets(context context.Context, intent Intent) (string, []string, error) {
	switch intent.Kind {

	case RevokeOne:
		sessionID := strings.TrimSpace(intent.SessionID)
		session, err := engine.sessions.GetSession(context, sessionID)
		if err != nil {
			return "", nil, err
		}
		if session == nil {
			engine.logger.Info("revocation_skipped_missing_session",
				slog.String("session_id", sessionID),
			)
			return intent.UserID, nil, nil
		}
		return session.UserID, []string{sessionID}, nil

	case RevokeAll:
		active, err := engine.sessions.GetActiveSessionsByUser(context, intent.UserID)
		if err != nil {
			return "", nil, err
		}
		return intent.UserID, slice.Map(active, func(session *Session) string { return session.ID }), nil

	default: // RevokeAllExcept, shape-checked by the caller
		active, err := engine.sessions.GetActiveSessionsByUser(context, intent.UserID)
		if err != nil {
			return "", nil, err
		}
		ids := slice.Map(active, func(session *Session) string { return session.ID })
		return intent.UserID, slice.Difference(ids, intent.sanitizedExcluded()), nil
	}
}

// persistRecord writes a revocation record to the configured tiers,
// store first when both are on.
func (engine *Engine) persistRecord(context context.Context, record *RevocationRecord) error {
	if engine.records != nil {
		if err := engine.records.Create(context, record); err != nil {
			return err
		}
	}

	engine.cache.put(context, revocationKey(record.SessionID), record)
	engine.addToUserIndex(context, record.UserID, record.SessionID)

	return nil
}

// applyPolicy performs the session-side effect for a freshly revoked batch.
func (engine *Engine) applyPolicy(context context.Context, sessionIDs []string, revokedAt time.Time) error {
	if engine.deleteOnRevoke {
		return engine.sessions.DeleteAllSessions(context, sessionIDs)
	}

	for _, sessionID := range sessionIDs {
		if err := engine.reflector.markRevoked(context, sessionID, revokedAt); err != nil {
			return err
		}
	}
	return nil
}

/*
IsRevoked reports whether a session has a revocation record.

Description: Read-through — the cache answers first; on a miss the store is
consulted and the cache repopulated. A blank ID resolves to false silently.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - bool: true when a record exists
  - error: Backend failures
*/
func (engine *Engine) IsRevoked(context context.Context, sessionID string) (bool, error) {
	record, err := engine.RevocationFor(context, sessionID)
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

/*
RevocationFor returns the revocation record of a session, nil when none exists.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *RevocationRecord: Hydrated record, nil when the session is not revoked
  - error: Backend failures
*/
func (engine *Engine) RevocationFor(context context.Context, sessionID string) (*RevocationRecord, error) {
	if engine.disabled {
		return nil, engine.notConfigured()
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}

	cached := &RevocationRecord{}
	if engine.cache.get(context, revocationKey(sessionID), cached) {
		return cached, nil
	}

	if engine.records == nil {
		return nil, nil
	}

	record, err := engine.records.FindBySession(context, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	engine.cache.put(context, revocationKey(sessionID), record)
	return record, nil
}

/*
RevokedSessionsByUser lists the revocation records of a user.

Description: Store-canonical when the store is on; otherwise the cached
per-user revocation index is walked.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []*RevocationRecord: Possibly empty list
  - error: Backend failures
*/
func (engine *Engine) RevokedSessionsByUser(context context.Context, userID string) ([]*RevocationRecord, error) {
	if engine.disabled {
		return nil, engine.notConfigured()
	}
	if strings.TrimSpace(userID) == "" {
		return []*RevocationRecord{}, nil
	}

	if engine.records != nil {
		return engine.records.FindByUser(context, userID)
	}

	index := &revocationIndex{}
	if !engine.cache.get(context, revocationByUserKey(userID), index) {
		return []*RevocationRecord{}, nil
	}

	records := make([]*RevocationRecord, 0, len(index.SessionIDs))
	for _, sessionID := range index.SessionIDs {
		record := &RevocationRecord{}
		if engine.cache.get(context, revocationKey(sessionID), record) {
			records = append(records, record)
		}
	}
	return records, nil
}

/*
HasRevocationSince reports whether the user has any revocation newer than the
given instant.

Parameters:
  - context: context.Context
  - userID: string
  - after: time.Time

Returns:
  - bool: true when at least one newer record exists
  - error: Backend failures
*/
func (engine *Engine) HasRevocationSince(context context.Context, userID string, after time.Time) (bool, error) {
	if engine.disabled {
		return false, engine.notConfigured()
	}
	if engine.records != nil {
		return engine.records.ExistsByUserRevokedAfter(context, userID, after)
	}

	records, err := engine.RevokedSessionsByUser(context, userID)
	if err != nil {
		return false, err
	}
	for _, record := range records {
		if record.RevokedAt.After(after) {
			return true, nil
		}
	}
	return false, nil
}

/*
ClearRevocation drops the revocation records of the given sessions.

Description: Used when a revoked session's history is intentionally expunged,
for example after the session row itself is purged. Missing records are a
no-op.

Parameters:
  - context: context.Context
  - sessionIDs: []string

Returns:
  - int64: Number of records removed from the store (0 in cache-only mode)
  - error: Backend failures
*/
func (engine *Engine) ClearRevocation(context context.Context, sessionIDs []string) (int64, error) {
	if engine.disabled {
		return 0, engine.notConfigured()
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	var removed int64
	if engine.records != nil {
		count, err := engine.records.Delete(context, sessionIDs)
		if err != nil {
			return 0, err
		}
		removed = count
	}

	engine.evictRecords(context, sessionIDs)
	return removed, nil
}

/*
DeleteRevocationsOlderThan purges revocation records older than the cutoff.

Description: Pages through the store in fixed-size batches with a hard cap
per run, so one invocation never monopolizes the backend. Cache entries for
purged records are evicted alongside. Without a store there is nothing to
page over; the call returns 0.

Parameters:
  - context: context.Context
  - cutoff: time.Time

Returns:
  - int64: Number of records purged in this run
  - error: Backend failures
*/
func (engine *Engine) DeleteRevocationsOlderThan(context context.Context, cutoff time.Time) (int64, error) {
	if engine.disabled {
		return 0, engine.notConfigured()
	}
	if engine.records == nil {
		engine.logger.Debug("revocation_cleanup_skipped",
			slog.String("reason", "no durable store configured"),
		)
		return 0, nil
	}

	var total int64
	for page := 0; page < cleanupMaxPages; page++ {

		sessionIDs, err := engine.records.FindRevokedBefore(context, cutoff, cleanupPageSize)
		if err != nil {
			return total, err
		}
		if len(sessionIDs) == 0 {
			break
		}

		removed, err := engine.records.Delete(context, sessionIDs)
		if err != nil {
			return total, err
		}
		total += removed

		engine.evictRecords(context, sessionIDs)

		if len(sessionIDs) < cleanupPageSize {
			break
		}
	}

	engine.logger.Info("revocation_cleanup_completed",
		slog.Time("cutoff", cutoff),
		slog.Int64("purged", total),
	)
	return total, nil
}

// # Cache Index Maintenance

// revocationIndex is the cached per-user list of revoked session IDs.
type revocationIndex struct {
	SessionIDs []string `json:"session_ids"`
}

// addToUserIndex registers a revoked session in the user's cached index.
func (engine *Engine) addToUserIndex(context context.Context, userID, sessionID string) {
	if engine.cache.absent() {
		return
	}

	release := engine.userLocks.lock(userID)
	defer release()

	index := &revocationIndex{}
	engine.cache.get(context, revocationByUserKey(userID), index)

	if !slice.Contains(index.SessionIDs, sessionID) {
		index.SessionIDs = append(index.SessionIDs, sessionID)
		engine.cache.put(context, revocationByUserKey(userID), index)
	}
}

// evictRecords drops cached revocation entries for the given sessions.
//
// The per-user indexes are left to heal lazily: a dangling index entry only
// costs one cache miss on the next read.
func (engine *Engine) evictRecords(context context.Context, sessionIDs []string) {
	if engine.cache.absent() {
		return
	}

	keys := make([]string, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		keys[i] = revocationKey(sessionID)
	}
	engine.cache.multiEvict(context, keys)
}
