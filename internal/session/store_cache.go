// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// # Cache-Only Manager

// cacheManager is the cache-only rendition of [Manager].
//
// All state lives in the key-value cache: session entries, the parallel
// fingerprint entries, and the per-user session index. There is no durable
// tier, so writes go cache-entry-first, then index read-modify-write.
type cacheManager struct {
	entries      *familyCache // SESSION family: session-pool-{sid}, fingerprint-{sid}
	index        *familyCache // USER_SESSION_INDEX family: user-sessions-{uid}
	fingerprints FingerprintGenerator
	clock        Clock
	logger       *slog.Logger
	userLocks    *keyedMutex
}

// newCacheManager constructs the cache-only variant.
func newCacheManager(entries, index *familyCache, fingerprints FingerprintGenerator, clock Clock, logger *slog.Logger) *cacheManager {
	return &cacheManager{
		entries:      entries,
		index:        index,
		fingerprints: fingerprints,
		clock:        clock,
		logger:       logger,
		userLocks:    newKeyedMutex(),
	}
}

// CreateSession implements [Manager].
//
// The session entry is written first, then the user index is updated in a
// read-modify-write cycle serialized per user within this process.
func (manager *cacheManager) CreateSession(context context.Context, userID string, request *http.Request) (*Session, error) {

	session, err := newSessionFromRequest(manager.fingerprints, manager.clock, userID, request)
	if err != nil {
		return nil, err
	}

	// 1. Entry first, so the index never references an ID that was never written.
	manager.entries.put(context, sessionKey(session.ID), session)
	manager.entries.put(context, fingerprintKey(session.ID), session.DeviceFingerprint)

	// 2. Index read-modify-write under the per-user lock.
	manager.addToIndex(context, session.UserID, session.ID)

	manager.logger.Debug("session_created",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
	)
	return session, nil
}

// GetSession implements [Manager].
func (manager *cacheManager) GetSession(context context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_lookup_blank_id")
		return nil, nil
	}

	session := &Session{}
	if !manager.entries.get(context, sessionKey(sessionID), session) {
		return nil, nil
	}
	return session, nil
}

// GetSessionsByUser implements [Manager].
//
// The user index enumerates candidate IDs; entries are fetched in one batch
// and nulls (stale index residue) are filtered out.
func (manager *cacheManager) GetSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	if strings.TrimSpace(userID) == "" {
		manager.logger.Warn("session_list_blank_user")
		return []*Session{}, nil
	}

	index := &UserSessionIndex{UserID: userID}
	if !manager.index.get(context, userSessionsKey(userID), index) {
		return []*Session{}, nil
	}

	keys := make([]string, len(index.SessionIDs))
	for i, sessionID := range index.SessionIDs {
		keys[i] = sessionKey(sessionID)
	}

	loaded := manager.entries.multiGet(context, keys)

	sessions := make([]*Session, 0, len(loaded))
	for _, key := range keys {
		raw, found := loaded[key]
		if !found {
			// Stale index entry; tolerated, heals on the next index write.
			manager.logger.Debug("session_index_stale_entry",
				slog.String("user_id", userID),
				slog.String("key", key),
			)
			continue
		}

		session := &Session{}
		if err := json.Unmarshal(raw, session); err != nil {
			manager.logger.Warn("session_entry_decode_failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
			continue
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}

// GetActiveSessionsByUser implements [Manager].
func (manager *cacheManager) GetActiveSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	sessions, err := manager.GetSessionsByUser(context, userID)
	if err != nil {
		return nil, err
	}
	return filterActive(sessions), nil
}

// TotalUserSessions implements [Manager]. Counts retrievable entries, not
// raw index size, so stale residue is not over-counted.
func (manager *cacheManager) TotalUserSessions(context context.Context, userID string) (int, error) {
	sessions, err := manager.GetSessionsByUser(context, userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// DeleteSession implements [Manager]. Missing sessions are a no-op.
func (manager *cacheManager) DeleteSession(context context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_delete_blank_id")
		return nil
	}

	// Resolve the owner before the entry disappears.
	session, err := manager.GetSession(context, sessionID)
	if err != nil || session == nil {
		return err
	}

	manager.entries.evict(context, sessionKey(sessionID))
	manager.entries.evict(context, fingerprintKey(sessionID))
	manager.removeFromIndex(context, session.UserID, sessionID)

	return nil
}

// DeleteAllSessions implements [Manager].
//
// Entries are batch-evicted, then the surviving session IDs are grouped by
// user from the just-deleted entries so each affected index is updated in
// one read-modify-write.
func (manager *cacheManager) DeleteAllSessions(context context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	// 1. Learn the owners while the entries still exist.
	keys := make([]string, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		keys[i] = sessionKey(sessionID)
	}
	loaded := manager.entries.multiGet(context, keys)

	byUser := make(map[string][]string)
	for _, raw := range loaded {
		session := &Session{}
		if err := json.Unmarshal(raw, session); err != nil {
			continue
		}
		byUser[session.UserID] = append(byUser[session.UserID], session.ID)
	}

	// 2. Batch-evict entries and their fingerprint twins.
	evictKeys := make([]string, 0, len(sessionIDs)*2)
	for _, sessionID := range sessionIDs {
		evictKeys = append(evictKeys, sessionKey(sessionID), fingerprintKey(sessionID))
	}
	manager.entries.multiEvict(context, evictKeys)

	// 3. One index update per affected user.
	for userID, ids := range byUser {
		release := manager.userLocks.lock(userID)

		index := &UserSessionIndex{UserID: userID}
		if manager.index.get(context, userSessionsKey(userID), index) {
			now := manager.clock.Now()
			for _, sessionID := range ids {
				index.remove(sessionID, now)
			}
			manager.index.put(context, userSessionsKey(userID), index)
		}

		release()
	}

	return nil
}

// GetSessionFingerprint implements [Manager].
func (manager *cacheManager) GetSessionFingerprint(context context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", nil
	}

	// The parallel fingerprint entry is the only copy: the session entity
	// drops the field on serialization.
	var fingerprint string
	if manager.entries.get(context, fingerprintKey(sessionID), &fingerprint) {
		return fingerprint, nil
	}
	return "", nil
}

// # Index Maintenance

// addToIndex registers a session ID in the user's index, stamping LastUpdated.
func (manager *cacheManager) addToIndex(context context.Context, userID, sessionID string) {
	release := manager.userLocks.lock(userID)
	defer release()

	index := &UserSessionIndex{UserID: userID}
	manager.index.get(context, userSessionsKey(userID), index)

	index.add(sessionID, manager.clock.Now())
	manager.index.put(context, userSessionsKey(userID), index)
}

// removeFromIndex drops a session ID from the user's index, stamping LastUpdated.
func (manager *cacheManager) removeFromIndex(context context.Context, userID, sessionID string) {
	release := manager.userLocks.lock(userID)
	defer release()

	index := &UserSessionIndex{UserID: userID}
	if !manager.index.get(context, userSessionsKey(userID), index) {
		return
	}

	index.remove(sessionID, manager.clock.Now())
	manager.index.put(context, userSessionsKey(userID), index)
}
