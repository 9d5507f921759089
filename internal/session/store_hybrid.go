// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// # Store+Cache Manager

// hybridManager layers the cache tier over the durable store.
//
// Writes are store-first, then cache, so a cache write never outlives a
// failed store write. Reads go through the cache and fall back to the store
// on a miss, populating the cache before returning.
type hybridManager struct {
	store   *storeManager
	entries *familyCache // SESSION family: session-pool-{sid}, fingerprint-{sid}
	index   *familyCache // USER_SESSION_INDEX family: user-sessions-{uid}
	clock   Clock
	logger  *slog.Logger
}

// newHybridManager constructs the store+cache variant on top of the
// store-only manager.
func newHybridManager(store *storeManager, entries, index *familyCache, clock Clock, logger *slog.Logger) *hybridManager {
	return &hybridManager{
		store:   store,
		entries: entries,
		index:   index,
		clock:   clock,
		logger:  logger,
	}
}

// CreateSession implements [Manager]. Store first, then cache write-through.
func (manager *hybridManager) CreateSession(context context.Context, userID string, request *http.Request) (*Session, error) {
	session, err := manager.store.CreateSession(context, userID, request)
	if err != nil {
		return nil, err
	}

	manager.entries.put(context, sessionKey(session.ID), session)
	manager.entries.put(context, fingerprintKey(session.ID), session.DeviceFingerprint)

	// The user list changed shape; drop it rather than patch it so the next
	// read rebuilds from the canonical store.
	manager.index.evict(context, userSessionsKey(session.UserID))

	return session, nil
}

// GetSession implements [Manager]. Read-through: cache miss falls back to the
// store and repopulates the entry.
func (manager *hybridManager) GetSession(context context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_lookup_blank_id")
		return nil, nil
	}

	cached := &Session{}
	if manager.entries.get(context, sessionKey(sessionID), cached) {
		return cached, nil
	}

	session, err := manager.store.GetSession(context, sessionID)
	if err != nil || session == nil {
		return nil, err
	}

	manager.entries.put(context, sessionKey(sessionID), session)
	return session, nil
}

// GetSessionsByUser implements [Manager].
//
// The cached user index is only a hint that the store already knows better,
// so listings always come from the store and refresh the index on the way out.
func (manager *hybridManager) GetSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	sessions, err := manager.store.GetSessionsByUser(context, userID)
	if err != nil {
		return nil, err
	}

	manager.refreshIndex(context, userID, sessions)
	return sessions, nil
}

// GetActiveSessionsByUser implements [Manager].
func (manager *hybridManager) GetActiveSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	sessions, err := manager.GetSessionsByUser(context, userID)
	if err != nil {
		return nil, err
	}
	return filterActive(sessions), nil
}

// TotalUserSessions implements [Manager]. Counting is store-canonical.
func (manager *hybridManager) TotalUserSessions(context context.Context, userID string) (int, error) {
	return manager.store.TotalUserSessions(context, userID)
}

// DeleteSession implements [Manager]. Store delete first, then cache eviction.
func (manager *hybridManager) DeleteSession(context context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_delete_blank_id")
		return nil
	}

	// Resolve the owner before the row disappears, for index eviction.
	session, err := manager.GetSession(context, sessionID)
	if err != nil {
		return err
	}

	if err := manager.store.DeleteSession(context, sessionID); err != nil {
		return err
	}

	manager.entries.evict(context, sessionKey(sessionID))
	manager.entries.evict(context, fingerprintKey(sessionID))
	if session != nil {
		manager.index.evict(context, userSessionsKey(session.UserID))
	}

	return nil
}

// DeleteAllSessions implements [Manager].
func (manager *hybridManager) DeleteAllSessions(context context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	// Resolve owners first so their indexes can be dropped afterwards.
	owners := make(map[string]struct{})
	for _, sessionID := range sessionIDs {
		session, err := manager.GetSession(context, sessionID)
		if err != nil {
			return err
		}
		if session != nil {
			owners[session.UserID] = struct{}{}
		}
	}

	if err := manager.store.DeleteAllSessions(context, sessionIDs); err != nil {
		return err
	}

	evictKeys := make([]string, 0, len(sessionIDs)*2)
	for _, sessionID := range sessionIDs {
		evictKeys = append(evictKeys, sessionKey(sessionID), fingerprintKey(sessionID))
	}
	manager.entries.multiEvict(context, evictKeys)

	for userID := range owners {
		manager.index.evict(context, userSessionsKey(userID))
	}

	return nil
}

// GetSessionFingerprint implements [Manager]. The parallel fingerprint cache
// is consulted first, then the session itself.
func (manager *hybridManager) GetSessionFingerprint(context context.Context, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", nil
	}

	var fingerprint string
	if manager.entries.get(context, fingerprintKey(sessionID), &fingerprint) {
		return fingerprint, nil
	}

	// Straight to the store: the cached entity never carries the
	// fingerprint field, so going through GetSession would cache a blank.
	fingerprint, err := manager.store.GetSessionFingerprint(context, sessionID)
	if err != nil || fingerprint == "" {
		return "", err
	}

	manager.entries.put(context, fingerprintKey(sessionID), fingerprint)
	return fingerprint, nil
}

// markRevoked implements sessionReflector: the store row is marked, then the
// cached copy is refreshed in place so readers see the revocation immediately.
func (manager *hybridManager) markRevoked(context context.Context, sessionID string, revokedAt time.Time) error {
	if err := manager.store.markRevoked(context, sessionID, revokedAt); err != nil {
		return err
	}

	cached := &Session{}
	if manager.entries.get(context, sessionKey(sessionID), cached) {
		cached.IsRevoked = true
		cached.RevokedAt = &revokedAt
		manager.entries.put(context, sessionKey(sessionID), cached)
	}

	return nil
}

// refreshIndex rewrites the cached user index from a store-canonical listing.
func (manager *hybridManager) refreshIndex(context context.Context, userID string, sessions []*Session) {
	index := &UserSessionIndex{UserID: userID, SessionIDs: make([]string, 0, len(sessions))}
	for _, session := range sessions {
		index.SessionIDs = append(index.SessionIDs, session.ID)
	}
	index.touch(manager.clock.Now())

	manager.index.put(context, userSessionsKey(userID), index)
}
