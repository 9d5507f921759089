// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
)

// # Store-Only Manager

// storeManager is the durable-store-only rendition of [Manager].
//
// All state lives in PostgreSQL; listing and counting use filtered queries,
// so no separate user index is maintained.
type storeManager struct {
	sessions     SessionRepository
	fingerprints FingerprintGenerator
	clock        Clock
	logger       *slog.Logger
}

// newStoreManager constructs the store-only variant.
func newStoreManager(sessions SessionRepository, fingerprints FingerprintGenerator, clock Clock, logger *slog.Logger) *storeManager {
	return &storeManager{
		sessions:     sessions,
		fingerprints: fingerprints,
		clock:        clock,
		logger:       logger,
	}
}

// CreateSession implements [Manager].
func (manager *storeManager) CreateSession(context context.Context, userID string, request *http.Request) (*Session, error) {

	session, err := newSessionFromRequest(manager.fingerprints, manager.clock, userID, request)
	if err != nil {
		return nil, err
	}

	if err := manager.sessions.Create(context, session); err != nil {
		return nil, err
	}

	manager.logger.Debug("session_created",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.UserID),
	)
	return session, nil
}

// GetSession implements [Manager]. Invalid input and missing rows resolve to
// (nil, nil) silently.
func (manager *storeManager) GetSession(context context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_lookup_blank_id")
		return nil, nil
	}

	session, err := manager.sessions.FindByID(context, sessionID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// GetSessionsByUser implements [Manager].
func (manager *storeManager) GetSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	if strings.TrimSpace(userID) == "" {
		manager.logger.Warn("session_list_blank_user")
		return []*Session{}, nil
	}
	return manager.sessions.FindByUser(context, userID)
}

// GetActiveSessionsByUser implements [Manager].
func (manager *storeManager) GetActiveSessionsByUser(context context.Context, userID string) ([]*Session, error) {
	if strings.TrimSpace(userID) == "" {
		manager.logger.Warn("session_list_blank_user")
		return []*Session{}, nil
	}
	return manager.sessions.FindActiveByUser(context, userID)
}

// TotalUserSessions implements [Manager].
func (manager *storeManager) TotalUserSessions(context context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, nil
	}
	return manager.sessions.CountByUser(context, userID)
}

// DeleteSession implements [Manager]. Missing sessions are a no-op.
func (manager *storeManager) DeleteSession(context context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		manager.logger.Warn("session_delete_blank_id")
		return nil
	}
	return manager.sessions.Delete(context, sessionID)
}

// DeleteAllSessions implements [Manager]. An empty set is a no-op.
func (manager *storeManager) DeleteAllSessions(context context.Context, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	return manager.sessions.DeleteAll(context, sessionIDs)
}

// GetSessionFingerprint implements [Manager].
func (manager *storeManager) GetSessionFingerprint(context context.Context, sessionID string) (string, error) {
	session, err := manager.GetSession(context, sessionID)
	if err != nil || session == nil {
		return "", err
	}
	return session.DeviceFingerprint, nil
}

// markRevoked implements sessionReflector for the mark-on-revoke policy.
func (manager *storeManager) markRevoked(context context.Context, sessionID string, revokedAt time.Time) error {
	return manager.sessions.MarkRevoked(context, sessionID, revokedAt)
}

// isNotFound reports whether err is the storage layer's not-found mapping.
func isNotFound(err error) bool {
	var appError *apperr.AppError
	if errors.As(err, &appError) {
		return appError.Code == "NOT_FOUND"
	}
	return false
}
