// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"
	"strings"
	"sync"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
	"github.com/taibuivan/vaultiq/internal/platform/constants"
	"github.com/taibuivan/vaultiq/pkg/uuid"
)

// # Shared Manager Helpers

// newSessionFromRequest assembles a fresh Session entity for the requesting
// device. The fingerprint is computed via the host-supplied generator; the
// descriptive device metadata is carried but never interpreted.
func newSessionFromRequest(generator FingerprintGenerator, clock Clock, userID string, request *http.Request) (*Session, error) {

	// Blank user IDs are a fatal validation failure on mutation paths.
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.ValidationError("User ID is required", apperr.FieldError{
			Field:   "user_id",
			Message: "This field is required",
		})
	}

	// Bind the device identity at creation time.
	fingerprint, err := generator.Fingerprint(request)
	if err != nil {
		return nil, apperr.ValidationError("Device fingerprint could not be derived", apperr.FieldError{
			Field:   "fingerprint",
			Message: err.Error(),
		})
	}

	session := &Session{
		ID:                uuid.New(),
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		CreatedAt:         clock.Now(),
		IsRevoked:         false,
	}

	// Optional descriptive metadata, opaque to the engine.
	if request != nil {
		session.DeviceName = strings.TrimSpace(request.Header.Get("X-Device-Name"))
		session.DeviceOS = normalizePlatformHint(request.Header.Get(constants.HeaderSecChUAPlatform))
		session.DeviceType = strings.TrimSpace(request.Header.Get("X-Device-Type"))
	}

	return session, nil
}

// filterActive returns the non-revoked subset of sessions.
func filterActive(sessions []*Session) []*Session {
	active := make([]*Session, 0, len(sessions))
	for _, session := range sessions {
		if !session.IsRevoked {
			active = append(active, session)
		}
	}
	return active
}

// # Per-Key Contention

// keyedMutex serializes read-modify-write cycles on the per-user index
// within this process.
//
// The lock is an optimisation, not a correctness crutch: the index may be
// mutated by any replica and must self-heal on read-through regardless.
// Only per-user locks are taken — never a global lock across users.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*userLock)}
}

// lock acquires the mutex for the given key and returns its release func.
func (km *keyedMutex) lock(key string) func() {
	km.mu.Lock()
	entry, found := km.locks[key]
	if !found {
		entry = &userLock{}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.Lock()

	return func() {
		entry.Unlock()

		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
