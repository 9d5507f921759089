// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
)

// Shared in-memory fakes for the session package tests. No live Postgres or
// Redis is required; the repositories and cache provider are replaced by
// map-backed doubles with the same contracts.

// # Cache Fakes

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (cache *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	value, found := cache.entries[key]
	return value, found, nil
}

func (cache *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[key] = value
	return nil
}

func (cache *memoryCache) Delete(_ context.Context, keys ...string) (int64, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, found := cache.entries[key]; found {
			delete(cache.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (cache *memoryCache) MGet(_ context.Context, keys ...string) (map[string][]byte, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	result := make(map[string][]byte)
	for _, key := range keys {
		if value, found := cache.entries[key]; found {
			result[key] = value
		}
	}
	return result, nil
}

func (cache *memoryCache) size() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

// memoryProvider resolves only the declared cache names, like the Redis
// provider does.
type memoryProvider struct {
	caches map[string]*memoryCache
}

func newMemoryProvider(names ...string) *memoryProvider {
	caches := make(map[string]*memoryCache, len(names))
	for _, name := range names {
		caches[name] = newMemoryCache()
	}
	return &memoryProvider{caches: caches}
}

func (provider *memoryProvider) Cache(name string) Cache {
	if cache, found := provider.caches[name]; found {
		return cache
	}
	return nil
}

// # Repository Fakes

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemorySessionRepo() *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*Session)}
}

func (repo *memorySessionRepo) Create(_ context.Context, session *Session) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	clone := *session
	repo.sessions[session.ID] = &clone
	return nil
}

func (repo *memorySessionRepo) FindByID(_ context.Context, sessionID string) (*Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, found := repo.sessions[sessionID]
	if !found {
		return nil, apperr.NotFound("session")
	}
	clone := *session
	return &clone, nil
}

func (repo *memorySessionRepo) FindByUser(_ context.Context, userID string) ([]*Session, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	result := make([]*Session, 0)
	for _, session := range repo.sessions {
		if session.UserID == userID {
			clone := *session
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (repo *memorySessionRepo) FindActiveByUser(ctx context.Context, userID string) ([]*Session, error) {
	all, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return filterActive(all), nil
}

func (repo *memorySessionRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	all, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (repo *memorySessionRepo) MarkRevoked(_ context.Context, sessionID string, revokedAt time.Time) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	session, found := repo.sessions[sessionID]
	if !found {
		return apperr.NotFound("session")
	}
	session.IsRevoked = true
	session.RevokedAt = &revokedAt
	return nil
}

func (repo *memorySessionRepo) Delete(_ context.Context, sessionID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.sessions, sessionID)
	return nil
}

func (repo *memorySessionRepo) DeleteAll(_ context.Context, sessionIDs []string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, sessionID := range sessionIDs {
		delete(repo.sessions, sessionID)
	}
	return nil
}

type memoryRevocationRepo struct {
	mu      sync.Mutex
	records map[string]*RevocationRecord

	// findBeforeCalls counts FindRevokedBefore invocations so cleanup tests
	// can assert how many pages a run walked.
	findBeforeCalls int
}

func newMemoryRevocationRepo() *memoryRevocationRepo {
	return &memoryRevocationRepo{records: make(map[string]*RevocationRecord)}
}

func (repo *memoryRevocationRepo) Create(_ context.Context, record *RevocationRecord) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	// First writer wins, like the ON CONFLICT DO NOTHING in the real repo.
	if _, found := repo.records[record.SessionID]; !found {
		clone := *record
		repo.records[record.SessionID] = &clone
	}
	return nil
}

func (repo *memoryRevocationRepo) FindBySession(_ context.Context, sessionID string) (*RevocationRecord, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	record, found := repo.records[sessionID]
	if !found {
		return nil, apperr.NotFound("revocation")
	}
	clone := *record
	return &clone, nil
}

func (repo *memoryRevocationRepo) FindByUser(_ context.Context, userID string) ([]*RevocationRecord, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	result := make([]*RevocationRecord, 0)
	for _, record := range repo.records {
		if record.UserID == userID {
			clone := *record
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (repo *memoryRevocationRepo) Delete(_ context.Context, sessionIDs []string) (int64, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	var removed int64
	for _, sessionID := range sessionIDs {
		if _, found := repo.records[sessionID]; found {
			delete(repo.records, sessionID)
			removed++
		}
	}
	return removed, nil
}

func (repo *memoryRevocationRepo) FindRevokedBefore(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	repo.findBeforeCalls++
	result := make([]string, 0)
	for sessionID, record := range repo.records {
		if record.RevokedAt.Before(cutoff) {
			result = append(result, sessionID)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

func (repo *memoryRevocationRepo) ExistsByUserRevokedAfter(_ context.Context, userID string, after time.Time) (bool, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	for _, record := range repo.records {
		if record.UserID == userID && record.RevokedAt.After(after) {
			return true, nil
		}
	}
	return false, nil
}

// # Capability Fakes

type fixedClock struct {
	instant time.Time
}

func (clock fixedClock) Now() time.Time { return clock.instant }

type staticProbe struct {
	actor string
}

func (probe staticProbe) CurrentActor(context.Context) string { return probe.actor }

// # Builders

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClock() fixedClock {
	return fixedClock{instant: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
}

// deviceRequest builds a request carrying the device signals the fingerprint
// generator reads.
func deviceRequest(deviceID, language, platform string) *http.Request {
	request := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	if deviceID != "" {
		request.Header.Set("X-Device-Id", deviceID)
	}
	if language != "" {
		request.Header.Set("Accept-Language", language)
	}
	if platform != "" {
		request.Header.Set("Sec-CH-UA-Platform", platform)
	}
	return request
}

// absentCache yields a familyCache with no backing tier. All operations
// silently no-op.
func absentCache(family Family) *familyCache {
	return &familyCache{family: family, name: family.CanonicalCacheName(), logger: testLogger()}
}

// backedCache yields a familyCache over an in-memory cache.
func backedCache(family Family) (*familyCache, *memoryCache) {
	provider := newMemoryProvider(family.CanonicalCacheName())
	fc := newFamilyCache(family, family.CanonicalCacheName(), provider, testLogger())
	return fc, provider.caches[family.CanonicalCacheName()]
}
