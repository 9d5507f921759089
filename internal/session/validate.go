// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
	"github.com/taibuivan/vaultiq/internal/platform/ctxutil"
)

// # Request Validation

// Validator is the request-time session check: four steps, evaluated in
// order, short-circuiting on the first failure.
//
//  1. A session ID must be bound to the request.
//  2. The session must exist.
//  3. Neither the session flag nor a revocation record may mark it revoked.
//  4. The presented device must match the stored fingerprint.
//
// Failures answer false with a warn log naming the failed step; they never
// surface errors to the caller, because a validation path that errors open
// is worse than one that fails closed.
type Validator struct {
	sessions     Manager
	revocations  *Engine
	fingerprints FingerprintValidator
	logger       *slog.Logger
}

// newValidator wires the validator over the selected manager and engine.
func newValidator(sessions Manager, revocations *Engine, fingerprints FingerprintValidator, logger *slog.Logger) *Validator {
	return &Validator{
		sessions:     sessions,
		revocations:  revocations,
		fingerprints: fingerprints,
		logger:       logger,
	}
}

/*
ValidateForRequest runs the four-step session check for an incoming request.

Description: The session ID is read from the request context (populated by
the session-attach middleware). Backend failures during any step fail closed.

Parameters:
  - request: *http.Request

Returns:
  - bool: true when the session is present, alive, and device-bound
*/
func (validator *Validator) ValidateForRequest(request *http.Request) bool {
	if request == nil {
		return false
	}
	context := request.Context()

	// 1. A session must be bound to the request at all.
	sessionID := strings.TrimSpace(ctxutil.GetSessionID(context))
	if sessionID == "" {
		validator.logger.Warn("session_validation_no_session_id")
		return false
	}

	// 2. The session must exist.
	session, err := validator.sessions.GetSession(context, sessionID)
	if err != nil || session == nil {
		validator.logger.Warn("session_validation_not_found",
			slog.String("session_id", sessionID),
		)
		return false
	}

	// 3. Revocation, checked on both the entity flag and the record ledger.
	if session.IsRevoked {
		validator.logger.Warn("session_validation_revoked",
			slog.String("session_id", sessionID),
		)
		return false
	}
	// A ledger that is switched off offers no signal; the entity flag above
	// is then the only revocation check. Any other failure fails closed.
	revoked, err := validator.revocations.IsRevoked(context, sessionID)
	if err != nil && apperr.IsNotConfigured(err) {
		revoked, err = false, nil
	}
	if err != nil || revoked {
		validator.logger.Warn("session_validation_revoked",
			slog.String("session_id", sessionID),
		)
		return false
	}

	// 4. The presenting device must still be the bound device. The stored
	// fingerprint comes from the dedicated lookup, not the entity field: the
	// field never survives serialization into the cache tier.
	stored, err := validator.sessions.GetSessionFingerprint(context, sessionID)
	if err != nil || !validator.fingerprints.Matches(request, stored) {
		validator.logger.Warn("session_validation_fingerprint_mismatch",
			slog.String("session_id", sessionID),
		)
		return false
	}

	validator.logger.Debug("session_validation_passed",
		slog.String("session_id", sessionID),
	)
	return true
}
