// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/taibuivan/vaultiq/internal/platform/ctxutil"
)

// # Host-Supplied Capabilities

// FingerprintGenerator deterministically derives an opaque device fingerprint
// from request-borne signals. Same inputs MUST produce the same output,
// stable across requests from the same device.
type FingerprintGenerator interface {

	/*
		Fingerprint computes the device fingerprint for the request.

		Parameters:
		  - request: *http.Request

		Returns:
		  - string: Opaque fingerprint
		  - error: Missing device signals
	*/
	Fingerprint(request *http.Request) (string, error)
}

// FingerprintValidator compares a request against a stored fingerprint.
//
// The default implementation recomputes via the [FingerprintGenerator] and
// compares; hosts may override with custom logic.
type FingerprintValidator interface {

	/*
		Matches reports whether the request originates from the device bound
		to the stored fingerprint.

		Parameters:
		  - request: *http.Request
		  - stored: string

		Returns:
		  - bool: true when the request matches the stored fingerprint
	*/
	Matches(request *http.Request, stored string) bool
}

// IdentityProbe resolves the current acting principal's identifier.
//
// The engine calls it at the moment of a revocation and stores the returned
// value verbatim in the audit record. The probe is responsible for its own
// context handling; the engine relies on no ambient thread-local state.
type IdentityProbe interface {

	/*
		CurrentActor returns the acting principal's identifier, or an empty
		string when no principal is established.

		Parameters:
		  - context: context.Context

		Returns:
		  - string: Principal identifier
	*/
	CurrentActor(context context.Context) string
}

// Clock abstracts time acquisition so tests can pin the instant.
type Clock interface {
	Now() time.Time
}

// # Default Implementations

// SystemClock returns the real time in UTC.
type SystemClock struct{}

// Now implements [Clock].
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ContextIdentityProbe resolves the actor from the request context populated
// by the host's identity middleware.
type ContextIdentityProbe struct{}

// CurrentActor implements [IdentityProbe]. Falls back to "system" so that
// scheduler-triggered revocations remain attributable.
func (ContextIdentityProbe) CurrentActor(context context.Context) string {
	if actor := ctxutil.GetActor(context); actor != "" {
		return actor
	}
	return "system"
}
