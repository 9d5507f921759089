// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/taibuivan/vaultiq/internal/platform/ctxutil"
)

// SessionValidator defines the interface needed to validate sessions in middleware.
//
// # Why an interface?
//
// Defining SessionValidator here decouples the middleware from the session
// engine implementation, allowing us to easily inject mocks during unit testing.
type SessionValidator interface {
	ValidateForRequest(request *http.Request) bool
}

// AttachSessionID lifts the claimed session ID from the transport into the
// canonical "vaultiq.sid" request attribute.
//
// # Flow
//  1. Check for an 'X-Session-Id' header.
//  2. If absent, fall back to the 'vaultiq_sid' cookie.
//  3. Attach the value to the request context; downstream layers never touch
//     the transport again.
func AttachSessionID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			sessionID := strings.TrimSpace(request.Header.Get("X-Session-Id"))

			if sessionID == "" {
				if cookie, err := request.Cookie("vaultiq_sid"); err == nil {
					sessionID = cookie.Value
				}
			}

			if sessionID == "" {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithSessionID(request.Context(), sessionID)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireValidSession rejects any request that does not carry a live,
// non-revoked session with a matching device fingerprint.
//
// The heavy lifting (revocation check, fingerprint recomputation) is done by
// the injected [SessionValidator]; this middleware only maps its verdict to
// a transport response.
func RequireValidSession(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			if !validator.ValidateForRequest(request) {
				writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Session is missing, revoked, or bound to another device")
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}

// ActorFromHeader records the acting principal asserted by the host's
// identity layer so that revocation records can attribute their trigger.
func ActorFromHeader() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			actor := strings.TrimSpace(request.Header.Get("X-Actor-Id"))
			if actor == "" {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithActor(request.Context(), actor)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}
