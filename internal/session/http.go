// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/vaultiq/internal/platform/apperr"
	requestutil "github.com/taibuivan/vaultiq/internal/platform/request"
	"github.com/taibuivan/vaultiq/internal/platform/respond"
	"github.com/taibuivan/vaultiq/internal/platform/validate"
)

// # Definitions & Constructors

// Validation field identifiers.
const (
	fieldUserID        = "user_id"
	fieldSessionID     = "session_id"
	fieldKind          = "kind"
	fieldRetentionDays = "retention_days"
)

// Handler implements session lifecycle and revocation HTTP endpoints.
//
// # Scope
//
// This handler is the host-facing delivery layer over the capability
// [Bundle]: session creation/listing/deletion and revocation intents. It is
// strictly responsible for transport concerns (status codes, headers, JSON).
type Handler struct {
	bundle *Bundle
}

// NewHandler constructs a new [Handler] over an assembled capability bundle.
func NewHandler(bundle *Bundle) *Handler {
	return &Handler{bundle: bundle}
}

// Routes returns a [chi.Router] configured with session-specific routes.
//
// # Endpoints
//   - POST   /users/{userID}/sessions       : Binds a session to the requesting device.
//   - GET    /users/{userID}/sessions       : Lists a user's sessions (?active=true filters).
//   - GET    /users/{userID}/revocations    : Lists a user's revocation records.
//   - GET    /sessions/{sessionID}          : Fetches a single session.
//   - DELETE /sessions/{sessionID}          : Removes a session without revoking it.
//   - POST   /revocations                   : Executes a revocation intent.
//   - POST   /revocations/cleanup           : Purges revocation records past retention.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/users/{userID}/sessions", handler.createSession)
	router.Get("/users/{userID}/sessions", handler.listSessions)
	router.Get("/users/{userID}/revocations", handler.listRevocations)

	router.Get("/sessions/{sessionID}", handler.getSession)
	router.Delete("/sessions/{sessionID}", handler.deleteSession)

	router.Post("/revocations", handler.revoke)
	router.Post("/revocations/cleanup", handler.cleanupRevocations)

	return router
}

// # Request Payloads

type revokeRequest struct {
	UserID             string   `json:"user_id"`
	Kind               string   `json:"kind"`
	SessionID          string   `json:"session_id,omitempty"`
	ExcludedSessionIDs []string `json:"excluded_session_ids,omitempty"`
	Note               string   `json:"note,omitempty"`
}

type cleanupRequest struct {
	RetentionDays int `json:"retention_days"`
}

type revokeResponse struct {
	RevokedSessionIDs []string `json:"revoked_session_ids"`
	Count             int      `json:"count"`
}

type cleanupResponse struct {
	Purged int64 `json:"purged"`
}

// # Session Endpoints

/*
createSession binds the calling device to a user.

POST /api/v1/users/{userID}/sessions

Description: Derives the device fingerprint from the request headers and
persists a fresh session per the configured mode.

Response:
  - 201: Session: Created session entity
  - 400: ErrInvalidJSON: Missing device signals or blank user ID
  - 503: NOT_CONFIGURED: SESSION family switched off
*/
func (handler *Handler) createSession(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")

	validator := &validate.Validator{}
	validator.Required(fieldUserID, userID)
	if validator.HasErrors() {
		respond.Error(writer, request, validator.Err())
		return
	}

	session, err := handler.bundle.Sessions.CreateSession(request.Context(), userID, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, session)
}

/*
listSessions lists a user's sessions.

GET /api/v1/users/{userID}/sessions?active=true

Description: Returns every tracked session of the user; the active flag
filters out revoked entries.

Response:
  - 200: []Session: Possibly empty list
  - 503: NOT_CONFIGURED: SESSION family switched off
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")

	var (
		sessions []*Session
		err      error
	)
	if request.URL.Query().Get("active") == "true" {
		sessions, err = handler.bundle.Sessions.GetActiveSessionsByUser(request.Context(), userID)
	} else {
		sessions, err = handler.bundle.Sessions.GetSessionsByUser(request.Context(), userID)
	}
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessions)
}

/*
getSession fetches one session by ID.

GET /api/v1/sessions/{sessionID}

Response:
  - 200: Session: Hydrated entity
  - 404: NOT_FOUND: Unknown session ID
*/
func (handler *Handler) getSession(writer http.ResponseWriter, request *http.Request) {
	sessionID := requestutil.Param(request, "sessionID")

	session, err := handler.bundle.Sessions.GetSession(request.Context(), sessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if session == nil {
		respond.Error(writer, request, apperr.NotFound("session"))
		return
	}

	respond.OK(writer, session)
}

/*
deleteSession removes a session entry without writing a revocation record.

DELETE /api/v1/sessions/{sessionID}

Description: Administrative removal. Missing sessions are treated as already
deleted.

Response:
  - 204: Removed (or already absent)
  - 503: NOT_CONFIGURED: SESSION family switched off
*/
func (handler *Handler) deleteSession(writer http.ResponseWriter, request *http.Request) {
	sessionID := requestutil.Param(request, "sessionID")

	if err := handler.bundle.Sessions.DeleteSession(request.Context(), sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Revocation Endpoints

/*
revoke executes a revocation intent.

POST /api/v1/revocations

Description: Resolves the target set from the intent kind (ONE, ALL,
ALL_EXCEPT) and revokes each target, answering the session IDs actually
revoked by this call.

Request:
  - Body: revokeRequest (UserID, Kind, SessionID?, ExcludedSessionIDs?, Note?)

Response:
  - 200: revokeResponse: Revoked session IDs and count
  - 400: ErrInvalidJSON: Bad input or validation failure
*/
func (handler *Handler) revoke(writer http.ResponseWriter, request *http.Request) {
	var input revokeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(fieldUserID, input.UserID).
		Required(fieldKind, input.Kind).
		OneOf(fieldKind, input.Kind,
			string(RevokeOne), string(RevokeAll), string(RevokeAllExcept)).
		Custom(fieldSessionID,
			input.Kind == string(RevokeOne) && input.SessionID == "",
			"This field is required for single-session revocation")
	if validator.HasErrors() {
		respond.Error(writer, request, validator.Err())
		return
	}

	intent := Intent{
		UserID:    input.UserID,
		Kind:      RevocationKind(input.Kind),
		SessionID: input.SessionID,
		Excluded:  input.ExcludedSessionIDs,
		Note:      input.Note,
	}

	revoked, err := handler.bundle.Revocations.Revoke(request.Context(), intent)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, revokeResponse{RevokedSessionIDs: revoked, Count: len(revoked)})
}

/*
listRevocations lists a user's revocation records.

GET /api/v1/users/{userID}/revocations

Response:
  - 200: []RevocationRecord: Possibly empty list
*/
func (handler *Handler) listRevocations(writer http.ResponseWriter, request *http.Request) {
	userID := requestutil.Param(request, "userID")

	records, err := handler.bundle.Revocations.RevokedSessionsByUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, records)
}

/*
cleanupRevocations purges revocation records older than the retention window.

POST /api/v1/revocations/cleanup

Description: Pages through the store in bounded batches; without a durable
store there is nothing to purge and the answer is zero.

Request:
  - Body: cleanupRequest (RetentionDays, must be > 0)

Response:
  - 200: cleanupResponse: Number of purged records
  - 400: ErrInvalidJSON: Non-positive retention
*/
func (handler *Handler) cleanupRevocations(writer http.ResponseWriter, request *http.Request) {
	var input cleanupRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Custom(fieldRetentionDays, input.RetentionDays <= 0,
		"Must be a positive number of days, got "+strconv.Itoa(input.RetentionDays))
	if validator.HasErrors() {
		respond.Error(writer, request, validator.Err())
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -input.RetentionDays)
	purged, err := handler.bundle.Revocations.DeleteRevocationsOlderThan(request.Context(), cutoff)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, cleanupResponse{Purged: purged})
}
