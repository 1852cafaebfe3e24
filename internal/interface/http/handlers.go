// Package http implements the REST API and presence WebSocket endpoint
// for the DeoGlory study engine.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/deoglory/study-engine/internal/application/command"
	"github.com/deoglory/study-engine/internal/application/query"
	"github.com/deoglory/study-engine/internal/domain/shared"
	"github.com/deoglory/study-engine/internal/domain/study"
	"github.com/deoglory/study-engine/pkg/logger"
)

// maxBodySize caps request bodies. Unit and practice payloads are tiny.
const maxBodySize = 64 * 1024

// ══════════════════════════════════════════════════════════════════════════════
// IDENTITY
// ══════════════════════════════════════════════════════════════════════════════

// userIDHeader carries the authenticated user set by the upstream auth layer.
const userIDHeader = "X-User-ID"

// requireUser extracts the authenticated user from the request headers.
// A missing or malformed header fails the request with 401.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (shared.UserID, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "X-User-ID header is required")
		return "", false
	}

	userID, err := shared.NewUserID(raw)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "X-User-ID header is invalid")
		return "", false
	}

	return userID, true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "DeoGlory Study Engine API",
		"version":     "v1",
		"description": "Study progression, practice and leaderboard engine for the DeoGlory community",
		"endpoints": map[string]string{
			"health":      "/health",
			"progress":    "/api/v1/progress/me",
			"leaderboard": "/api/v1/leaderboard",
			"seasons":     "/api/v1/seasons",
			"online":      "/api/v1/online",
			"presence_ws": "/ws/presence",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics exposes basic server metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// completeUnitRequest is the body of POST .../units/complete.
type completeUnitRequest struct {
	Stage     string `json:"stage"`
	UnitIndex int    `json:"unit_index"`
}

// handleCompleteUnit handles POST /api/v1/weeks/{weekId}/lessons/{lessonId}/units/complete
func (s *Server) handleCompleteUnit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req completeUnitRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	stageType, err := study.ParseStageType(req.Stage)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Unknown stage type")
		return
	}

	cmd := command.CompleteUnitCommand{
		UserID:        userID,
		WeekID:        shared.WeekID(r.PathValue("weekId")),
		LessonID:      shared.LessonID(r.PathValue("lessonId")),
		StageType:     stageType,
		UnitIndex:     req.UnitIndex,
		Timestamp:     time.Now(),
		CorrelationID: requestIDFrom(r.Context()),
	}

	result, err := s.deps.CompleteUnitHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to complete unit")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetLearningPath handles GET /api/v1/weeks/{weekId}/path
func (s *Server) handleGetLearningPath(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetLearningPathQuery{
		UserID: userID,
		WeekID: shared.WeekID(r.PathValue("weekId")),
	}

	result, err := s.deps.GetLearningPathHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get learning path")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetMyProgress handles GET /api/v1/progress/me
func (s *Server) handleGetMyProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetUserProgressHandler.Handle(r.Context(), query.GetUserProgressQuery{UserID: userID})
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleStartPractice handles POST /api/v1/practice/{weekId}/start
func (s *Server) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	cmd := command.StartPracticeCommand{
		UserID:        userID,
		WeekID:        shared.WeekID(r.PathValue("weekId")),
		CorrelationID: requestIDFrom(r.Context()),
	}

	result, err := s.deps.StartPracticeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to start practice")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// completePracticeRequest is the body of POST /api/v1/practice/{weekId}/complete.
type completePracticeRequest struct {
	CorrectAnswers   int `json:"correct_answers"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
}

// handleCompletePractice handles POST /api/v1/practice/{weekId}/complete
func (s *Server) handleCompletePractice(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req completePracticeRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.CompletePracticeCommand{
		UserID:           userID,
		WeekID:           shared.WeekID(r.PathValue("weekId")),
		CorrectAnswers:   req.CorrectAnswers,
		TimeSpentSeconds: req.TimeSpentSeconds,
		CorrelationID:    requestIDFrom(r.Context()),
	}

	result, err := s.deps.CompletePracticeHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to complete practice")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetPracticeStatus handles GET /api/v1/practice/{weekId}/status
func (s *Server) handleGetPracticeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetPracticeStatusQuery{
		UserID: userID,
		WeekID: shared.WeekID(r.PathValue("weekId")),
	}

	result, err := s.deps.GetPracticeStatusHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get practice status")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT & LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAchievements handles GET /api/v1/achievements
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetAchievementsQuery{
		UserID: userID,
		Limit:  getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetAchievementsHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get achievements")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	q := query.GetLeaderboardQuery{
		Period:           getQueryParam(r, "period", "weekly"),
		Year:             getQueryParamInt(r, "year", 0),
		SeasonID:         getQueryParam(r, "seasonId", ""),
		Limit:            getQueryParamInt(r, "limit", 20),
		RequestingUserID: userID,
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get leaderboard")
		return
	}

	meta := &ResponseMeta{TotalCount: result.TotalCount}
	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleListSeasons handles GET /api/v1/seasons
func (s *Server) handleListSeasons(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ListSeasonsHandler.Handle(r.Context())
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to list seasons")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetOnlineNow handles GET /api/v1/online
func (s *Server) handleGetOnlineNow(w http.ResponseWriter, r *http.Request) {
	q := query.GetOnlineNowQuery{
		Limit: getQueryParamInt(r, "limit", 0),
	}

	result, err := s.deps.GetOnlineNowHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeHandlerError(w, r, err, "failed to get online users")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads and decodes a JSON request body into dst.
// Writes the error response itself and returns false on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return false
	}

	return true
}

// writeHandlerError maps a command/query error to an HTTP error response.
// Domain sentinels translate to stable client-facing codes; anything else
// is logged and reported as a 500 without leaking internals.
func (s *Server) writeHandlerError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrLocked):
		writeJSONError(w, http.StatusConflict, "locked", err.Error())
	case errors.Is(err, shared.ErrTerminalState):
		writeJSONError(w, http.StatusConflict, "already_mastered", err.Error())
	case errors.Is(err, shared.ErrAlreadyClosed):
		writeJSONError(w, http.StatusConflict, "session_closed", err.Error())
	case errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, shared.ErrStateTransition):
		writeJSONError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, shared.ErrExpired):
		writeJSONError(w, http.StatusGone, "expired", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, shared.ErrValueOutOfRange),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidID):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable), errors.Is(err, shared.ErrExternalService):
		s.logger.Error(logMsg, logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "Question service is temporarily unavailable")
	default:
		s.logger.Error(logMsg, logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
