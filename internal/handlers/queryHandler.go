package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/akolanti/HybridRAG/internal/adapter/utils"
	"github.com/akolanti/HybridRAG/internal/api"
	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
)

const healthCheckTimeout = 2 * time.Second

// SearchHandler godoc
// @Summary      Hybrid documentation search
// @Description  Rewrites the query, runs vector and keyword search, fuses the rankings and attaches the session's recent conversation.
// @Tags         Search
// @Accept       json
// @Produce      json
// @Param        request  body      api.SearchRequest   true  "Query and optional session id"
// @Success      200      {object}  rag.SearchResponse  "Ranked results"
// @Failure      400      {object}  api.JobResponse     "Empty query"
// @Failure      502      {object}  api.JobResponse     "Query embedding failed"
// @Failure      503      {object}  api.JobResponse     "Vector index unavailable"
// @Security     BearerAuth
// @Router       /search [post]
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	var req api.SearchRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	resp, err := handlerInstance.search.Search(r.Context(), req.Query, req.SessionID)
	if err != nil {
		logRH.WithTrace(r.Context()).Warn("search failed", "error", err)
		writeTypedError(w, req.SessionID, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, resp)
}

// ListSessionsHandler godoc
// @Summary      Session statistics
// @Description  Active session ids with message, eviction and expiry counters.
// @Tags         Sessions
// @Produce      json
// @Success      200  {object}  api.SessionsResponse
// @Security     BearerAuth
// @Router       /sessions [get]
func ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	ids, err := handlerInstance.sessions.ActiveSessions(r.Context())
	if err != nil {
		writeTypedError(w, "", err)
		return
	}
	stats, err := handlerInstance.sessions.Stats(r.Context())
	if err != nil {
		writeTypedError(w, "", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJsonResponse(w, http.StatusOK, api.SessionsResponse{Stats: stats, Sessions: ids})
}

// GetSessionHandler godoc
// @Summary      Session detail
// @Tags         Sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  api.SessionResponse
// @Failure      404  {object}  api.JobResponse  "Unknown or expired session"
// @Security     BearerAuth
// @Router       /sessions/{id} [get]
func GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	info, found, err := handlerInstance.sessions.Info(r.Context(), id)
	if err != nil {
		writeTypedError(w, id, err)
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, id, "Session not found")
		return
	}
	messages, err := handlerInstance.sessions.ContextFor(r.Context(), id, handlerInstance.settings.SessionMaxMessages/2)
	if err != nil {
		writeTypedError(w, id, err)
		return
	}
	if messages == nil {
		messages = []sessionModel.Message{}
	}
	writeJsonResponse(w, http.StatusOK, api.SessionResponse{Info: info, Messages: messages})
}

// DeleteSessionHandler godoc
// @Summary      Forget a session
// @Tags         Sessions
// @Param        id   path      string  true  "Session ID"
// @Success      204
// @Failure      404  {object}  api.JobResponse  "Unknown or expired session"
// @Security     BearerAuth
// @Router       /sessions/{id} [delete]
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	id := utils.GetChiURLParam(r, "id")
	_, found, err := handlerInstance.sessions.Info(r.Context(), id)
	if err != nil {
		writeTypedError(w, id, err)
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, id, "Session not found")
		return
	}
	if err := handlerInstance.sessions.Clear(r.Context(), id); err != nil {
		writeTypedError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettingsHandler godoc
// @Summary      Effective settings
// @Description  The loaded configuration without secrets, plus advisory warnings.
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  api.SettingsResponse
// @Security     BearerAuth
// @Router       /settings [get]
func GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	s := handlerInstance.settings
	warnings := s.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	writeJsonResponse(w, http.StatusOK, api.SettingsResponse{Settings: s, Warnings: warnings})
}

// HealthHandler godoc
// @Summary      Liveness and dependency health
// @Tags         Operations
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Failure      503  {object}  api.HealthResponse
// @Router       /healthz [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if handlerInstance == nil {
		writeJsonResponse(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "starting", Checks: map[string]string{}})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	res := api.HealthResponse{Status: "ok", Checks: map[string]string{}}
	if handlerInstance.service != nil {
		res.QueueDepth = handlerInstance.service.QueueDepth()
	}
	code := http.StatusOK
	for name, check := range handlerInstance.checks {
		if err := check(ctx); err != nil {
			logRH.Warn("health check failed", "dependency", name, "error", err)
			res.Checks[name] = err.Error()
			res.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "ok"
	}
	writeJsonResponse(w, code, res)
}
