package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/HybridRAG/internal/adapter/utils"
	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/handlers"
	"github.com/akolanti/HybridRAG/internal/metrics"
	"github.com/akolanti/HybridRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

type authConfig struct {
	token    string
	disabled bool
}

var auth authConfig

// Init takes the auth settings. Until it is called every authenticated route answers 401.
func Init(s config.Settings) {
	auth = authConfig{token: s.AuthToken, disabled: s.AuthDisabled}
}

var GetHandler = Wrap(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var SearchHandler = Wrap(handlers.SearchHandler)
var ListSessionsHandler = Wrap(handlers.ListSessionsHandler)
var GetSessionHandler = Wrap(handlers.GetSessionHandler)
var DeleteSessionHandler = Wrap(handlers.DeleteSessionHandler)
var GetSettingsHandler = Wrap(handlers.GetSettingsHandler)
var HealthHandler = WrapPublic(handlers.HealthHandler)

// Wrap runs trace, auth and rate limiting before next.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, true)
}

// WrapPublic skips authentication, for probes.
func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return wrap(next, false)
}

func wrap(next http.HandlerFunc, authenticated bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := processRequest(requestResponseStruct{req: r, writer: rec}, authenticated)

		if !handleBadRequest(re) {
			metrics.HttpRequestsTotal.WithLabelValues(utils.GetRoutePattern(r), strconv.Itoa(rec.Status)).Inc()
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(utils.GetRoutePattern(re.req), strconv.Itoa(rec.Status)).Inc()
	}
}

func processRequest(re requestResponseStruct, authenticated bool) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	if authenticated {
		re = authenticate(re)
		if re.badRequest.isBadRequest {
			return re
		}
	}
	return rateLimiter(re)
}
