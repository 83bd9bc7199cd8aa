package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/akolanti/HybridRAG/internal/adapter"
	"github.com/akolanti/HybridRAG/internal/adapter/utils"
	"github.com/akolanti/HybridRAG/internal/api"
	"github.com/akolanti/HybridRAG/internal/config"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
	"github.com/akolanti/HybridRAG/internal/domain/ragErrors"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are already out, nothing left to send
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func traceFrom(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func validateContext(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		logRH.WithTrace(ctx).Warn("context error", "error", err)
		return false
	}
	return handlerInstance != nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body", "error", err)
	}
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

// writeTypedError maps a ragErrors sentinel onto its status and error code.
func writeTypedError(w http.ResponseWriter, id string, err error) {
	code := ragErrors.HTTPStatus(err)
	retry := code >= http.StatusInternalServerError || errors.Is(err, context.DeadlineExceeded)
	writeJsonResponse(w, code, adapter.ErrorResponse(id, code, ragErrors.Code(err), err.Error(), retry))
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// processNewJobData queues a chat job when docPath is empty and an ingest job otherwise.
func processNewJobData(request *http.Request, w http.ResponseWriter, requestData api.ChatRequest, docName string, docPath string) {
	isChatRequest := docPath == ""

	newJob := newJobData{
		id:               utils.GetNewUUID(),
		traceId:          traceFrom(request.Context()),
		documentName:     docName,
		documentSource:   docPath,
		isDocumentIngest: !isChatRequest,
	}
	if isChatRequest {
		newJob.chatId = trimmed(requestData.ChatID)
		if newJob.chatId == "" {
			newJob.chatId = utils.GetNewUUID()
			logRH.Debug("New Chat request", config.SESSION_ID_KEY, newJob.chatId)
		}
		newJob.message = trimmed(requestData.Message)
		newJob.topics = requestData.Topics
	}

	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id, newJob.chatId))
}
