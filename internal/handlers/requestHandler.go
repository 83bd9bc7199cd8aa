package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/HybridRAG/internal/adapter"
	"github.com/akolanti/HybridRAG/internal/adapter/utils"
	"github.com/akolanti/HybridRAG/internal/api"
	"github.com/akolanti/HybridRAG/internal/rag/ingest"
)

type newJobData struct {
	id               string
	chatId           string
	message          string
	topics           []string
	traceId          string
	isDocumentIngest bool
	documentName     string
	documentSource   string
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Start a new chat job
// @Description  Accepts a ticket message with optional classification topics and queues it. Tickets whose topics are all outside the rag topics are routed instead of answered. An empty chat_id starts a new session.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest      true  "Message, optional chat id and topics"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data"
// @Security     BearerAuth
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	var requestData api.ChatRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateChatRequest(requestData) {
		logRH.WithTrace(request.Context()).Warn("Bad Chat Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return
	}
	processNewJobData(request, w, requestData, "", "")
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a chat or ingest job.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Current status of the job"
// @Failure      404  {object}  api.JobResponse   "Job not found"
// @Security     BearerAuth
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceFrom(r.Context()))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Upload a document for ingestion
// @Description  Receives a markdown, text, PDF or DOCX file, saves it to a temporary directory and queues an incremental ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The file to upload"
// @Success      202  {object}  api.InitJobResponse "Accepted"
// @Failure      400  {object}  api.JobResponse "Missing fields, unsupported type or file too large"
// @Failure      500  {object}  api.JobResponse "Storage or write error"
// @Security     BearerAuth
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	original := filepath.Base(fileMetadata.Filename)
	if !ingest.Supported(original) {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported file type")
		return
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), original)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}
	_, err = io.Copy(destinationFileWriter, fileReader)
	closeErr := destinationFileWriter.Close()
	if err != nil || closeErr != nil {
		_ = os.Remove(tempFilePath)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}
	processNewJobData(r, w, api.ChatRequest{}, docName, tempFilePath)
}
