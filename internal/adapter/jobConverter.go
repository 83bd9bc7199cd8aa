package adapter

import (
	"fmt"

	"github.com/akolanti/HybridRAG/internal/api"
	"github.com/akolanti/HybridRAG/internal/domain/jobModel"
)

func ToInitJobResponse(id string, chatId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		ChatId:    chatId,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:      job.Error.Code,
			ErrorCode: job.Error.ErrorCode,
			Message:   job.Error.Message,
			Retry:     job.Error.Retry,
		}
	}

	result := api.Result{
		Status:              string(job.Status),
		Step:                string(job.CurrentStep),
		RAGExternalResponse: ToRAGExternalStatus(job.JobPayload),
		Ingest:              toIngestResponse(job.JobPayload.IngestSummary),
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 {
		return nil
	}

	return &api.RAGResponse{
		Question: ragData.Question,
		Answer:   ragData.Answer,
		Sources:  ragData.Sources,
		Routed:   ragData.Routed,
	}
}

func toIngestResponse(s *jobModel.IngestSummary) *api.IngestResponse {
	if s == nil {
		return nil
	}
	return &api.IngestResponse{
		Documents:      s.Documents,
		Chunks:         s.Chunks,
		Indexed:        s.Indexed,
		AlreadyPresent: s.AlreadyPresent,
		Skipped:        s.Skipped,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id: id,
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}

// ErrorResponse carries the machine readable code of a typed failure.
func ErrorResponse(id string, code int, errorCode string, message string, retry bool) api.JobResponse {
	res := BadRequest(id, message, code)
	res.Error.ErrorCode = errorCode
	res.Error.Retry = retry
	return res
}
