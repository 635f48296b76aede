package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"entsoeflow/models"
	"entsoeflow/processor"
)

// Metadata is attached to every energy response.
type Metadata struct {
	Endpoint        string                 `json:"endpoint"`
	RequestParams   map[string]interface{} `json:"request_params"`
	Timestamp       string                 `json:"timestamp"`
	Timezone        string                 `json:"timezone"`
	ExecutionTimeMs float64                `json:"execution_time_ms"`
}

func (s *Server) metadata(endpoint string, params map[string]interface{}, start time.Time) Metadata {
	return Metadata{
		Endpoint:        endpoint,
		RequestParams:   params,
		Timestamp:       s.now().In(s.service.Location()).Format(time.RFC3339),
		Timezone:        s.config.App.TimeZone,
		ExecutionTimeMs: processor.Round(float64(time.Since(start).Microseconds())/1000.0, 2),
	}
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message"`
	Status    int                    `json:"status"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	ErrorID   string                 `json:"error_id"`
	Timestamp string                 `json:"timestamp"`
}

func errorBody(err error, id string, now time.Time) ErrorBody {
	body := ErrorBody{ErrorID: id, Timestamp: now.Format(time.RFC3339), Message: err.Error()}

	e, ok := models.AsError(err)
	if !ok {
		body.Error = "INTERNAL_SERVER_ERROR"
		body.Status = http.StatusInternalServerError
		return body
	}

	body.Status = e.Status
	body.Code = e.Code
	switch e.Kind {
	case models.KindServer:
		body.Error = "ENTSO-E API error"
	case models.KindValidation:
		body.Error = models.CodeValidation
		body.Details = e.Details
	default:
		body.Error = e.Code
		body.Details = e.Details
	}
	return body
}

func respondError(c *gin.Context, now time.Time, err error) {
	body := errorBody(err, requestIDOf(c), now)
	c.AbortWithStatusJSON(body.Status, body)
}
