package handlers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/dhima/reading-log/internal/api/middleware"
	"github.com/dhima/reading-log/internal/api/response"
	"github.com/dhima/reading-log/internal/logging"
	"github.com/dhima/reading-log/internal/models"
	"github.com/dhima/reading-log/internal/readinglog"
	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

const saveLogSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string"},
		"url": {"type": ["string", "null"]}
	}
}`

var saveLogSchemaLoader = gojsonschema.NewStringLoader(saveLogSchema)

// ReadingLogHandler handles save and history requests.
type ReadingLogHandler struct {
	logger  logging.Logger
	service *readinglog.Service
}

// NewReadingLogHandler creates a new reading log handler.
func NewReadingLogHandler(logger logging.Logger, service *readinglog.Service) *ReadingLogHandler {
	return &ReadingLogHandler{
		logger:  logger.With(zap.String("handler", "reading_log")),
		service: service,
	}
}

// SaveLog godoc
// @Summary Record what a reader is looking at
// @Description Appends the title and url to the token's history unless they equal its newest entry.
// @Tags Reading Logs
// @Accept json
// @Produce json
// @Param token query string false "Reader token (falls back to the token cookie)"
// @Param entry body models.SaveLogRequest true "Current title and url"
// @Success 200 {object} models.SaveLogResponse
// @Failure 400 {object} response.ErrorResponse "Missing token or title, or malformed body"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /save [post]
func (h *ReadingLogHandler) SaveLog(c *gin.Context) {
	req, fieldErrs, err := decodeSaveLogRequest(c)
	if err != nil {
		h.logger.Warn("invalid save request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}
	if len(fieldErrs) > 0 {
		response.ValidationErrors(c, fieldErrs)
		return
	}

	result, err := h.service.SaveLog(c.Request.Context(), middleware.GetToken(c), req.Title, req.URL)
	if h.handleServiceError(c, err, "save log") {
		return
	}

	switch result.Outcome {
	case models.SaveOutcomeSkipped:
		response.OK(c, models.SaveLogResponse{
			Status:  response.StatusSkipped,
			Message: "private title not stored",
		})
	default:
		createdAt := result.CreatedAt
		response.OK(c, models.SaveLogResponse{
			Status:    response.StatusSuccess,
			ID:        result.ID,
			CreatedAt: &createdAt,
			Duplicate: result.Outcome == models.SaveOutcomeDuplicate,
		})
	}
}

// ListLogs godoc
// @Summary List a reader's history
// @Description Returns every entry of the token, newest first. A new token is issued when none is supplied.
// @Tags Reading Logs
// @Produce json
// @Param token query string false "Reader token (falls back to the token cookie)"
// @Success 200 {object} models.ListLogsResponse
// @Failure 400 {object} response.ErrorResponse "Missing token"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /logs [get]
func (h *ReadingLogHandler) ListLogs(c *gin.Context) {
	logs, err := h.service.ListLogs(c.Request.Context(), middleware.GetToken(c))
	if h.handleServiceError(c, err, "list logs") {
		return
	}

	response.OK(c, models.ListLogsResponse{
		Status: response.StatusSuccess,
		Logs:   logs,
	})
}

// decodeSaveLogRequest validates the body shape before decoding it. An empty
// body decodes to an empty request so the service reports the missing title.
func decodeSaveLogRequest(c *gin.Context) (models.SaveLogRequest, []response.ValidationError, error) {
	var req models.SaveLogRequest

	raw, err := c.GetRawData()
	if err != nil {
		return req, nil, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return req, nil, nil
	}

	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return req, nil, err
	}

	result, err := gojsonschema.Validate(saveLogSchemaLoader, gojsonschema.NewGoLoader(payload))
	if err != nil {
		return req, nil, err
	}
	if !result.Valid() {
		fieldErrs := make([]response.ValidationError, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			fieldErrs = append(fieldErrs, response.ValidationError{
				Field:   desc.Field(),
				Message: desc.Description(),
			})
		}
		return req, fieldErrs, nil
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, nil, err
	}
	return req, nil, nil
}

func (h *ReadingLogHandler) handleServiceError(c *gin.Context, err error, operation string) bool {
	if err == nil {
		return false
	}

	var validationErr readinglog.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, validationErr.Error(), nil)
	default:
		h.logger.Error(operation+" failed",
			zap.Error(err),
			zap.Bool("schema_not_ready", errors.Is(err, readinglog.ErrSchemaNotReady)),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c)
	}
	return true
}
