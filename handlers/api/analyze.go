package api

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"clipsight/errors"
	"clipsight/models"
	"clipsight/validation"

	"github.com/sirupsen/logrus"
)

// AnalysisService is the pipeline surface the HTTP layer drives.
type AnalysisService interface {
	StartJob(video *models.SourceVideo, apiKey string) (*models.Job, error)
	Job(id string) (*models.Job, error)
}

type AnalyzeHandler struct {
	service    AnalysisService
	validator  *validation.Validator
	defaultKey string
	maxBytes   int64
	logger     *logrus.Logger
}

func NewAnalyzeHandler(
	service AnalysisService,
	validator *validation.Validator,
	defaultKey string,
	maxBytes int64,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:    service,
		validator:  validator,
		defaultKey: defaultKey,
		maxBytes:   maxBytes,
		logger:     logrus.StandardLogger(),
	}
}

// HandleCreateAnalysis handles POST /api/v1/analyze
func (h *AnalyzeHandler) HandleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "AnalyzeHandler.HandleCreateAnalysis"
	logger := h.logger.WithContext(r.Context())

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		AllowedMethods: []string{http.MethodPost},
	}); err != nil {
		respondError(w, r, err)
		return
	}

	// Stop reading oversized uploads at the socket instead of spooling
	// them to disk; the slack covers multipart framing and form fields.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		logger.WithError(err).Error("Failed to parse multipart form")
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondError(w, r, errors.Precondition(op, err, fmt.Sprintf(
				"Upload exceeds the maximum supported size of %d bytes", h.maxBytes,
			)))
			return
		}
		respondError(w, r, errors.Precondition(op, err, "Failed to parse upload form"))
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, r, errors.Precondition(op, err, "A video file is required"))
		return
	}
	defer file.Close()

	// The credential provider decision: a per-request key wins over the
	// configured default. The pipeline itself treats absence as fatal.
	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		apiKey = h.defaultKey
	}

	video := &models.SourceVideo{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
	}

	// Buffer the bytes only once the declared size is within bounds; an
	// oversized file is rejected by the pipeline without being read.
	if header.Size > 0 && header.Size <= h.maxBytes {
		data, err := io.ReadAll(file)
		if err != nil {
			logger.WithError(err).Error("Failed to read uploaded video")
			respondError(w, r, errors.Internal(op, err, "Failed to read uploaded video"))
			return
		}
		video.Data = data
	}

	logger.WithFields(logrus.Fields{
		"filename": video.Filename,
		"size":     video.Size,
	}).Info("Received analysis request")

	job, err := h.service.StartJob(video, apiKey)
	if err != nil {
		logger.WithError(err).Error("Failed to start analysis")
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusAccepted, models.NewJobResponse(job))
}

// HandleGetStatus handles GET /api/v1/analyze/status/{id}
func (h *AnalyzeHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "AnalyzeHandler.HandleGetStatus"
	logger := h.logger.WithContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, errors.Precondition(op, nil, "ID is required"))
		return
	}

	job, err := h.service.Job(id)
	if err != nil {
		logger.WithError(err).Error("Failed to get analysis status")
		respondError(w, r, err)
		return
	}

	// The status projection never carries the result body.
	response := models.NewJobResponse(job)
	response.Result = nil

	respondJSON(w, r, http.StatusOK, response)
}

// HandleGetResult handles GET /api/v1/analyze/result/{id}
func (h *AnalyzeHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "AnalyzeHandler.HandleGetResult"
	logger := h.logger.WithContext(r.Context())

	id := r.PathValue("id")
	if id == "" {
		respondError(w, r, errors.Precondition(op, nil, "ID is required"))
		return
	}

	job, err := h.service.Job(id)
	if err != nil {
		logger.WithError(err).Error("Failed to get analysis result")
		respondError(w, r, err)
		return
	}

	if !job.Phase.Terminal() {
		respondError(w, r, errors.Conflict(op, nil, "Analysis is not finished"))
		return
	}

	respondJSON(w, r, http.StatusOK, models.NewJobResponse(job))
}
