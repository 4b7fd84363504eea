package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"imageCaptioner/dto"
	"imageCaptioner/jobs"
	"imageCaptioner/middleware"
	"imageCaptioner/models"
	"imageCaptioner/staging"
	"imageCaptioner/store"
	"imageCaptioner/validation"
)

const maxMultipartMemory = 32 << 20

// TaskService is the async-batch orchestration the handler drives.
type TaskService interface {
	SubmitBatch(ctx context.Context, files []*staging.StagedFile) (string, error)
	TaskStatus(ctx context.Context, taskID string) (*dto.AsyncTaskStatus, error)
}

// Processor runs the caption pipeline for the synchronous endpoints.
type Processor interface {
	Process(ctx context.Context, file *staging.StagedFile) models.ImageResult
}

type CaptionHandler struct {
	service     TaskService
	processor   Processor
	stager      *staging.Stager
	maxFileSize int64
	logger      *zap.Logger
}

func NewCaptionHandler(service TaskService, processor Processor, stager *staging.Stager, maxFileSize int64, logger *zap.Logger) *CaptionHandler {
	return &CaptionHandler{
		service:     service,
		processor:   processor,
		stager:      stager,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

func (h *CaptionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/caption", h.Caption)
	mux.HandleFunc("/batch-caption", h.BatchCaption)
	mux.HandleFunc("/async-batch-caption", h.AsyncBatchCaption)
	mux.HandleFunc("/async-batch-caption/status/", h.Status)
}

func (h *CaptionHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, dto.HealthResponse{Status: "healthy"})
}

// Caption generates a caption and tags for a single uploaded image.
func (h *CaptionHandler) Caption(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	traceID := middleware.GetTraceID(r.Context())

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.handleError(w, "Missing image file", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	staged, err := h.validateAndStage(file, header)
	if err != nil {
		h.handleError(w, err.Error(), err, traceID, validationStatus(err))
		return
	}
	defer h.stager.Remove(staged)

	result := h.processor.Process(r.Context(), staged)
	if result.Error != "" {
		h.handleError(w, result.Error, nil, traceID, http.StatusInternalServerError)
		return
	}

	tags := result.Tags
	if tags == nil {
		tags = []string{}
	}

	h.respondJSON(w, http.StatusOK, dto.CaptionResponse{
		Filename:       staged.OriginalName,
		Caption:        result.Caption,
		Tags:           tags,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

// BatchCaption processes all uploaded images inline, sequentially, and
// returns the per-item results directly. Partial failure is a 200: each
// failed item carries its own error field.
func (h *CaptionHandler) BatchCaption(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	traceID := middleware.GetTraceID(r.Context())

	files, ok := h.multipartImages(w, r, traceID)
	if !ok {
		return
	}

	var staged []*staging.StagedFile
	defer func() { h.stager.RemoveAll(staged) }()

	results := make([]models.ImageResult, 0, len(files))
	for _, header := range files {
		stagedFile, err := h.openAndStage(header)
		if err != nil {
			results = append(results, models.ImageResult{
				ImagePath: sanitizeName(header.Filename),
				Error:     err.Error(),
			})
			continue
		}
		staged = append(staged, stagedFile)
		results = append(results, h.processor.Process(r.Context(), stagedFile))
	}

	h.respondJSON(w, http.StatusOK, dto.BatchCaptionResponse{
		Results:             results,
		TotalProcessingTime: time.Since(start).Seconds(),
	})
}

// AsyncBatchCaption stages every valid upload within the request, creates a
// task, and schedules the background run. The response is an immediate 202
// acknowledgement carrying the task id.
func (h *CaptionHandler) AsyncBatchCaption(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	files, ok := h.multipartImages(w, r, traceID)
	if !ok {
		return
	}

	var staged []*staging.StagedFile
	rejected := 0
	for _, header := range files {
		stagedFile, err := h.openAndStage(header)
		if err != nil {
			rejected++
			h.logger.Warn("Rejected file for async batch",
				zap.String("trace_id", traceID),
				zap.String("filename", header.Filename),
				zap.Error(err),
			)
			continue
		}
		staged = append(staged, stagedFile)
	}

	if len(staged) == 0 {
		h.handleError(w, "No valid image files provided", nil, traceID, http.StatusBadRequest)
		return
	}

	taskID, err := h.service.SubmitBatch(r.Context(), staged)
	if err != nil {
		h.stager.RemoveAll(staged)
		if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
			h.handleError(w, "Server is busy, try again later", err, traceID, http.StatusServiceUnavailable)
			return
		}
		h.handleError(w, "Failed to create task", err, traceID, http.StatusInternalServerError)
		return
	}

	message := fmt.Sprintf("%d image(s) scheduled for background captioning.", len(staged))
	if rejected > 0 {
		message += fmt.Sprintf(" %d file(s) were rejected.", rejected)
	}

	h.respondJSON(w, http.StatusAccepted, dto.AsyncBatchCaptionResponse{
		Message: message,
		TaskID:  taskID,
	})
}

// Status reports the current state of an async batch task, including any
// partial results produced so far.
func (h *CaptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := strings.TrimPrefix(r.URL.Path, "/async-batch-caption/status/")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	status, err := h.service.TaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, status)
}

// multipartImages parses the form and returns the repeated "images" field.
// An empty submission is rejected before any task or staging work happens.
func (h *CaptionHandler) multipartImages(w http.ResponseWriter, r *http.Request, traceID string) ([]*multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return nil, false
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["images"]) == 0 {
		h.handleError(w, "No image files provided", nil, traceID, http.StatusBadRequest)
		return nil, false
	}

	return r.MultipartForm.File["images"], true
}

func (h *CaptionHandler) openAndStage(header *multipart.FileHeader) (*staging.StagedFile, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	return h.validateAndStage(file, header)
}

func (h *CaptionHandler) validateAndStage(file multipart.File, header *multipart.FileHeader) (*staging.StagedFile, error) {
	if header.Size > h.maxFileSize {
		return nil, validation.ErrFileTooLarge
	}

	if _, err := validation.DetectImageType(file); err != nil {
		return nil, err
	}

	return h.stager.Stage(file, header.Filename)
}

func validationStatus(err error) int {
	switch {
	case errors.Is(err, validation.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, validation.ErrNotAnImage),
		errors.Is(err, validation.ErrEmptyUpload),
		errors.Is(err, staging.ErrEmptyFile):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeName(filename string) string {
	if filename == "" {
		return "unknown_file"
	}
	if idx := strings.LastIndexAny(filename, `/\`); idx >= 0 {
		filename = filename[idx+1:]
	}
	return filename
}

func (h *CaptionHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{Detail: message})
}

func (h *CaptionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
