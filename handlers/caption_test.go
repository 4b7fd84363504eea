package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"imageCaptioner/dto"
	"imageCaptioner/models"
	"imageCaptioner/staging"
	"imageCaptioner/store"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}

type mockTaskService struct {
	submitFunc func(ctx context.Context, files []*staging.StagedFile) (string, error)
	statusFunc func(ctx context.Context, taskID string) (*dto.AsyncTaskStatus, error)
}

func (m *mockTaskService) SubmitBatch(ctx context.Context, files []*staging.StagedFile) (string, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, files)
	}
	return "20250101000000-" + uuid.New().String()[:8], nil
}

func (m *mockTaskService) TaskStatus(ctx context.Context, taskID string) (*dto.AsyncTaskStatus, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, taskID)
	}
	return &dto.AsyncTaskStatus{
		TaskID: taskID,
		Status: models.StatusCompleted,
		Result: []models.ImageResult{},
	}, nil
}

type mockProcessor struct {
	processFunc func(ctx context.Context, file *staging.StagedFile) models.ImageResult
}

func (m *mockProcessor) Process(ctx context.Context, file *staging.StagedFile) models.ImageResult {
	if m.processFunc != nil {
		return m.processFunc(ctx, file)
	}
	return models.ImageResult{
		ImagePath: file.OriginalName,
		Caption:   "a red dress in a garden",
		Tags:      []string{"red dress", "dress", "garden"},
	}
}

func newTestHandler(t *testing.T, service TaskService, processor Processor) *CaptionHandler {
	t.Helper()
	logger := zaptest.NewLogger(t)
	stager, err := staging.NewStager(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewStager failed: %v", err)
	}
	return NewCaptionHandler(service, processor, stager, 20*1024*1024, logger)
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestCaptionHandler_Caption_Success(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "image", map[string][]byte{"dress.jpg": jpegBytes})
	req := httptest.NewRequest("POST", "/caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Caption(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.CaptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Filename != "dress.jpg" {
		t.Errorf("Expected filename dress.jpg, got %s", resp.Filename)
	}
	if resp.Caption != "a red dress in a garden" {
		t.Errorf("Unexpected caption: %s", resp.Caption)
	}
	if len(resp.Tags) != 3 {
		t.Errorf("Expected 3 tags, got %v", resp.Tags)
	}
}

func TestCaptionHandler_Caption_MissingFile(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	req := httptest.NewRequest("POST", "/caption", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data")
	rec := httptest.NewRecorder()

	handler.Caption(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCaptionHandler_Caption_NotAnImage(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "image", map[string][]byte{"notes.txt": []byte("plain text")})
	req := httptest.NewRequest("POST", "/caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Caption(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if resp.Detail == "" {
		t.Error("Expected non-empty detail")
	}
}

func TestCaptionHandler_BatchCaption(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"a.jpg": jpegBytes,
		"b.jpg": jpegBytes,
	})
	req := httptest.NewRequest("POST", "/batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.BatchCaption(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.BatchCaptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(resp.Results))
	}
}

func TestCaptionHandler_BatchCaption_MixedValidity(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"good.jpg": jpegBytes,
		"bad.txt":  []byte("not an image"),
	})
	req := httptest.NewRequest("POST", "/batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.BatchCaption(rec, req)

	// Partial failure is still a 200 with per-item errors.
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp dto.BatchCaptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Results))
	}

	failures := 0
	for _, result := range resp.Results {
		if result.Error != "" {
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("Expected exactly 1 per-item error, got %d", failures)
	}
}

func TestCaptionHandler_BatchCaption_NoFiles(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "images", nil)
	req := httptest.NewRequest("POST", "/batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.BatchCaption(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCaptionHandler_AsyncBatchCaption(t *testing.T) {
	var submitted []*staging.StagedFile
	service := &mockTaskService{
		submitFunc: func(ctx context.Context, files []*staging.StagedFile) (string, error) {
			submitted = files
			return "20250101000000-abcd1234", nil
		},
	}
	handler := newTestHandler(t, service, &mockProcessor{})

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"a.jpg": jpegBytes,
		"b.jpg": jpegBytes,
	})
	req := httptest.NewRequest("POST", "/async-batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AsyncBatchCaption(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AsyncBatchCaptionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TaskID != "20250101000000-abcd1234" {
		t.Errorf("Unexpected task id: %s", resp.TaskID)
	}
	if !strings.Contains(resp.Message, "2 image(s) scheduled") {
		t.Errorf("Unexpected message: %q", resp.Message)
	}
	if len(submitted) != 2 {
		t.Errorf("Expected 2 staged files submitted, got %d", len(submitted))
	}
}

func TestCaptionHandler_AsyncBatchCaption_NoValidFiles(t *testing.T) {
	created := false
	service := &mockTaskService{
		submitFunc: func(ctx context.Context, files []*staging.StagedFile) (string, error) {
			created = true
			return "", nil
		},
	}
	handler := newTestHandler(t, service, &mockProcessor{})

	body, contentType := multipartBody(t, "images", map[string][]byte{"bad.txt": []byte("nope")})
	req := httptest.NewRequest("POST", "/async-batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AsyncBatchCaption(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
	if created {
		t.Error("No task may be created when every file is rejected")
	}
}

func TestCaptionHandler_AsyncBatchCaption_EmptySubmission(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	body, contentType := multipartBody(t, "images", nil)
	req := httptest.NewRequest("POST", "/async-batch-caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.AsyncBatchCaption(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCaptionHandler_Status_Success(t *testing.T) {
	taskID := "20250101000000-abcd1234"
	service := &mockTaskService{
		statusFunc: func(ctx context.Context, id string) (*dto.AsyncTaskStatus, error) {
			return &dto.AsyncTaskStatus{
				TaskID:  id,
				Status:  models.StatusProcessing,
				Message: "Processing 3 images.",
				Result: []models.ImageResult{
					{ImagePath: "a.jpg", Caption: "a dog"},
				},
			}, nil
		},
	}
	handler := newTestHandler(t, service, &mockProcessor{})

	req := httptest.NewRequest("GET", "/async-batch-caption/status/"+taskID, nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp dto.AsyncTaskStatus
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.TaskID != taskID {
		t.Errorf("Expected task id %s, got %s", taskID, resp.TaskID)
	}
	if resp.Status != models.StatusProcessing {
		t.Errorf("Expected PROCESSING, got %s", resp.Status)
	}
	if len(resp.Result) != 1 {
		t.Errorf("Expected 1 partial result, got %d", len(resp.Result))
	}
}

func TestCaptionHandler_Status_NotFound(t *testing.T) {
	service := &mockTaskService{
		statusFunc: func(ctx context.Context, id string) (*dto.AsyncTaskStatus, error) {
			return nil, store.ErrTaskNotFound
		},
	}
	handler := newTestHandler(t, service, &mockProcessor{})

	req := httptest.NewRequest("GET", "/async-batch-caption/status/missing", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}

	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	if resp.Detail == "" {
		t.Error("Expected non-empty detail")
	}
}

func TestCaptionHandler_Status_EmptyTaskID(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	req := httptest.NewRequest("GET", "/async-batch-caption/status/", nil)
	rec := httptest.NewRecorder()

	handler.Status(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestCaptionHandler_Health(t *testing.T) {
	handler := newTestHandler(t, &mockTaskService{}, &mockProcessor{})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp dto.HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected status healthy, got %s", resp.Status)
	}
}
