package dto

import "imageCaptioner/models"

type CaptionResponse struct {
	Filename       string   `json:"filename"`
	Caption        string   `json:"caption"`
	Tags           []string `json:"tags"`
	ProcessingTime float64  `json:"processing_time"`
}

type BatchCaptionResponse struct {
	Results             []models.ImageResult `json:"results"`
	TotalProcessingTime float64              `json:"total_processing_time"`
}

type AsyncBatchCaptionResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

type AsyncTaskStatus struct {
	TaskID  string               `json:"task_id"`
	Status  models.TaskStatus    `json:"status"`
	Message string               `json:"message,omitempty"`
	Result  []models.ImageResult `json:"result"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
