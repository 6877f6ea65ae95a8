package pipeline

import (
	"encoding/json"
	"time"
)

// JobType identifies a pipeline stage job
type JobType string

const (
	JobTypeSafetyScan    JobType = "safety_scan"
	JobTypeOCR           JobType = "ocr_extract"
	JobTypeFaceDetection JobType = "face_detection"
	JobTypeTiling        JobType = "tiling"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents one queued stage run for a yearbook
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// StageJobPayload is shared by all four stages: every job processes one
// whole yearbook, pages sequentially.
type StageJobPayload struct {
	YearbookID   uint   `json:"yearbook_id"`
	YearbookUUID string `json:"yearbook_uuid"`
}

// ToMap converts the payload to a map for storage
func (p StageJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"yearbook_id":   p.YearbookID,
		"yearbook_uuid": p.YearbookUUID,
	}
}

// StageJobPayloadFromMap creates a payload from a map
func StageJobPayloadFromMap(data map[string]interface{}) (*StageJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload StageJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
