package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageJobPayloadMapRoundTrip(t *testing.T) {
	payload := StageJobPayload{YearbookID: 42, YearbookUUID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"}

	restored, err := StageJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestJobLifecycleMarks(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("provider timeout")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "provider timeout", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("provider timeout")
	assert.True(t, job.IsRetryable())
	job.MarkAsFailed("provider timeout")
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)
}
