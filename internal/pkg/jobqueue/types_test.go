package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentReconcilePayloadRoundTrip(t *testing.T) {
	payload := PaymentReconcileJobPayload{TrackingID: "EDK-abc", UserID: 42}

	decoded, err := PaymentReconcileJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, "EDK-abc", decoded.TrackingID)
	assert.Equal(t, uint(42), decoded.UserID)
}

func TestJobLifecycleTransitions(t *testing.T) {
	job := &Job{
		ID:         "j1",
		Type:       JobTypePaymentReconcile,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("gateway timeout")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("gateway timeout")
	job.MarkAsFailed("gateway timeout")
	assert.Equal(t, DefaultMaxRetries, job.RetryCount)
	assert.False(t, job.IsRetryable(), "retry budget exhausted")

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}
