package story

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-story-api/internal/domain/entity"
	apperrors "adventure-story-api/pkg/errors"
)

func TestJobStore_CreateAndGet(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job := createJob(t, e, "space")
	_, err := uuid.Parse(job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, job.Status)

	got, err := e.jobs.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, "space", got.Theme)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Nil(t, got.StoryID)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.CompletedAt)

	other := createJob(t, e, "space")
	assert.NotEqual(t, job.JobID, other.JobID)
}

func TestJobStore_GetUnknown(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.jobs.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeJobNotFound))
	assert.Equal(t, 404, apperrors.AsAppError(err).HTTPStatus)
}

func TestJobStore_Transitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	job := createJob(t, e, "space")

	assert.ErrorIs(t, e.jobs.MarkCompleted(ctx, job.JobID, 1), ErrInvalidTransition, "pending cannot complete")

	require.NoError(t, e.jobs.MarkProcessing(ctx, job.JobID))
	assert.ErrorIs(t, e.jobs.MarkProcessing(ctx, job.JobID), ErrInvalidTransition)

	require.NoError(t, e.jobs.MarkCompleted(ctx, job.JobID, 42))
	got, err := e.jobs.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, got.Status)
	require.NotNil(t, got.StoryID)
	assert.Equal(t, int64(42), *got.StoryID)
	assert.NotNil(t, got.CompletedAt)

	// 终态不可再迁移
	assert.ErrorIs(t, e.jobs.MarkError(ctx, job.JobID, "late"), ErrInvalidTransition)
	assert.True(t, apperrors.HasCode(e.jobs.MarkProcessing(ctx, job.JobID), apperrors.CodeConflict))
}

func TestJobStore_MarkErrorFromPending(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	job := createJob(t, e, "space")

	require.NoError(t, e.jobs.MarkError(ctx, job.JobID, "queue full"))
	got, err := e.jobs.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusError, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "queue full", *got.Error)
	assert.Nil(t, got.StoryID)
}
