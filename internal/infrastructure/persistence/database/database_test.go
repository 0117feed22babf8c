package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	client := NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))
	return client
}

func TestNewClientSQLiteMemory(t *testing.T) {
	client, err := NewClient(&config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		LogLevel: "silent",
		SQLite:   config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "sqlite", client.Driver())
	require.NoError(t, client.AutoMigrate(context.Background()))
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestNewClientRejectsUnknownDriver(t *testing.T) {
	_, err := NewClient(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestStoryJobTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryJobRepository(newTestClient(t))

	require.NoError(t, repo.Create(ctx, entity.NewStoryJob("job-1", "sess", "space")))

	now := time.Now()

	ok, err := repo.MarkCompleted(ctx, "job-1", 7, now)
	require.NoError(t, err)
	assert.False(t, ok, "pending cannot jump to completed")

	ok, err = repo.MarkProcessing(ctx, "job-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkProcessing(ctx, "job-1", now)
	require.NoError(t, err)
	assert.False(t, ok, "processing twice is rejected")

	ok, err = repo.MarkCompleted(ctx, "job-1", 7, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkError(ctx, "job-1", "late failure", now)
	require.NoError(t, err)
	assert.False(t, ok, "terminal state is final")

	job, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	require.NotNil(t, job.StoryID)
	assert.Equal(t, int64(7), *job.StoryID)
	assert.Nil(t, job.Error)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
}

func TestStoryJobMarkErrorFromPending(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryJobRepository(newTestClient(t))
	require.NoError(t, repo.Create(ctx, entity.NewStoryJob("job-2", "sess", "forest")))

	ok, err := repo.MarkError(ctx, "job-2", "queue full", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	job, err := repo.GetByID(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusError, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "queue full", *job.Error)
	assert.Nil(t, job.StoryID)

	ok, err = repo.MarkProcessing(ctx, "job-2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoryJobRepoFollowsCanTransitionTo(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryJobRepository(newTestClient(t))
	now := time.Now()

	all := []entity.JobStatus{entity.JobStatusPending, entity.JobStatusProcessing, entity.JobStatusCompleted, entity.JobStatusError}
	mark := map[entity.JobStatus]func(jobID string) (bool, error){
		entity.JobStatusProcessing: func(id string) (bool, error) { return repo.MarkProcessing(ctx, id, now) },
		entity.JobStatusCompleted:  func(id string) (bool, error) { return repo.MarkCompleted(ctx, id, 1, now) },
		entity.JobStatusError:      func(id string) (bool, error) { return repo.MarkError(ctx, id, "boom", now) },
	}

	for _, from := range all {
		for to, fn := range mark {
			jobID := string(from) + "-" + string(to)
			job := entity.NewStoryJob(jobID, "sess", "sea")
			job.Status = from
			require.NoError(t, repo.Create(ctx, job))

			ok, err := fn(jobID)
			require.NoError(t, err)
			assert.Equal(t, from.CanTransitionTo(to), ok, "%s -> %s", from, to)

			got, err := repo.GetByID(ctx, jobID)
			require.NoError(t, err)
			if ok {
				assert.Equal(t, to, got.Status)
			} else {
				assert.Equal(t, from, got.Status)
			}
		}
	}
}

func TestStoryJobGetByIDMissing(t *testing.T) {
	job, err := NewStoryJobRepository(newTestClient(t)).GetByID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestStoryJobListings(t *testing.T) {
	ctx := context.Background()
	repo := NewStoryJobRepository(newTestClient(t))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, entity.NewStoryJob(id, "sess", "theme")))
	}
	old := time.Now().Add(-time.Hour)
	_, err := repo.MarkProcessing(ctx, "a", old)
	require.NoError(t, err)
	_, err = repo.MarkProcessing(ctx, "b", time.Now())
	require.NoError(t, err)

	pending, err := repo.ListByStatus(ctx, entity.JobStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c", pending[0].JobID)

	stale, err := repo.ListStaleProcessing(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "a", stale[0].JobID)
}

func TestStoryNodeOptionsKeepOrder(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	stories := NewStoryRepository(client)
	nodes := NewStoryNodeRepository(client)

	story := entity.NewStory("Tale", "sess")
	require.NoError(t, stories.Create(ctx, story))
	require.NotZero(t, story.ID)

	root := entity.NewStoryNode(story.ID, "start", true, false, false)
	require.NoError(t, nodes.Create(ctx, root))
	require.NotZero(t, root.ID)

	opts := []entity.StoryOption{{Text: "left", NodeID: 3}, {Text: "right", NodeID: 2}, {Text: "up", NodeID: 9}}
	require.NoError(t, nodes.UpdateOptions(ctx, root.ID, opts))
	assert.Error(t, nodes.UpdateOptions(ctx, 9999, opts))

	list, err := nodes.ListByStory(ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, opts, list[0].OptionList())
	assert.True(t, list[0].IsRoot)

	got, err := stories.GetByID(ctx, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tale", got.Title)

	missing, err := stories.GetByID(ctx, 99999)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTransactionRollbackDiscardsNodes(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	tx := NewTxManager(client)
	stories := NewStoryRepository(client)
	nodes := NewStoryNodeRepository(client)

	var storyID int64
	boom := errors.New("boom")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		story := entity.NewStory("Doomed", "sess")
		if err := stories.Create(ctx, story); err != nil {
			return err
		}
		storyID = story.ID
		if err := nodes.Create(ctx, entity.NewStoryNode(story.ID, "root", true, true, true)); err != nil {
			return err
		}
		// 嵌套调用复用外层事务
		return tx.WithTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	got, err := stories.GetByID(ctx, storyID)
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := nodes.ListByStory(ctx, storyID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	stories := NewStoryRepository(client)

	var id int64
	require.NoError(t, NewTxManager(client).WithTransaction(ctx, func(ctx context.Context) error {
		s := entity.NewStory("Kept", "sess")
		if err := stories.Create(ctx, s); err != nil {
			return err
		}
		id = s.ID
		return nil
	}))

	got, err := stories.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kept", got.Title)
}
