package story

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/infrastructure/persistence/database"
	wfmodel "adventure-story-api/internal/workflow/model"
)

type testEnv struct {
	client  *database.Client
	tx      *database.TxManager
	stories *database.StoryRepository
	nodes   *database.StoryNodeRepository
	jobRepo *database.StoryJobRepository
	jobs    *JobStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	client, err := database.NewClient(&config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		LogLevel: "silent",
		SQLite:   config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.AutoMigrate(context.Background()))

	jobRepo := database.NewStoryJobRepository(client)
	return &testEnv{
		client:  client,
		tx:      database.NewTxManager(client),
		stories: database.NewStoryRepository(client),
		nodes:   database.NewStoryNodeRepository(client),
		jobRepo: jobRepo,
		jobs:    NewJobStore(jobRepo),
	}
}

func (e *testEnv) generator(llm StoryTextGenerator, timeout time.Duration) *Generator {
	return NewGenerator(e.jobs, llm, e.tx, e.stories, NewMaterializer(e.nodes), &config.StoryConfig{GenerationTimeout: timeout})
}

func (e *testEnv) reader() *Reader {
	return NewReader(e.stories, e.nodes)
}

// fakeLLM 按调用顺序返回预设结果
type fakeLLM struct {
	mu     sync.Mutex
	fn     func(ctx context.Context, in *wfmodel.StoryGenerateInput) (*wfmodel.StoryGenerateOutput, error)
	themes []string
}

func (f *fakeLLM) Generate(ctx context.Context, in *wfmodel.StoryGenerateInput) (*wfmodel.StoryGenerateOutput, error) {
	f.mu.Lock()
	f.themes = append(f.themes, in.Theme)
	f.mu.Unlock()
	return f.fn(ctx, in)
}

func rawLLM(raw string) *fakeLLM {
	return &fakeLLM{fn: func(context.Context, *wfmodel.StoryGenerateInput) (*wfmodel.StoryGenerateOutput, error) {
		return &wfmodel.StoryGenerateOutput{Raw: raw, Meta: wfmodel.LLMUsageMeta{Provider: "fake"}}, nil
	}}
}

const spaceStory = `{
  "title": "Stars Beyond",
  "rootNode": {
    "content": "Your ship wakes you from cryosleep.",
    "isEnding": false,
    "isWinningEnding": false,
    "options": [
      {"text": "Check the bridge", "nextNode": {
        "content": "The captain is missing.",
        "isEnding": false,
        "isWinningEnding": false,
        "options": [
          {"text": "Take command", "nextNode": {"content": "You bring everyone home.", "isEnding": true, "isWinningEnding": true}},
          {"text": "Hide", "nextNode": {"content": "The ship drifts forever.", "isEnding": true, "isWinningEnding": false}}
        ]
      }},
      {"text": "Go back to sleep", "nextNode": {"content": "You never wake.", "isEnding": true, "isWinningEnding": false}}
    ]
  }
}`

func createJob(t *testing.T, e *testEnv, theme string) *entity.StoryJob {
	t.Helper()
	job, err := e.jobs.CreateJob(context.Background(), theme, "sess-1")
	require.NoError(t, err)
	return job
}

func mustPayload(t *testing.T, raw string) *StoryPayload {
	t.Helper()
	p, err := ParseStoryResponse(raw)
	require.NoError(t, err)
	return p
}
