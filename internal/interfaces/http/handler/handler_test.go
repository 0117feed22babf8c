package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-story-api/internal/application/story"
	"adventure-story-api/internal/config"
	"adventure-story-api/internal/domain/entity"
	"adventure-story-api/internal/interfaces/http/middleware"
	apperrors "adventure-story-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	createdWith []string
	jobs        map[string]*entity.StoryJob
	stories     map[int64]*story.CompleteStory
	storyErr    error
}

func (f *fakeService) CreateStory(_ context.Context, theme, sessionID string) (*entity.StoryJob, error) {
	if strings.TrimSpace(theme) == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("theme must not be blank")
	}
	f.createdWith = append(f.createdWith, sessionID)
	job := entity.NewStoryJob("job-1", sessionID, theme)
	return job, nil
}

func (f *fakeService) GetJob(_ context.Context, jobID string) (*entity.StoryJob, error) {
	if j, ok := f.jobs[jobID]; ok {
		return j, nil
	}
	return nil, apperrors.ErrJobNotFound.WithDetail(jobID)
}

func (f *fakeService) GetCompleteStory(_ context.Context, storyID int64) (*story.CompleteStory, error) {
	if f.storyErr != nil {
		return nil, f.storyErr
	}
	if cs, ok := f.stories[storyID]; ok {
		return cs, nil
	}
	return nil, apperrors.ErrStoryNotFound
}

func newEngine(svc StoryService) *gin.Engine {
	e := gin.New()
	sh := NewStoryHandler(svc)
	jh := NewJobHandler(svc)
	e.POST("/api/story/create", middleware.Session(config.SessionCookieConfig{Name: "session_id", MaxAge: time.Hour}), sh.CreateStory)
	e.GET("/api/story/:story_id/complete", sh.GetCompleteStory)
	e.GET("/api/job/:job_id", jh.GetJob)
	return e
}

func do(e *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateStory_IssuesSessionCookie(t *testing.T) {
	svc := &fakeService{}
	e := newEngine(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/story/create", strings.NewReader(`{"theme":"space"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(e, req)

	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session_id", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)

	body := decode(t, w)
	assert.Equal(t, "job-1", body["job_id"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, cookies[0].Value, body["session_id"])
	assert.Nil(t, body["story_id"])
	assert.Nil(t, body["error"])
	assert.Contains(t, body, "completed_at")
	assert.Equal(t, []string{cookies[0].Value}, svc.createdWith)
}

func TestCreateStory_ReusesExistingSession(t *testing.T) {
	svc := &fakeService{}
	e := newEngine(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/story/create", strings.NewReader(`{"theme":"space"}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-abc"})
	w := do(e, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, []string{"sess-abc"}, svc.createdWith)
}

func TestCreateStory_RejectsBadInput(t *testing.T) {
	e := newEngine(&fakeService{})

	for _, body := range []string{``, `{}`, `{"theme":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/api/story/create", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := do(e, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
		assert.EqualValues(t, 400, decode(t, w)["code"])
	}
}

func TestGetJob(t *testing.T) {
	storyID := int64(7)
	done := entity.NewStoryJob("job-7", "s", "space")
	done.Complete(storyID, time.Now())
	e := newEngine(&fakeService{jobs: map[string]*entity.StoryJob{"job-7": done}})

	w := do(e, httptest.NewRequest(http.MethodGet, "/api/job/job-7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "completed", body["status"])
	assert.EqualValues(t, 7, body["story_id"])

	w = do(e, httptest.NewRequest(http.MethodGet, "/api/job/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetCompleteStory(t *testing.T) {
	cs := &story.CompleteStory{
		ID:        3,
		Title:     "Stars",
		SessionID: "s",
		RootNode:  story.NodeView{ID: 10, Content: "start", Options: []entity.StoryOption{{Text: "go", NodeID: 11}}},
		AllNodes: map[int64]story.NodeView{
			10: {ID: 10, Content: "start", Options: []entity.StoryOption{{Text: "go", NodeID: 11}}},
			11: {ID: 11, Content: "win", IsEnding: true, IsWinningEnding: true, Options: []entity.StoryOption{}},
		},
	}
	e := newEngine(&fakeService{stories: map[int64]*story.CompleteStory{3: cs}})

	w := do(e, httptest.NewRequest(http.MethodGet, "/api/story/3/complete", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Stars", body["title"])
	root := body["root_node"].(map[string]interface{})
	assert.EqualValues(t, 10, root["id"])
	all := body["all_nodes"].(map[string]interface{})
	assert.Len(t, all, 2)
	leaf := all["11"].(map[string]interface{})
	assert.Equal(t, true, leaf["is_winning_ending"])
	assert.Equal(t, []interface{}{}, leaf["options"])
}

// 未知故事返回 404
func TestGetCompleteStory_NotFound(t *testing.T) {
	e := newEngine(&fakeService{})
	w := do(e, httptest.NewRequest(http.MethodGet, "/api/story/999/complete", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 404, body["code"])
	assert.Equal(t, "story not found", body["message"])
}

func TestGetCompleteStory_BadID(t *testing.T) {
	e := newEngine(&fakeService{})
	for _, id := range []string{"abc", "1.5", "9999999999999999999999"} {
		w := do(e, httptest.NewRequest(http.MethodGet, "/api/story/"+id+"/complete", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, id)
	}
}

func TestGetCompleteStory_MissingRoot(t *testing.T) {
	e := newEngine(&fakeService{storyErr: apperrors.ErrStoryInconsistent.WithDetail("story 5 has no root node")})
	w := do(e, httptest.NewRequest(http.MethodGet, "/api/story/5/complete", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "story root node not found", decode(t, w)["message"])
}

func TestGetCompleteStory_UnknownErrorHidesDetail(t *testing.T) {
	e := newEngine(&fakeService{storyErr: errors.New("dial tcp: connection refused")})
	w := do(e, httptest.NewRequest(http.MethodGet, "/api/story/5/complete", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealth_Ready(t *testing.T) {
	ok := checkFunc(func(context.Context) error { return nil })
	down := checkFunc(func(context.Context) error { return errors.New("redis down") })

	e := gin.New()
	h := NewHealthHandler("1.0.0", ok)
	e.GET("/ready", h.Ready)
	e.GET("/live", h.Live)

	assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, do(e, httptest.NewRequest(http.MethodGet, "/live", nil)).Code)

	h.WithCheck("redis", down)
	w := do(e, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	checks := decode(t, w)["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"].(map[string]interface{})["status"])
	assert.Equal(t, "redis down", checks["redis"].(map[string]interface{})["error"])

	e2 := gin.New()
	e2.GET("/ready", NewHealthHandler("", nil).Ready)
	assert.Equal(t, http.StatusServiceUnavailable, do(e2, httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)
}
