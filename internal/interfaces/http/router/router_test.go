package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/application/progress"
	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/infrastructure/messaging"
	"z-novel-plan-api/internal/infrastructure/persistence/postgres"
	"z-novel-plan-api/internal/interfaces/http/handler"
	"z-novel-plan-api/internal/interfaces/http/middleware"
	wfmodel "z-novel-plan-api/internal/workflow/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct{}

func (stubGenerator) GeneratePartOutline(_ context.Context, in *wfmodel.PartOutlineInput) (*wfmodel.PartOutlineOutput, error) {
	return &wfmodel.PartOutlineOutput{Title: fmt.Sprintf("第%d卷", in.Part.PartNumber), Summary: "卷概要"}, nil
}

func (stubGenerator) GenerateChapterOutlines(_ context.Context, in *wfmodel.ChapterOutlineInput) (*wfmodel.ChapterOutlineOutput, error) {
	out := &wfmodel.ChapterOutlineOutput{}
	for n := in.StartChapter; n <= in.EndChapter; n++ {
		out.Chapters = append(out.Chapters, wfmodel.ChapterBrief{ChapterNumber: n, Title: fmt.Sprintf("第%d章", n), Summary: "概要"})
	}
	return out, nil
}

func (stubGenerator) GenerateChapterContent(context.Context, *wfmodel.ChapterContentInput) (*wfmodel.ChapterContentOutput, error) {
	return &wfmodel.ChapterContentOutput{Content: "正文"}, nil
}

func (stubGenerator) EvaluateChapter(context.Context, *wfmodel.ChapterEvaluationInput) (*wfmodel.ChapterEvaluationOutput, error) {
	return &wfmodel.ChapterEvaluationOutput{Decision: "accept", Score: 90}, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	jobs []*messaging.ContentJobMessage
}

func (p *stubPublisher) PublishContentJob(_ context.Context, msg *messaging.ContentJobMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, msg)
	return "1-0", nil
}

type denyLimiter struct{ calls int }

func (d *denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.calls++
	return false, nil
}

type testServer struct {
	engine    *gin.Engine
	outlines  *postgres.ChapterOutlineRepository
	publisher *stubPublisher
}

func newTestServer(t *testing.T, cfg *config.Config, limiter middleware.RateLimiter) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	client := postgres.NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))

	txMgr := postgres.NewTxManager(client)
	bps := blueprint.NewService(postgres.NewBlueprintRepository(client), nil, 0)
	parts := postgres.NewPartOutlineRepository(client)
	outlines := postgres.NewChapterOutlineRepository(client)
	chapters := postgres.NewChapterRepository(client)
	versions := postgres.NewChapterVersionRepository(client)
	evaluations := postgres.NewChapterEvaluationRepository(client)
	gen := stubGenerator{}

	cascade := outline.NewCascadeEngine(txMgr, parts, outlines, chapters, versions, evaluations, nil)
	planner := outline.NewPartPlanner(txMgr, bps, parts, outlines, cascade, gen,
		outline.PlannerConfig{DefaultChaptersPerPart: 5, MaxTotalChapters: 100})
	chapterGen := outline.NewChapterOutlineGenerator(txMgr, bps, parts, outlines, cascade, gen, 5)
	pipeline := content.NewPipeline(txMgr, bps, outlines, chapters, versions, gen, nil, content.Config{DefaultVersionCount: 1, MaxVersionCount: 3})
	publisher := &stubPublisher{}
	jobs := content.NewJobRunner(pipeline, postgres.NewJobRepository(client), publisher)
	selector := content.NewSelector(txMgr, bps, outlines, chapters, versions, evaluations, gen, nil, nil)

	handlers := &Handlers{
		Health:         handler.NewHealthHandler("test").Require("postgres", client),
		Blueprint:      handler.NewBlueprintHandler(bps),
		PartOutline:    handler.NewPartOutlineHandler(planner, chapterGen),
		ChapterOutline: handler.NewChapterOutlineHandler(chapterGen),
		Chapter:        handler.NewChapterHandler(pipeline, jobs, selector, false),
		Job:            handler.NewJobHandler(jobs),
		Progress:       handler.NewProgressHandler(progress.NewTracker(bps, parts, outlines, chapters), time.Second, nil),
	}
	r := New(cfg, handlers, limiter)
	return &testServer{engine: r.Engine(), outlines: outlines, publisher: publisher}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page       int `json:"page"`
		PageSize   int `json:"page_size"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"meta"`
	Error *struct {
		ErrorCode string         `json:"error_code"`
		Meta      map[string]any `json:"meta"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, *envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	env := &envelope{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), env), w.Body.String())
	}
	return w.Code, env
}

func TestRouter_PlanLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	status, _ := s.do(t, http.MethodPut, "/v1/projects/p1/blueprint", map[string]any{
		"title": "长夜", "total_chapters": 12, "chapters_per_part": 5,
	})
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines", map[string]any{})
	require.Equal(t, http.StatusCreated, status)
	var plan struct {
		Parts []entity.PartOutline `json:"parts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	require.Len(t, plan.Parts, 3)
	assert.Equal(t, 11, plan.Parts[2].StartChapter)
	assert.Equal(t, 12, plan.Parts[2].EndChapter)

	status, env = s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "1005", env.Error.ErrorCode)

	status, env = s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines/1/regenerate", nil)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "4102", env.Error.ErrorCode)
	assert.Contains(t, env.Error.Meta, "cascade_preview")
	assert.Equal(t, "cascade_delete=true", env.Error.Meta["required"])

	status, _ = s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines/3/regenerate", nil)
	assert.Equal(t, http.StatusOK, status, "latest part needs no confirmation")

	status, _ = s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines/1/regenerate", map[string]any{"cascade_delete": true})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/v1/projects/p1/part-outlines", nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Parts []entity.PartOutline `json:"parts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Parts, 1)

	status, env = s.do(t, http.MethodGet, "/v1/projects/p1/progress", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, env.Data)
}

func TestRouter_ErrorMapping(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing part", http.MethodPost, "/v1/projects/p1/part-outlines/9/regenerate", nil, http.StatusNotFound, "3004"},
		{"missing chapter", http.MethodGet, "/v1/projects/p1/chapters/3", nil, http.StatusNotFound, "3002"},
		{"missing outline", http.MethodPost, "/v1/projects/p1/chapters/3/versions", map[string]any{}, http.StatusNotFound, "3005"},
		{"missing job", http.MethodGet, "/v1/jobs/nope", nil, http.StatusNotFound, "3006"},
		{"bad chapter number", http.MethodGet, "/v1/projects/p1/chapters/abc", nil, http.StatusBadRequest, "1001"},
		{"range required", http.MethodPost, "/v1/projects/p1/chapter-outlines", map[string]any{}, http.StatusBadRequest, "4101"},
		{"bad delete count", http.MethodDelete, "/v1/projects/p1/part-outlines/latest?count=x", nil, http.StatusBadRequest, "1001"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := s.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, status)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.ErrorCode)
		})
	}
}

func TestRouter_AsyncGeneration(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	require.NoError(t, s.outlines.Save(context.Background(), entity.NewChapterOutline("p1", 1, "启程", "概要")))

	status, env := s.do(t, http.MethodPost, "/v1/projects/p1/chapters/1/versions", map[string]any{"async": true})
	require.Equal(t, http.StatusAccepted, status)
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "pending", job.Status)
	require.Len(t, s.publisher.jobs, 1)
	assert.Equal(t, job.ID, s.publisher.jobs[0].JobID)

	status, env = s.do(t, http.MethodGet, "/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), job.ID)

	status, _ = s.do(t, http.MethodPost, "/v1/projects/p1/chapters/1/versions", map[string]any{"async": false})
	require.Equal(t, http.StatusOK, status)
	status, env = s.do(t, http.MethodGet, "/v1/projects/p1/chapters/1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "正文")
}

func TestRouter_ListJobs(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	for n := 1; n <= 3; n++ {
		require.NoError(t, s.outlines.Save(context.Background(), entity.NewChapterOutline("p1", n, "章", "概要")))
		status, _ := s.do(t, http.MethodPost, fmt.Sprintf("/v1/projects/p1/chapters/%d/versions", n), map[string]any{"async": true})
		require.Equal(t, http.StatusAccepted, status)
	}

	status, env := s.do(t, http.MethodGet, "/v1/projects/p1/jobs?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, status)
	var jobs []struct {
		ID            string `json:"id"`
		ChapterNumber int    `json:"chapter_number"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &jobs))
	assert.Len(t, jobs, 1)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Page)
	assert.Equal(t, 3, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)

	status, env = s.do(t, http.MethodGet, "/v1/projects/p2/jobs", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta)
	assert.Zero(t, env.Meta.Total)
	assert.Equal(t, 20, env.Meta.PageSize)

	status, env = s.do(t, http.MethodGet, "/v1/projects/p1/jobs?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "1001", env.Error.ErrorCode)
}

func TestRouter_MalformedVersionIDIsNotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	require.NoError(t, s.outlines.Save(context.Background(), entity.NewChapterOutline("p1", 1, "启程", "概要")))
	status, _ := s.do(t, http.MethodPost, "/v1/projects/p1/chapters/1/versions", map[string]any{"async": false})
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodPost, "/v1/projects/p1/chapters/1/select-version", map[string]any{"version_id": "not-a-uuid"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "3003", env.Error.ErrorCode)

	status, env = s.do(t, http.MethodDelete, "/v1/projects/p1/chapters/1/versions/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "3003", env.Error.ErrorCode)

	status, env = s.do(t, http.MethodPost, "/v1/projects/p1/chapters/1/select-version", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "1001", env.Error.ErrorCode)
}

func TestRouter_RateLimitOnlyGuardsGeneration(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.Enabled = true
	limiter := &denyLimiter{}
	s := newTestServer(t, cfg, limiter)

	status, _ := s.do(t, http.MethodPost, "/v1/projects/p1/part-outlines", map[string]any{"total_chapters": 10})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, 1, limiter.calls)

	status, _ = s.do(t, http.MethodGet, "/v1/projects/p1/part-outlines", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, limiter.calls)
}

func TestRouter_ProjectScopeRejectsLongID(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	status, _ := s.do(t, http.MethodGet, "/v1/projects/"+strings.Repeat("x", 65)+"/blueprint", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	status, _ := s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = s.do(t, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, status)
}
