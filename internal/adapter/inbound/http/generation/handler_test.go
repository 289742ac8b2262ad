package generationhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/uniedit/imagegen/internal/domain/generation"
	"github.com/uniedit/imagegen/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDomain is a mock implementation of inbound.GenerationDomain.
type MockDomain struct {
	mock.Mock
}

func (m *MockDomain) Generate(ctx context.Context, req *model.GenerationRequest, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error) {
	args := m.Called(ctx, req, pollInterval, timeout)
	rec, _ := args.Get(0).(*model.GenerationTaskRecord)
	return rec, args.Error(1)
}

func (m *MockDomain) Enqueue(ctx context.Context, req *model.GenerationRequest) (*model.GenerationTaskRecord, error) {
	args := m.Called(ctx, req)
	rec, _ := args.Get(0).(*model.GenerationTaskRecord)
	return rec, args.Error(1)
}

func (m *MockDomain) GetTask(ctx context.Context, id string) (*model.GenerationTaskRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*model.GenerationTaskRecord)
	return rec, args.Error(1)
}

func (m *MockDomain) WaitTask(ctx context.Context, id string, pollInterval, timeout time.Duration) (*model.GenerationTaskRecord, error) {
	args := m.Called(ctx, id, pollInterval, timeout)
	rec, _ := args.Get(0).(*model.GenerationTaskRecord)
	return rec, args.Error(1)
}

func (m *MockDomain) TakeArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	args := m.Called(ctx, id)
	artifact, _ := args.Get(0).(*model.Artifact)
	return artifact, args.Error(1)
}

func setupRouter(domain *MockDomain) *gin.Engine {
	router := gin.New()
	NewHandler(domain).RegisterRoutes(router.Group("/v1"))
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func succeededRecord() *model.GenerationTaskRecord {
	now := time.Now()
	return &model.GenerationTaskRecord{
		ID:            "task-1",
		State:         model.TaskStateSucceeded,
		StatusMessage: generation.StatusMessageSucceeded,
		Options:       generation.DefaultOptionSet(),
		Artifact:      &model.Artifact{Data: []byte("hello"), MimeType: "image/png"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestHandler_CreateGeneration(t *testing.T) {
	t.Run("sync success returns artifact", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("Generate", mock.Anything, mock.MatchedBy(func(req *model.GenerationRequest) bool {
			return req.Prompt() == "beautiful woman" && req.Options["height"] == float64(512) && req.MakeOutputPublic
		}), time.Duration(0), time.Duration(0)).Return(succeededRecord(), nil)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{
			"texts":              []string{"beautiful", "woman"},
			"options":            map[string]any{"height": 512},
			"make_output_public": true,
		})

		require.Equal(t, http.StatusOK, w.Code)
		var out struct {
			ID       string `json:"id"`
			State    string `json:"state"`
			Artifact struct {
				MimeType string `json:"mime_type"`
				Size     int    `json:"size"`
				Data     []byte `json:"data"`
			} `json:"artifact"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "task-1", out.ID)
		assert.Equal(t, "succeeded", out.State)
		assert.Equal(t, []byte("hello"), out.Artifact.Data)
		assert.Equal(t, 5, out.Artifact.Size)
		domain.AssertExpectations(t)
	})

	t.Run("sync provider failure maps to bad gateway", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateFailed
		rec.Artifact = nil
		rec.Error = &model.TaskError{Kind: "provider", Message: "provider rejected request", StatusCode: http.StatusUnauthorized}

		domain := new(MockDomain)
		domain.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(rec, nil)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "PROVIDER_ERROR", env.Error.Code)
		assert.Equal(t, "provider", env.Error.Details["kind"])
		assert.Equal(t, float64(http.StatusUnauthorized), env.Error.Details["provider_status"])
		assert.Equal(t, "task-1", env.Error.Details["task_id"])
	})

	t.Run("sync configuration failure maps to internal error", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateFailed
		rec.Artifact = nil
		rec.Error = generation.ToTaskError(generation.NewConfigurationError("api_key is required"))

		domain := new(MockDomain)
		domain.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(rec, nil)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "CONFIGURATION_ERROR", decodeError(t, w).Error.Code)
	})

	t.Run("sync timeout maps to gateway timeout", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateRunning
		rec.Artifact = nil

		domain := new(MockDomain)
		domain.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(rec, generation.NewTimeoutError(rec.ID, rec.State))

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}})

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "TIMEOUT", env.Error.Code)
		assert.Equal(t, "running", env.Error.Details["state"])
	})

	t.Run("sync open circuit maps to transport error", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateFailed
		rec.Artifact = nil
		rec.Error = generation.ToTaskError(generation.Classify(fmt.Errorf("provider breaker: %w", gobreaker.ErrOpenState)))

		domain := new(MockDomain)
		domain.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(rec, nil)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}})

		assert.Equal(t, http.StatusBadGateway, w.Code)
		env := decodeError(t, w)
		assert.Equal(t, "TRANSPORT_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Message, "provider circuit open")
		assert.Equal(t, "transport", env.Error.Details["kind"])
		assert.Equal(t, "failed", env.Error.Details["state"])
		assert.NotContains(t, env.Error.Details, "provider_status")
	})

	t.Run("async returns accepted", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateSubmitted
		rec.Artifact = nil

		domain := new(MockDomain)
		domain.On("Enqueue", mock.Anything, mock.Anything).Return(rec, nil)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}, "async": true})

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"state":"submitted"`)
		domain.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("async unavailable", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("Enqueue", mock.Anything, mock.Anything).Return(nil, generation.ErrAsyncUnavailable)

		w := doJSON(setupRouter(domain), http.MethodPost, "/v1/generations", map[string]any{"texts": []string{"x"}, "async": true})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewBufferString("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		setupRouter(new(MockDomain)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", decodeError(t, w).Error.Code)
	})
}

func TestHandler_GetGeneration(t *testing.T) {
	t.Run("omits artifact bytes", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("GetTask", mock.Anything, "task-1").Return(succeededRecord(), nil)

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/task-1", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"mime_type":"image/png"`)
		assert.NotContains(t, w.Body.String(), `"data"`)
	})

	t.Run("unknown task", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("GetTask", mock.Anything, "missing").Return(nil, generation.ErrTaskNotFound)

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/missing", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
	})
}

func TestHandler_TaskStoreUnavailable(t *testing.T) {
	storeErr := fmt.Errorf("%w: get task-1: %w", generation.ErrTaskStore, errors.New("connection refused"))

	domain := new(MockDomain)
	domain.On("GetTask", mock.Anything, "task-1").Return(nil, storeErr)
	domain.On("TakeArtifact", mock.Anything, "task-1").Return(nil, storeErr)
	router := setupRouter(domain)

	for _, path := range []string{"/v1/generations/task-1", "/v1/generations/task-1/artifact"} {
		w := doJSON(router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, "TASK_STORE_UNAVAILABLE", decodeError(t, w).Error.Code, path)
	}
}

func TestHandler_WaitGeneration(t *testing.T) {
	t.Run("passes durations through", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("WaitTask", mock.Anything, "task-1", 250*time.Millisecond, 5*time.Second).Return(succeededRecord(), nil)

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/task-1/wait?interval=250ms&timeout=5s", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		domain.AssertExpectations(t)
	})

	t.Run("timeout", func(t *testing.T) {
		rec := succeededRecord()
		rec.State = model.TaskStateRunning
		rec.Artifact = nil

		domain := new(MockDomain)
		domain.On("WaitTask", mock.Anything, "task-1", time.Duration(0), time.Duration(0)).
			Return(rec, generation.NewTimeoutError(rec.ID, rec.State))

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/task-1/wait", nil)

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Equal(t, "task-1", decodeError(t, w).Error.Details["task_id"])
	})

	t.Run("invalid durations", func(t *testing.T) {
		router := setupRouter(new(MockDomain))

		assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/v1/generations/x/wait?interval=soon", nil).Code)
		assert.Equal(t, http.StatusBadRequest, doJSON(router, http.MethodGet, "/v1/generations/x/wait?timeout=-1s", nil).Code)
	})
}

func TestHandler_GetArtifact(t *testing.T) {
	t.Run("returns raw bytes", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("TakeArtifact", mock.Anything, "task-1").
			Return(&model.Artifact{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/png"}, nil)

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/task-1/artifact", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, w.Body.Bytes())
	})

	t.Run("not succeeded", func(t *testing.T) {
		domain := new(MockDomain)
		domain.On("TakeArtifact", mock.Anything, "task-1").Return(nil, generation.ErrTaskNotSucceeded)

		w := doJSON(setupRouter(domain), http.MethodGet, "/v1/generations/task-1/artifact", nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
