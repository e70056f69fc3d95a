package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/trainedml/datasets"
	mlerrors "github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

func animals() string {
	var sb strings.Builder
	sb.WriteString("weight,height,animal\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d,%d.5,cat\n", 3+i%4, 20+i%5)
		fmt.Fprintf(&sb, "%d,%d.5,dog\n", 30+i%6, 60+i%7)
	}
	sb.WriteString("NA,25,cat\n")
	return sb.String()
}

// upstream serves animals() on every path except /missing.csv.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(animals()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupServer(t *testing.T, opts ...Option) (*Server, *log.TestLogger) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := log.NewTestLogger(log.LevelInfo)
	loader, err := datasets.NewLoader(datasets.WithLogger(logger), datasets.WithRemoteOnly())
	require.NoError(t, err)
	s, err := New(append([]Option{WithLoader(loader), WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return s, logger
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	s, _ := setupServer(t)

	w := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))
	assert.Equal(t, "ok", decode(t, w)["status"])

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-42")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(headerRequestID))
}

func TestListModelsAndDatasets(t *testing.T) {
	s, _ := setupServer(t)

	w := do(t, s, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m struct {
		Classifiers []string `json:"classifiers"`
		Regressors  []string `json:"regressors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, []string{"knn", "logistic", "random_forest"}, m.Classifiers)
	assert.Contains(t, m.Regressors, "linear")

	w = do(t, s, http.MethodGet, "/v1/datasets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d struct {
		Items []datasetResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	require.Len(t, d.Items, 2)
	assert.Equal(t, "iris", d.Items[0].Name)
	assert.Equal(t, "species", d.Items[0].Target)
}

func TestTrainerLifecycle(t *testing.T) {
	s, logger := setupServer(t)

	w := do(t, s, http.MethodPost, "/v1/trainers", map[string]any{
		"url":       upstream(t).URL + "/animals.csv",
		"target":    "animal",
		"model":     "k-nn",
		"test_size": 0.25,
		"seed":      7,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created trainerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "knn", created.Model)
	assert.Equal(t, "classification", string(created.Task))
	assert.Equal(t, int64(7), created.Seed)
	assert.Equal(t, 29, created.TrainRows)
	assert.Equal(t, 10, created.TestRows)
	assert.Equal(t, 1, created.Dropped)
	assert.Equal(t, []string{"weight", "height"}, created.Features)
	assert.Equal(t, []string{"cat", "dog"}, created.Classes)

	raw := decode(t, w)
	scores := raw["scores"].(map[string]any)
	assert.Equal(t, 1.0, scores["accuracy"])
	assert.True(t, logger.ContainsMessage("Trainer created"))
	assert.True(t, logger.ContainsField(log.TrainerIDKey, created.ID))

	w = do(t, s, http.MethodGet, "/v1/trainers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode(t, w)["id"])

	w = do(t, s, http.MethodGet, "/v1/trainers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total"])

	w = do(t, s, http.MethodPost, "/v1/trainers/"+created.ID+"/predict", map[string]any{
		"rows": [][]float64{{4, 21}, {33, 62}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pred predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pred))
	assert.Equal(t, []float64{0, 1}, pred.Predictions)
	assert.Equal(t, []string{"cat", "dog"}, pred.Labels)

	w = do(t, s, http.MethodPost, "/v1/trainers/"+created.ID+"/predict", map[string]any{
		"rows": [][]float64{{1, 2, 3}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["hints"])

	w = do(t, s, http.MethodDelete, "/v1/trainers/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.Store().Len())

	w = do(t, s, http.MethodGet, "/v1/trainers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodDelete, "/v1/trainers/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodPost, "/v1/trainers/"+created.ID+"/predict", map[string]any{
		"rows": [][]float64{{4, 21}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := setupServer(t, WithMaxTrainers(2))
	path := upstream(t).URL + "/animals.csv"

	create := func() string {
		w := do(t, s, http.MethodPost, "/v1/trainers", map[string]any{
			"url": path, "target": "animal", "model": "knn",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode(t, w)["id"].(string)
	}

	first, second := create(), create()
	// Touch the first so the second becomes the eviction candidate.
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/trainers/"+first, nil).Code)
	third := create()

	assert.Equal(t, 2, s.Store().Len())
	assert.Equal(t, []string{first, third}, s.Store().IDs())
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/trainers/"+second, nil).Code)
}

func TestCreateTrainerErrors(t *testing.T) {
	s, _ := setupServer(t)
	remote := upstream(t)
	path := remote.URL + "/animals.csv"

	tests := []struct {
		name     string
		body     any
		status   int
		contains string
		hinted   bool
	}{
		{
			name:   "malformed json",
			body:   `{"url": `,
			status: http.StatusBadRequest,
		},
		{
			name:     "unknown model",
			body:     map[string]any{"url": path, "target": "animal", "model": "svm"},
			status:   http.StatusBadRequest,
			contains: "svm",
			hinted:   true,
		},
		{
			name:     "test size out of range",
			body:     map[string]any{"url": path, "target": "animal", "test_size": 1.5},
			status:   http.StatusBadRequest,
			contains: "test_size",
		},
		{
			name:   "no data source",
			body:   map[string]any{"model": "knn"},
			status: http.StatusBadRequest,
			hinted: true,
		},
		{
			name:     "unknown target column",
			body:     map[string]any{"url": path, "target": "species"},
			status:   http.StatusBadRequest,
			contains: "species",
			hinted:   true,
		},
		{
			name:   "text feature for regression",
			body:   map[string]any{"url": path, "target": "weight", "model": "ridge"},
			status: http.StatusBadRequest,
			hinted: true,
		},
		{
			name:   "upstream 404",
			body:   map[string]any{"url": remote.URL + "/missing.csv", "target": "animal"},
			status: http.StatusBadGateway,
			hinted: true,
		},
		{
			name: "hash mismatch",
			body: map[string]any{
				"url": remote.URL + "/hashed.csv", "target": "animal",
				"hash": "sha256:" + strings.Repeat("0", 64),
			},
			status:   http.StatusBadGateway,
			contains: "integrity",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/trainers", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.RequestID)
			if tt.contains != "" {
				assert.Contains(t, resp.Error, tt.contains)
			}
			if tt.hinted {
				assert.NotEmpty(t, resp.Hints)
			}
		})
	}
	assert.Equal(t, 0, s.Store().Len())
}

func TestCreateTrainerRejectsLocalSources(t *testing.T) {
	s, _ := setupServer(t)
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("db_password=hunter2,api_key=XYZ\n1,2\n"), 0o600))

	for _, source := range []string{secret, "file://" + secret, "ftp://example.com/data.csv", "http:///data.csv"} {
		t.Run(source, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/v1/trainers", map[string]any{"url": source, "target": "nope"})
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotContains(t, w.Body.String(), "hunter2")
			assert.NotContains(t, w.Body.String(), "db_password")

			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, "url")
		})
	}
	assert.Equal(t, 0, s.Store().Len())
}

func TestRemoteOnlyLoaderRejectsLocalPaths(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("db_password,api_key\n1,2\n"), 0o600))

	logger, _ := log.NewTestLogger(log.LevelError)
	loader, err := datasets.NewLoader(datasets.WithLogger(logger), datasets.WithRemoteOnly())
	require.NoError(t, err)

	_, err = loader.LoadCSV(context.Background(), secret, datasets.LoadOptions{})
	require.Error(t, err)
	var validation *mlerrors.ValidationError
	assert.True(t, mlerrors.As(err, &validation))
	assert.NotContains(t, err.Error(), "db_password")
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	r := gin.New()
	r.Use(RequestID(logger), Logging(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.True(t, logger.ContainsMessage("Handler panicked"))
	assert.True(t, logger.ContainsMessage("Request failed"))
}

func TestNewStoreRejectsZeroSize(t *testing.T) {
	_, err := NewStore(0, nil)
	assert.Error(t, err)
}
