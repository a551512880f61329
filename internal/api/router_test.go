package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/api/middleware"
	"github.com/exponent-ml/exponent/internal/config"
	"github.com/exponent-ml/exponent/internal/core"
	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/logger"
	"github.com/exponent-ml/exponent/internal/project"
	"github.com/exponent-ml/exponent/internal/prompt"
	"github.com/exponent-ml/exponent/internal/repository"
	"github.com/exponent-ml/exponent/internal/train"
)

type staticGenerator struct{}

func (staticGenerator) Generate(context.Context, *prompt.Request) (domain.GeneratedFiles, error) {
	return domain.GeneratedFiles{
		domain.FileModel:        "class Model: pass\n",
		domain.FileTrain:        "print('train')\n",
		domain.FilePredict:      "print('predict')\n",
		domain.FileRequirements: "scikit-learn\n",
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	root := t.TempDir()
	store, err := project.NewStore(project.DefaultDir(root))
	require.NoError(t, err)

	db, err := repository.InitDB(filepath.Join(root, "jobs.db"))
	require.NoError(t, err)
	jobs := repository.NewJobRepository(db)

	orchestrator := core.New(core.Options{
		Config:     &config.Config{Root: root},
		Store:      store,
		Jobs:       jobs,
		Dispatcher: train.NewDispatcher(store, jobs, nil, nil, "sh", logger.GetDefault()),
		Generator:  staticGenerator{},
	})

	return SetupRouter(orchestrator, RouterConfig{
		Mode: "test",
		CORS: middleware.CORSConfig{AllowAllOrigins: true},
	})
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGenerateAndFetchProject(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/projects", gin.H{"task": "predict churn"})
	require.Equal(t, http.StatusCreated, w.Code)

	var proj domain.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proj))
	require.NotEmpty(t, proj.ID)
	assert.Equal(t, domain.ProjectStatusCreated, proj.Status)

	w = doJSON(t, r, http.MethodGet, "/api/v1/projects/"+proj.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/projects", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), proj.ID)
}

func TestGenerateRejectsMissingTask(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/projects", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProjectNotFound(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/projects/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeDataset(t *testing.T) {
	r := newTestRouter(t)

	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,x\n2,y\n"), 0o644))

	w := doJSON(t, r, http.MethodPost, "/api/v1/analyze", gin.H{"path": path})
	require.Equal(t, http.StatusOK, w.Code)

	var summary domain.DatasetSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, "b", summary.TargetColumn)
}

func TestAnalyzeMissingFile(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/v1/analyze", gin.H{"path": "/no/such/file.csv"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyzeUnsupportedFormat(t *testing.T) {
	r := newTestRouter(t)

	path := filepath.Join(t.TempDir(), "data.pkl")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	w := doJSON(t, r, http.MethodPost, "/api/v1/analyze", gin.H{"path": path})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListJobsEmpty(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestGetJobNotFound(t *testing.T) {
	r := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/api/v1/jobs/unknown-job", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrainWithoutCloudConfig(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/projects", gin.H{"task": "predict churn"})
	require.Equal(t, http.StatusCreated, w.Code)
	var proj domain.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proj))

	w = doJSON(t, r, http.MethodPost, "/api/v1/train", gin.H{"project_id": proj.ID})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")
}
