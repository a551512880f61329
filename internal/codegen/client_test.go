package codegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exponent-ml/exponent/internal/domain"
	"github.com/exponent-ml/exponent/internal/prompt"
)

const sampleResponse = "```model.py\nclass Model:\n    pass\n```\n\n```train.py\nprint('training')\n```\n\n```predict.py\nprint('predicting')\n```\n\n```requirements.txt\npandas>=1.5.0\n```"

func completionJSON(content string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return b
}

func testClient(url string, retries int) *Client {
	return NewClient(&Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "gpt-4o-mini",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	})
}

func mustRequest(t *testing.T) *prompt.Request {
	t.Helper()
	req, err := prompt.Build("classify things", nil)
	require.NoError(t, err)
	return req
}

func TestGenerateSucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionJSON(sampleResponse))
	}))
	defer srv.Close()

	files, err := testClient(srv.URL, 3).Generate(context.Background(), mustRequest(t))
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Contains(t, files[domain.FileModel], "class Model")
	assert.Contains(t, files[domain.FileTrain], "training")
	assert.Contains(t, files[domain.FilePredict], "predicting")
	assert.Contains(t, files[domain.FileRequirements], "pandas")
}

func TestGenerateExhaustsRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2).Generate(context.Background(), mustRequest(t))
	require.Error(t, err)
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusInternalServerError, genErr.StatusCode)
	// initial attempt + 2 retries
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGenerateAuthFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key", "type": "auth"},
		})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 3).Generate(context.Background(), mustRequest(t))
	require.Error(t, err)
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusUnauthorized, genErr.StatusCode)
	assert.Contains(t, genErr.Message, "invalid api key")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateRejectsMissingArtifacts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(completionJSON("```model.py\nonly one file\n```"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0).Generate(context.Background(), mustRequest(t))
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Message, "train.py")
}
