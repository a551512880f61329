package train

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/exponent-ml/exponent/internal/domain"
)

// Backend is the execution service a cloud training job is submitted to.
// Submission is fire-and-forget: the backend assigns the id and owns the
// job lifecycle; this tool only polls.
type Backend interface {
	SubmitJob(ctx context.Context, req *SubmitRequest) (string, error)
	JobStatus(ctx context.Context, jobID string) (domain.JobStatus, string, error)
}

// SubmitRequest describes one training job for the execution backend.
type SubmitRequest struct {
	ProjectID  string `json:"project_id"`
	Task       string `json:"task"`
	DatasetURL string `json:"dataset_url"`
	ScriptURL  string `json:"script_url"`
}

// ModalConfig holds configuration for the Modal execution backend client.
type ModalConfig struct {
	BaseURL     string
	TokenID     string
	TokenSecret string
	Timeout     time.Duration
}

// ModalClient talks to the serverless execution backend over its REST API.
type ModalClient struct {
	client  *resty.Client
	baseURL string
}

// NewModalClient creates an execution backend client.
func NewModalClient(cfg *ModalConfig) *ModalClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBasicAuth(cfg.TokenID, cfg.TokenSecret)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500
	})

	return &ModalClient{client: client, baseURL: cfg.BaseURL}
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type statusResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Logs   string `json:"logs,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SubmitJob submits a training job and returns the backend-assigned id
// immediately; no connection is held open for the job's duration.
func (m *ModalClient) SubmitJob(ctx context.Context, req *SubmitRequest) (string, error) {
	var resp submitResponse
	httpResp, err := m.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(m.baseURL + "/jobs")
	if err != nil {
		return "", fmt.Errorf("failed to submit training job: %w", err)
	}
	if httpResp.StatusCode() == 401 || httpResp.StatusCode() == 403 {
		return "", fmt.Errorf("%w: execution backend rejected credentials", domain.ErrAuthentication)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := resp.Error
		if msg == "" {
			msg = string(httpResp.Body())
		}
		return "", fmt.Errorf("execution backend returned HTTP %d: %s", httpResp.StatusCode(), msg)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("execution backend returned no job id")
	}
	return resp.JobID, nil
}

// JobStatus performs a single poll for a job's current status. Staleness
// between polls is expected; no background polling loop is maintained.
func (m *ModalClient) JobStatus(ctx context.Context, jobID string) (domain.JobStatus, string, error) {
	var resp statusResponse
	httpResp, err := m.client.R().
		SetContext(ctx).
		SetResult(&resp).
		Get(m.baseURL + "/jobs/" + jobID)
	if err != nil {
		return "", "", fmt.Errorf("failed to poll job status: %w", err)
	}
	if httpResp.StatusCode() == 404 {
		return "", "", fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return "", "", fmt.Errorf("execution backend returned HTTP %d", httpResp.StatusCode())
	}
	return normalizeStatus(resp.Status), resp.Logs, nil
}

// normalizeStatus maps backend status strings onto the local status model.
func normalizeStatus(s string) domain.JobStatus {
	switch s {
	case "queued", "pending":
		return domain.JobStatusQueued
	case "running", "in_progress":
		return domain.JobStatusRunning
	case "succeeded", "completed", "success":
		return domain.JobStatusSucceeded
	case "failed", "error":
		return domain.JobStatusFailed
	default:
		return domain.JobStatusQueued
	}
}
