package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Phase selects which stage of the worker a run executes.
type Phase string

const (
	PhaseIngest Phase = "1"
	PhaseSplit  Phase = "split"
	PhaseReport Phase = "4"
)

// IngestPayload is the --job-payload of phase 1.
type IngestPayload struct {
	SourceID  string `json:"source_id"`
	GCSPDFURL string `json:"gcs_pdf_url"`
}

// SplitPayload is the --job-payload of the audio split phase.
type SplitPayload struct {
	SessionID   string `json:"session_id"`
	GCSAudioURL string `json:"gcs_audio_url"`
	Subject     string `json:"subject"`
	ExamWindow  string `json:"exam_window"`
}

// ReportPayload is the --job-payload of phase 4.
type ReportPayload struct {
	SubjectID  string   `json:"subject_id"`
	SessionIDs []string `json:"session_ids"`
	ExamWindow string   `json:"exam_window"`
}

// Args builds the container argument list for a run.
func Args(phase Phase, payload any) ([]string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", phase, err)
	}
	return []string{"--phase", string(phase), "--job-payload", string(body)}, nil
}

type runRequest struct {
	Overrides struct {
		ContainerOverrides []containerOverride `json:"containerOverrides"`
	} `json:"overrides"`
}

type containerOverride struct {
	Args []string `json:"args"`
}

// Client starts executions of a Cloud Run Job through the Admin API v2.
// The run is fire-and-forget: only acceptance of the request is checked.
type Client struct {
	baseURL    string
	jobName    string
	token      string
	httpClient *http.Client
}

// NewClient targets jobName, the full resource name
// projects/{p}/locations/{l}/jobs/{job}.
func NewClient(baseURL, jobName, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		jobName:    strings.Trim(jobName, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Run starts one execution with the given phase and payload.
func (c *Client) Run(ctx context.Context, phase Phase, payload any) error {
	args, err := Args(phase, payload)
	if err != nil {
		return err
	}
	var reqBody runRequest
	reqBody.Overrides.ContainerOverrides = []containerOverride{{Args: args}}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode run request: %w", err)
	}

	path := "/v2/" + c.jobName + ":run"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("job-api %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("job-api %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkResp(resp, "job-api", path)
}

// checkResp returns an error including the upstream body if the status is not 2xx.
func checkResp(resp *http.Response, service, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s %s returned %d: %s", service, path, resp.StatusCode, string(body))
}
