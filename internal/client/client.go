// Package client talks to the thunder API on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/ayush/thunder-dashboard/backend/internal/auth"
	"github.com/ayush/thunder-dashboard/backend/internal/models"
	"github.com/ayush/thunder-dashboard/backend/internal/status"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// Client is an authenticated API client. The session cookie lives in its
// jar and is shared with websocket dials.
type Client struct {
	base       *url.URL
	jar        http.CookieJar
	httpClient *http.Client
}

func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:       u,
		jar:        jar,
		httpClient: &http.Client{Jar: jar, Timeout: 2 * time.Minute},
	}, nil
}

// SetSession restores a session cookie saved by an earlier Login.
func (c *Client) SetSession(value string) {
	c.jar.SetCookies(c.base, []*http.Cookie{{Name: auth.SessionCookie, Value: value, Path: "/"}})
}

// Session returns the current session cookie value, or "".
func (c *Client) Session() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == auth.SessionCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var out models.User
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Subjects(ctx context.Context) ([]models.Subject, error) {
	var out []models.Subject
	return out, c.do(ctx, http.MethodGet, "/api/subjects", nil, &out)
}

func (c *Client) CreateSubject(ctx context.Context, name string) (*models.Subject, error) {
	var out models.Subject
	if err := c.do(ctx, http.MethodPost, "/api/subjects", models.CreateSubjectRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignUpload requests a write URL for objectPath.
func (c *Client) SignUpload(ctx context.Context, objectPath, contentType string) (*models.SignedUpload, error) {
	var out models.SignedUpload
	err := c.do(ctx, http.MethodPost, "/api/uploads/sign", models.SignRequest{FileName: objectPath, ContentType: contentType}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterSource records an uploaded PDF and starts its ingest job.
func (c *Client) RegisterSource(ctx context.Context, subjectID, title, path string) (string, error) {
	var out models.Source
	err := c.do(ctx, http.MethodPost, "/api/subjects/"+url.PathEscape(subjectID)+"/sources",
		models.RegisterUploadRequest{Title: title, Path: path}, &out)
	return out.ID, err
}

// RegisterSession records an uploaded recording and starts its split job.
func (c *Client) RegisterSession(ctx context.Context, subjectID, title, path string) (string, error) {
	var out models.Session
	err := c.do(ctx, http.MethodPost, "/api/subjects/"+url.PathEscape(subjectID)+"/sessions",
		models.RegisterUploadRequest{Title: title, Path: path}, &out)
	return out.ID, err
}

func (c *Client) Items(ctx context.Context, subjectID string) ([]status.ItemView, error) {
	var out []status.ItemView
	return out, c.do(ctx, http.MethodGet, "/api/subjects/"+url.PathEscape(subjectID)+"/items", nil, &out)
}

// Generate starts report generation over sessionIDs.
func (c *Client) Generate(ctx context.Context, subjectID string, sessionIDs []string, examWindow string) error {
	return c.do(ctx, http.MethodPost, "/api/subjects/"+url.PathEscape(subjectID)+"/reports",
		models.GenerateRequest{SessionIDs: sessionIDs, ExamWindow: examWindow}, nil)
}

// GetReport fetches the stored report of a session.
func (c *Client) GetReport(ctx context.Context, sessionID string) (*models.SessionReport, error) {
	var out models.SessionReport
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID)+"/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadReportPDF streams the rendered report to w.
func (c *Client) DownloadReportPDF(ctx context.Context, sessionID string, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/sessions/"+url.PathEscape(sessionID)+"/report.pdf", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// send performs a request and turns non-2xx answers into *APIError.
func (c *Client) send(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return nil, &APIError{Status: resp.StatusCode, Message: msg}
}
