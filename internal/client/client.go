// Package client talks to the log-analysis backend over HTTP.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/user/authlens/internal/model"
	"github.com/user/authlens/internal/util"
)

// MaxUploadSize matches the backend's request size limit.
const MaxUploadSize = 64 << 20

// Client is an HTTP client for the analysis backend.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL. A zero timeout means no client timeout.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// NewFromConfig creates a client from the application config.
func NewFromConfig(cfg *util.Config) *Client {
	return New(cfg.ServerURL, cfg.Token, cfg.RequestTimeout)
}

// Submit uploads the log file at path and returns the new task id.
func (c *Client) Submit(ctx context.Context, path string) (string, error) {
	taskID, err := c.submit(ctx, path)
	if err != nil {
		return "", &SubmissionError{File: path, Err: err}
	}
	return taskID, nil
}

func (c *Client) submit(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxUploadSize {
		return "", fmt.Errorf("file is %d bytes, limit is %d", info.Size(), MaxUploadSize)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if c.token != "" {
		if err := mw.WriteField("token", c.token); err != nil {
			return "", fmt.Errorf("write token field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/analyze", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp model.SubmitResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("backend rejected upload: %s", resp.Error)
		}
		return "", fmt.Errorf("response has no task_id")
	}

	util.Debug("Submitted %s as task %s", filepath.Base(path), resp.TaskID)
	return resp.TaskID, nil
}

// Progress queries the status of a task.
func (c *Client) Progress(ctx context.Context, taskID string) (*model.ProgressReport, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/progress/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, &PollError{TaskID: taskID, Err: err}
	}

	var report model.ProgressReport
	if err := c.do(req, &report); err != nil {
		return nil, &PollError{TaskID: taskID, Err: err}
	}
	return &report, nil
}

// Result fetches the analysis result of a finished task.
func (c *Client) Result(ctx context.Context, taskID string) (*model.AnalysisResult, error) {
	raw, err := c.ResultRaw(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ResultFetchError{TaskID: taskID, Err: fmt.Errorf("decode result: %w", err)}
	}
	result.Raw = raw
	return &result, nil
}

// ResultRaw fetches the undecoded result payload.
func (c *Client) ResultRaw(ctx context.Context, taskID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/result/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, &ResultFetchError{TaskID: taskID, Err: err}
	}

	raw, err := c.doRaw(req)
	if err != nil {
		return nil, &ResultFetchError{TaskID: taskID, Err: err}
	}
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("X-Token", c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	raw, err := c.doRaw(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) doRaw(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}
