// Package turnitin talks to the plagiarism vendor's HTTP API: one multipart
// upload, then polling until the report URL shows up or the attempt budget
// runs out.
package turnitin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUpload means the vendor rejected or never accepted the document.
	ErrUpload = errors.New("document upload failed")
	// ErrReport means the vendor reported a terminal failure for the check.
	ErrReport = errors.New("report retrieval failed")
	// ErrTimeout means the report did not become ready within the attempt budget.
	ErrTimeout = errors.New("timed out waiting for report")
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
)

// Client is a thin wrapper over the vendor API. Credentials are fixed at
// construction; per-call cancellation comes from the context.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// Option tweaks client behavior.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key required")
	}
	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: DefaultPollInterval,
		maxAttempts:  DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit uploads the document and returns the vendor submission id.
func (c *Client) Submit(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrUpload, path, err)
	}
	defer f.Close()

	var body strings.Builder
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("%w: build form: %v", ErrUpload, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrUpload, path, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: finish form: %v", ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, readBody(resp.Body))
	}
	var out struct {
		SubmissionID string `json:"submission_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpload, err)
	}
	if out.SubmissionID == "" {
		return "", fmt.Errorf("%w: response carried no submission_id", ErrUpload)
	}
	return out.SubmissionID, nil
}

// WaitForReport polls the report endpoint until the vendor returns the
// report URL. 202 means the report is still being generated; any other
// non-200 status is terminal. The attempt budget bounds the wait, and the
// context cancels it early.
func (c *Client) WaitForReport(ctx context.Context, submissionID string) (string, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			case <-time.After(c.pollInterval):
			}
		}

		url, done, err := c.fetchReport(ctx, submissionID)
		if err != nil {
			return "", err
		}
		if done {
			return url, nil
		}
	}
	return "", fmt.Errorf("%w: submission %s after %d attempts", ErrTimeout, submissionID, c.maxAttempts)
}

func (c *Client) fetchReport(ctx context.Context, submissionID string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/submissions/%s/report", c.baseURL, submissionID), nil)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrReport, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return "", false, fmt.Errorf("%w: %v", ErrReport, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			ReportURL string `json:"report_url"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, fmt.Errorf("%w: decode report: %v", ErrReport, err)
		}
		if out.ReportURL == "" {
			return "", false, fmt.Errorf("%w: response carried no report_url", ErrReport)
		}
		return out.ReportURL, true, nil
	case http.StatusAccepted:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("%w: status %d: %s", ErrReport, resp.StatusCode, readBody(resp.Body))
	}
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
