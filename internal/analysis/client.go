package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Category classifies a submission failure. Categories drive the support
// code shown next to the generic user message and the diagnostic log entry;
// they are never used to vary the user-facing message itself.
type Category int

const (
	// CategoryInvalidFile covers 400/422 responses: the service rejected
	// the file content.
	CategoryInvalidFile Category = iota
	// CategoryTooLarge covers 413 responses.
	CategoryTooLarge
	// CategoryUnavailable covers 5xx responses and transport failures.
	CategoryUnavailable
	// CategoryBadResponse covers 2xx responses whose body did not decode.
	CategoryBadResponse
)

func (c Category) String() string {
	switch c {
	case CategoryInvalidFile:
		return "invalid_file"
	case CategoryTooLarge:
		return "too_large"
	case CategoryBadResponse:
		return "bad_response"
	default:
		return "unavailable"
	}
}

// Error is a classified submission failure. Err carries the technical
// detail for logging; Category selects the support code.
type Error struct {
	Category Category
	Status   int // HTTP status, 0 for transport/decode failures
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("analysis service: %s (status %d): %v", e.Category, e.Status, e.Err)
	}
	return fmt.Sprintf("analysis service: %s: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// maxErrorBody bounds how much of an error response body is read for logs.
const maxErrorBody = 4 << 10

// Client talks to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. The timeout bounds
// each Analyze call end to end; the per-request context can shorten it
// further but not extend it.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze submits the CSV bytes under the original filename and returns the
// decoded result. The request is aborted when ctx is cancelled. Failures
// are returned as *Error with a category; callers reduce them to a single
// generic user message and log the detail.
func (c *Client) Analyze(ctx context.Context, filename string, csvData io.Reader) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, csvData); err != nil {
		return nil, fmt.Errorf("read csv data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart form: %w", err)
	}

	url := c.baseURL + "/api/upload-csv"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Category: CategoryUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Category: classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Category: CategoryBadResponse, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &result, nil
}

// classifyStatus maps an HTTP status to a failure category.
func classifyStatus(status int) Category {
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return CategoryTooLarge
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CategoryInvalidFile
	default:
		return CategoryUnavailable
	}
}
