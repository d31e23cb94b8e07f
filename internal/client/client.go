// Package client is a typed client for the docrag HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

// DefaultServerURL is where docragd listens by default.
const DefaultServerURL = "http://127.0.0.1:8088"

// ErrInvalidURL is returned by New for unusable server URLs.
var ErrInvalidURL = errors.New("invalid server url")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client talks to one docragd server.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New returns a client for serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		http: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (httpapi.HealthResponse, error) {
	var out httpapi.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", "", nil, &out)
	return out, err
}

// Stats calls GET /api/v1/stats.
func (c *Client) Stats(ctx context.Context) (retrieval.Stats, error) {
	var out retrieval.Stats
	err := c.do(ctx, http.MethodGet, "/api/v1/stats", "", nil, &out)
	return out, err
}

// Retrieve calls POST /api/v1/retrieve. A non-positive topK lets the server
// choose its default.
func (c *Client) Retrieve(ctx context.Context, query string, topK int) (httpapi.RetrieveResponse, error) {
	body, err := json.Marshal(httpapi.RetrieveRequest{Query: query, TopK: topK})
	if err != nil {
		return httpapi.RetrieveResponse{}, fmt.Errorf("encoding request: %w", err)
	}
	var out httpapi.RetrieveResponse
	err = c.do(ctx, http.MethodPost, "/api/v1/retrieve", "application/json", bytes.NewReader(body), &out)
	return out, err
}

// Ingest uploads data as filename via POST /api/v1/documents.
func (c *Client) Ingest(ctx context.Context, filename string, data io.Reader) (retrieval.IngestResult, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return retrieval.IngestResult{}, fmt.Errorf("building upload: %w", err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return retrieval.IngestResult{}, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return retrieval.IngestResult{}, fmt.Errorf("building upload: %w", err)
	}

	var out retrieval.IngestResult
	err = c.do(ctx, http.MethodPost, "/api/v1/documents", w.FormDataContentType(), &body, &out)
	return out, err
}

// IngestFile uploads the file at path under its base name.
func (c *Client) IngestFile(ctx context.Context, path string) (retrieval.IngestResult, error) {
	f, err := os.Open(path) // #nosec G304 -- user-selected file
	if err != nil {
		return retrieval.IngestResult{}, err
	}
	defer f.Close()
	return c.Ingest(ctx, filepath.Base(path), f)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &msg) == nil && msg.Message != "" {
		apiErr.Message = msg.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
