// Package api talks to the scoreboard server that collects exported runs.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/navscore/pkg/core"
)

const (
	healthPath = "/healthcheck"
	uploadPath = "/api/v1/runs/add"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Client handles communication with the scoreboard server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new API client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Healthcheck checks if the scoreboard server is reachable.
func (c *Client) Healthcheck() error {
	return c.HealthcheckContext(context.Background())
}

// HealthcheckContext is Healthcheck bound to ctx.
func (c *Client) HealthcheckContext(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("healthcheck request: %w", err)
	}
	return c.do(req, "healthcheck")
}

// uploadFields lists the form fields sent along with the file.
func (c *Client) uploadFields(name string, meta core.UploadMetadata) [][2]string {
	return [][2]string{
		{"secret", c.apiKey},
		{"filename", name},
		{"courseName", meta.CourseName},
		{"vehicle", meta.Vehicle},
		{"runId", meta.RunID},
		{"runDuration", strconv.FormatFloat(meta.RunDuration, 'f', 6, 64)},
		{"crossed", strconv.Itoa(meta.Crossed)},
		{"invalid", strconv.Itoa(meta.Invalid)},
	}
}

// Upload sends an exported score file to the scoreboard server.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	return c.UploadContext(context.Background(), filePath, meta)
}

// UploadContext is Upload bound to ctx. Score exports are small, so the
// whole form is built in memory before the request is sent.
func (c *Client) UploadContext(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer file.Close()

	name := filepath.Base(filePath)
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, f := range c.uploadFields(name, meta) {
		if err := form.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy export: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return fmt.Errorf("upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	return c.do(req, "upload")
}

// do sends req and turns any non-200 answer into an error carrying the
// start of the response body.
func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if s := strings.TrimSpace(string(msg)); s != "" {
		return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, s)
	}
	return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
}
