package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const DefaultTimeout = 60 * time.Second

// maxResponseSize bounds how much of a /process response is read.
const maxResponseSize = 8 << 20

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the extraction service: POST /process for extraction,
// GET /download/{session} for retrieval and GET /health for liveness.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid extraction url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid extraction url %q: scheme must be http or https", cfg.BaseURL)
	}

	schema, err := compileSchema(responseSchema())
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{},
		timeout:    timeout,
		schema:     schema,
		logger:     logger,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL.JoinPath(parts...).String()
}

// Process uploads a document and returns the service's successful result.
// Transport failures wrap ErrServiceUnreachable or ErrTimeout; any other
// unsuccessful outcome is a *ServiceError.
func (c *Client) Process(ctx context.Context, filename string, file io.Reader, templateID string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqID := uuid.New().String()
	start := time.Now()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeForm(mw, filename, file, templateID))
	}()
	// The writer goroutine must be finished with file before returning.
	defer func() {
		pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("process"), pr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.logger.Info("extraction.http.request",
		"req_id", reqID,
		"url", req.URL.String(),
		"filename", filename,
		"template", templateID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("extraction.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	c.logger.Info("extraction.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Server error: %d", resp.StatusCode),
			Body:       raw,
		}
	}

	if err := validatePayload(c.schema, raw); err != nil {
		c.logger.Warn("extraction.http.invalid_payload", "req_id", reqID, "error", err)
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: err.Error(), Body: raw}
	}

	res, err := DecodeResult(raw)
	if err != nil {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: err.Error(), Body: raw}
	}

	if !res.Succeeded() {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: failureMessage(res), Body: raw}
	}

	return res, nil
}

func failureMessage(res *Result) string {
	if res.Message != "" {
		return res.Message
	}
	if raw, ok := res.Extra["error"]; ok {
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return "Processing failed"
}

func writeForm(mw *multipart.Writer, filename string, file io.Reader, templateID string) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := mw.WriteField("template", templateID); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) transportError(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ErrServiceUnreachable, err)
}

// Artifact is a retrieved document. The caller closes Body.
type Artifact struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Disposition   string
}

// DownloadURL is the retrieval URL for a processed session.
func (c *Client) DownloadURL(sessionID, templateID string) string {
	u := c.baseURL.JoinPath("download", sessionID)
	q := u.Query()
	q.Set("template", templateID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Download opens the retrieval stream for a session. It is bounded only by
// ctx so large artifacts are not cut off by the extraction timeout.
func (c *Client) Download(ctx context.Context, sessionID, templateID string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(sessionID, templateID), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("extraction.download.send_error", "session_id", sessionID, "error", err)
		return nil, c.transportError(ctx, err)
	}

	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Server error: %d", resp.StatusCode),
			Body:       raw,
		}
	}

	c.logger.Info("extraction.download.response",
		"session_id", sessionID,
		"template", templateID,
		"content_type", resp.Header.Get("Content-Type"),
		"content_length", resp.ContentLength,
	)

	return &Artifact{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Disposition:   resp.Header.Get("Content-Disposition"),
	}, nil
}

// Health reports whether the service answers GET /health with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("health"), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return &ServiceError{StatusCode: resp.StatusCode}
	}
	return nil
}
