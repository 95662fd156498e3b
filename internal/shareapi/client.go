package shareapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"oszshare/internal/logging"
	"oszshare/internal/services"
)

const (
	// SharesPath receives archive uploads.
	SharesPath = "/api/v1/shares"
	// UploadKeyHeader carries the optional pre-shared upload key.
	UploadKeyHeader = "X-Upload-Key"

	userAgent    = "oszshare/0.1.0"
	maxErrorBody = 4096
)

// ErrUnparseableResponse reports a success response without a usable body.
var ErrUnparseableResponse = errors.New("upload response could not be parsed")

// APIError is returned for non-success upload responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Upload failed (%d): %s", e.StatusCode, e.Body)
}

// Result is the share record created by a successful upload.
type Result struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	SizeBytes int64     `json:"size_bytes"`
}

type sharePayload struct {
	ID        *string    `json:"id"`
	URL       *string    `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
	SizeBytes *int64     `json:"size_bytes"`
}

// Client talks to the share server.
type Client struct {
	mu        sync.RWMutex
	baseURL   string
	uploadKey string
	http      *http.Client
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.NewComponentLogger(logger, "shareapi") }
}

// New returns a client for baseURL. An empty uploadKey sends no key header.
func New(baseURL, uploadKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:   trimBase(baseURL),
		uploadKey: strings.TrimSpace(uploadKey),
		http:      &http.Client{Timeout: 5 * time.Minute},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server the next upload will target.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL retargets subsequent uploads.
func (c *Client) SetBaseURL(baseURL string) {
	c.mu.Lock()
	c.baseURL = trimBase(baseURL)
	c.mu.Unlock()
}

// Upload streams the archive at archivePath and returns the created share.
func (c *Client) Upload(ctx context.Context, archivePath string, expiryMinutes int) (Result, error) {
	if strings.TrimSpace(archivePath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "shareapi", "upload", "archive path is required", nil)
	}
	info, err := os.Stat(archivePath)
	if err != nil || !info.Mode().IsRegular() {
		return Result{}, services.Wrap(services.ErrValidation, "shareapi", "upload", fmt.Sprintf("archive %q does not exist", archivePath), err)
	}
	base := c.BaseURL()
	if base == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "shareapi", "upload", "server base URL is not set", nil)
	}

	body, contentType := streamMultipart(archivePath, expiryMinutes)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+SharesPath, body)
	if err != nil {
		return Result{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.uploadKey != "" {
		req.Header.Set(UploadKeyHeader, c.uploadKey)
	}

	c.logger.Debug("upload request",
		logging.String("server", base),
		logging.String("archive", filepath.Base(archivePath)),
		logging.Int64("size_bytes", info.Size()),
		logging.Int("expiry_minutes", expiryMinutes),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("send upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return decodeResult(resp.Body)
}

func decodeResult(r io.Reader) (Result, error) {
	var payload sharePayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnparseableResponse, err)
	}
	if payload.ID == nil || payload.URL == nil || payload.ExpiresAt == nil || payload.SizeBytes == nil ||
		strings.TrimSpace(*payload.ID) == "" || strings.TrimSpace(*payload.URL) == "" {
		return Result{}, ErrUnparseableResponse
	}
	return Result{
		ID:        *payload.ID,
		URL:       *payload.URL,
		ExpiresAt: *payload.ExpiresAt,
		SizeBytes: *payload.SizeBytes,
	}, nil
}

// streamMultipart writes the form through a pipe so the archive is never
// buffered in memory.
func streamMultipart(archivePath string, expiryMinutes int) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, archivePath, expiryMinutes))
	}()
	return pr, mw.FormDataContentType()
}

func writeForm(mw *multipart.Writer, archivePath string, expiryMinutes int) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(archivePath)))
	header.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := mw.WriteField("expiry_minutes", strconv.Itoa(expiryMinutes)); err != nil {
		return err
	}
	return mw.Close()
}

func trimBase(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
