// Package daemonctl talks to a running oszshare daemon over its local HTTP
// API.
package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"oszshare/internal/daemon"
	"oszshare/internal/detect"
	"oszshare/internal/endpoint"
	"oszshare/internal/history"
	"oszshare/internal/share"
)

// ErrDaemonUnavailable is returned when no daemon answers on the API address.
var ErrDaemonUnavailable = errors.New("oszshare daemon is not running")

// ErrNoBeatmap mirrors the daemon's 404 for /api/current and /api/share.
var ErrNoBeatmap = errors.New("no beatmap detected")

// RequestError carries a non-success API response.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the daemon API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// New returns a client for the daemon bound at bind (host:port).
func New(bind, token string) *Client {
	bind = strings.TrimSpace(bind)
	host, port, err := net.SplitHostPort(bind)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		bind = net.JoinHostPort("127.0.0.1", port)
	}
	return &Client{
		base:  "http://" + bind,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (daemon.Status, error) {
	var status daemon.Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Current fetches the current beatmap, optionally forcing a fresh detection.
func (c *Client) Current(ctx context.Context, refresh bool) (*detect.Info, error) {
	path := "/api/current"
	if refresh {
		path += "?refresh=true"
	}
	var info detect.Info
	if err := c.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Share asks the daemon to share the current beatmap.
func (c *Client) Share(ctx context.Context, req daemon.ShareRequest) (*share.Outcome, error) {
	var outcome share.Outcome
	if err := c.do(ctx, http.MethodPost, "/api/share", req, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// Shares lists recent shares.
func (c *Client) Shares(ctx context.Context, limit int) ([]history.Entry, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	var resp struct {
		Shares []history.Entry `json:"shares"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/shares?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Shares, nil
}

// ResolveEndpoint asks the daemon to re-probe share servers.
func (c *Client) ResolveEndpoint(ctx context.Context) (endpoint.Resolution, error) {
	var res endpoint.Resolution
	err := c.do(ctx, http.MethodPost, "/api/endpoint/resolve", nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("%w at %s", ErrDaemonUnavailable, c.base)
		}
		return fmt.Errorf("call daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		message := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		if resp.StatusCode == http.StatusNotFound && (path == "/api/current" || strings.HasPrefix(path, "/api/current?")) {
			return ErrNoBeatmap
		}
		return &RequestError{StatusCode: resp.StatusCode, Message: message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
