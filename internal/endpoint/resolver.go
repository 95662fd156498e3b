package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"oszshare/internal/logging"
)

const (
	// HealthPath is probed on every candidate.
	HealthPath = "/api/v1/health"
	// DefaultProbeTimeout bounds a single probe.
	DefaultProbeTimeout = 1500 * time.Millisecond
)

// LocalFallbacks are probed after the configured server.
var LocalFallbacks = []string{
	"http://localhost:5088",
	"http://127.0.0.1:5088",
	"http://localhost:5000",
	"http://127.0.0.1:5000",
}

// Probe is the outcome of probing one candidate.
type Probe struct {
	BaseURL string `json:"base_url"`
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	OK           bool    `json:"ok"`
	BaseURL      string  `json:"base_url"`
	AutoDetected bool    `json:"auto_detected"`
	Probes       []Probe `json:"probes"`
}

// Resolver probes share server candidates.
type Resolver struct {
	client    *http.Client
	timeout   time.Duration
	fallbacks []string
	logger    *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient replaces the probe client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.client = client }
}

// WithProbeTimeout replaces the per-probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFallbacks replaces LocalFallbacks.
func WithFallbacks(urls ...string) Option {
	return func(r *Resolver) { r.fallbacks = append([]string(nil), urls...) }
}

// NewResolver returns a Resolver with default fallbacks and timeout.
func NewResolver(logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		client:    &http.Client{},
		timeout:   DefaultProbeTimeout,
		fallbacks: LocalFallbacks,
		logger:    logging.NewComponentLogger(logger, "endpoint"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates returns the ordered, de-duplicated list of base URLs to probe.
// An unparseable configured URL is skipped.
func (r *Resolver) Candidates(configured string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		normalized, ok := Normalize(raw)
		if !ok {
			return
		}
		key := strings.ToLower(normalized)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, normalized)
	}
	add(configured)
	for _, fallback := range r.fallbacks {
		add(fallback)
	}
	if len(out) == 0 {
		out = append(out, LocalFallbacks[0])
	}
	return out
}

// Normalize reduces an absolute URL to scheme://host[:port].
func Normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", false
	}
	return strings.TrimRight(parsed.Scheme+"://"+parsed.Host, "/"), true
}

// Resolve probes candidates in order and returns the first healthy one. When
// none is healthy the result is not OK and BaseURL is the first candidate.
// Only cancellation of ctx produces an error.
func (r *Resolver) Resolve(ctx context.Context, configured string) (Resolution, error) {
	candidates := r.Candidates(configured)
	probes := make([]Probe, 0, len(candidates))

	for idx, base := range candidates {
		if err := ctx.Err(); err != nil {
			return Resolution{BaseURL: candidates[0], Probes: probes}, err
		}
		healthy, reason := r.probe(ctx, base)
		if err := ctx.Err(); err != nil {
			return Resolution{BaseURL: candidates[0], Probes: probes}, err
		}
		probes = append(probes, Probe{BaseURL: base, Healthy: healthy, Reason: reason})
		if healthy {
			r.logger.Info("share server selected",
				logging.String("base_url", base),
				logging.Bool("auto_detected", idx > 0),
				logging.String(logging.FieldEventType, "endpoint_selected"),
			)
			return Resolution{OK: true, BaseURL: base, AutoDetected: idx > 0, Probes: probes}, nil
		}
		r.logger.Debug("share server probe failed",
			logging.String("base_url", base),
			logging.String("reason", reason),
		)
	}

	logging.WarnWithContext(r.logger, "no healthy share server found", "endpoint_unavailable",
		logging.String("base_url", candidates[0]),
		logging.Int("candidates", len(candidates)),
		logging.String(logging.FieldErrorHint, "start the share server or fix server.base_url"),
		logging.String(logging.FieldImpact, "uploads will use the configured server and may fail"),
	)
	return Resolution{OK: false, BaseURL: candidates[0], Probes: probes}, nil
}

type healthPayload struct {
	Status string `json:"status"`
}

func (r *Resolver) probe(ctx context.Context, base string) (bool, string) {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, base+HealthPath, nil)
	if err != nil {
		return false, "invalid url"
	}
	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return false, "timeout"
		}
		return false, transportReason(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return false, "timeout"
		}
		return false, transportReason(err)
	}
	var payload healthPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Status != "ok" {
		return false, "unexpected health payload"
	}
	return true, ""
}

// transportReason names the class of a transport failure.
func transportReason(err error) string {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.As(err, &dnsErr):
		return "dns lookup failed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &opErr):
		return opErr.Op + " error"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return fmt.Sprintf("%T", urlErr.Err)
	}
	return fmt.Sprintf("%T", err)
}
