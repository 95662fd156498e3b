package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"oszshare/internal/endpoint"
)

const liveStateTimeout = 3 * time.Second

// CheckShareServer probes the configured share server's health endpoint.
// Local fallbacks are not consulted.
func CheckShareServer(ctx context.Context, baseURL, uploadKey string) Result {
	const name = "Share server"

	base := strings.TrimSpace(baseURL)
	if base == "" {
		return Result{Name: name, Detail: "missing base_url"}
	}

	if _, ok := endpoint.Normalize(base); !ok {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a valid server URL)", base)}
	}

	res, err := endpoint.NewResolver(nil, endpoint.WithFallbacks()).Resolve(ctx, base)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", base, err)}
	}
	if !res.OK {
		reason := "unreachable"
		if len(res.Probes) > 0 {
			reason = res.Probes[0].Reason
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", res.BaseURL, reason)}
	}
	detail := fmt.Sprintf("%s (healthy)", res.BaseURL)
	if strings.TrimSpace(uploadKey) == "" {
		detail = fmt.Sprintf("%s (healthy, no upload key)", res.BaseURL)
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLiveState verifies that the live-state websocket feed accepts a
// connection. The connection is closed immediately.
func CheckLiveState(ctx context.Context, url string) Result {
	const name = "Live state feed"

	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Detail: "missing live_state_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, liveStateTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: liveStateTimeout}
	conn, resp, err := dialer.DialContext(checkCtx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", url, summarizeDialError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (connected)", url)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, true)
}

// CheckReadableDirectory verifies that the directory exists and is readable.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, false)
}

func checkDirectory(name, path string, write bool) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := checkAccess(path, write); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	if write {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

func summarizeDialError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out (is tosu or gosumemory running?)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out (is tosu or gosumemory running?)"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "connection refused (is tosu or gosumemory running?)"
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return "not a websocket endpoint"
	}
	return err.Error()
}
