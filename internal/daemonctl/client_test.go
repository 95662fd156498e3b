package daemonctl

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"oszshare/internal/daemon"
	"oszshare/internal/detect"
	"oszshare/internal/share"
	"oszshare/internal/shareapi"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(strings.TrimPrefix(srv.URL, "http://"), "tok")
}

func TestStatusSendsToken(t *testing.T) {
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(daemon.Status{Running: true, Server: "https://s"})
	})
	status, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Server != "https://s" {
		t.Fatalf("unexpected status %+v", status)
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestCurrentNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("refresh") != "true" {
			t.Errorf("expected refresh query, got %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no beatmap detected"}`))
	})
	if _, err := c.Current(context.Background(), true); !errors.Is(err, ErrNoBeatmap) {
		t.Fatalf("expected ErrNoBeatmap, got %v", err)
	}
}

func TestCurrentDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(detect.Info{Title: "T", SetDir: "/s"})
	})
	info, err := c.Current(context.Background(), false)
	if err != nil || info.Title != "T" {
		t.Fatalf("Current = %+v, %v", info, err)
	}
}

func TestShareReportsConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"busy: upload already in progress"}`))
	})
	_, err := c.Share(context.Background(), daemon.ShareRequest{})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusConflict || !strings.Contains(reqErr.Message, "upload already in progress") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSharePostsBody(t *testing.T) {
	var got daemon.ShareRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(share.Outcome{Result: shareapi.Result{ID: "x", URL: "https://s/d/x"}})
	})
	outcome, err := c.Share(context.Background(), daemon.ShareRequest{ExpiryMinutes: 30})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if got.ExpiryMinutes != 30 || outcome.Result.URL != "https://s/d/x" {
		t.Fatalf("request %+v outcome %+v", got, outcome)
	}
}

func TestUnavailableDaemon(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	_, err = New(addr, "").Status(context.Background())
	if !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("expected ErrDaemonUnavailable, got %v", err)
	}
}

func TestNewRewritesWildcardHost(t *testing.T) {
	if got := New("0.0.0.0:7490", "").base; got != "http://127.0.0.1:7490" {
		t.Fatalf("base = %q", got)
	}
	if got := New(":7490", "").base; got != "http://127.0.0.1:7490" {
		t.Fatalf("base = %q", got)
	}
}
