package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"oszshare/internal/config"
	"oszshare/internal/detect"
	"oszshare/internal/endpoint"
	"oszshare/internal/history"
	"oszshare/internal/services"
	"oszshare/internal/share"
	"oszshare/internal/shareapi"
	"oszshare/internal/testsupport"
)

type stubDetector struct {
	mu      sync.Mutex
	results []*detect.Info
	err     error
	calls   int
	last    *detect.Info
}

func (s *stubDetector) DetectCurrent(context.Context) (*detect.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) == 0 {
		return nil, nil
	}
	info := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	if info != nil {
		s.last = info
	}
	return info, nil
}

func (s *stubDetector) Last() *detect.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *stubDetector) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSharer struct {
	mu      sync.Mutex
	err     error
	outcome *share.Outcome
	reqs    []share.Request
	ctxs    []context.Context
	busy    bool
}

func (s *stubSharer) Share(ctx context.Context, req share.Request) (*share.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	s.ctxs = append(s.ctxs, ctx)
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func (s *stubSharer) Busy() bool { return s.busy }

type stubResolver struct {
	res   endpoint.Resolution
	err   error
	calls int
}

func (s *stubResolver) Resolve(context.Context, string) (endpoint.Resolution, error) {
	s.calls++
	return s.res, s.err
}

type stubServer struct {
	mu  sync.Mutex
	url string
}

func (s *stubServer) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *stubServer) SetBaseURL(u string) {
	s.mu.Lock()
	s.url = u
	s.mu.Unlock()
}

type stubHistory struct {
	entries []history.Entry
}

func (s *stubHistory) Last(context.Context) (*history.Entry, error) {
	if len(s.entries) == 0 {
		return nil, nil
	}
	e := s.entries[0]
	return &e, nil
}

func (s *stubHistory) List(_ context.Context, limit int) ([]history.Entry, error) {
	if limit > 0 && limit < len(s.entries) {
		return s.entries[:limit], nil
	}
	return s.entries, nil
}

type fixture struct {
	cfg      *config.Config
	detector *stubDetector
	sharer   *stubSharer
	resolver *stubResolver
	server   *stubServer
	history  *stubHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		cfg:      testsupport.NewConfig(t),
		detector: &stubDetector{},
		sharer:   &stubSharer{},
		resolver: &stubResolver{},
		server:   &stubServer{url: "https://configured.test"},
		history:  &stubHistory{},
	}
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Detector:  f.detector,
		Sharer:    f.sharer,
		Endpoints: f.resolver,
		Server:    f.server,
		History:   f.history,
	}
}

func (f *fixture) daemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := New(f.cfg, f.deps(), nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(testsupport.NewConfig(t), Dependencies{}, nil, ""); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartStopSingleInstance(t *testing.T) {
	f := newFixture(t)
	first := f.daemon(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !first.Running() {
		t.Fatal("expected daemon running")
	}
	if first.APIAddress() == "" {
		t.Fatal("expected api address")
	}

	second, err := New(f.cfg, f.deps(), nil, "")
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected ErrBusy for second instance, got %v", err)
	}

	first.Stop()
	if first.Running() {
		t.Fatal("expected daemon stopped")
	}
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after stop: %v", err)
	}
	second.Stop()
}

func TestStartResolvesEndpointWhenAutoDetect(t *testing.T) {
	f := newFixture(t)
	f.cfg.Server.AutoDetect = true
	f.resolver.res = endpoint.Resolution{OK: true, BaseURL: "http://localhost:5088", AutoDetected: true}
	d := f.daemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for f.server.BaseURL() != "http://localhost:5088" {
		if time.Now().After(deadline) {
			t.Fatalf("server not retargeted, still %q", f.server.BaseURL())
		}
		time.Sleep(10 * time.Millisecond)
	}
	d.Stop()
}

func TestStartPollsDetector(t *testing.T) {
	f := newFixture(t)
	f.cfg.Detection.IntervalSeconds = 1
	f.detector.results = []*detect.Info{{SetDir: "/songs/1", Title: "T"}}
	d := f.daemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for f.detector.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("detector never polled")
		}
		time.Sleep(10 * time.Millisecond)
	}
	d.Stop()
	if got := d.Status(context.Background()).Current; got == nil || got.SetDir != "/songs/1" {
		t.Fatalf("unexpected current %+v", got)
	}
}

func TestResolveEndpointKeepsServerWhenUnhealthy(t *testing.T) {
	f := newFixture(t)
	f.resolver.res = endpoint.Resolution{OK: false, BaseURL: "https://configured.test", Probes: []endpoint.Probe{{BaseURL: "https://configured.test", Reason: "timeout"}}}
	d := f.daemon(t)

	res, err := d.ResolveEndpoint(context.Background())
	if err != nil {
		t.Fatalf("ResolveEndpoint: %v", err)
	}
	if res.OK {
		t.Fatal("expected unhealthy resolution")
	}
	if f.server.BaseURL() != "https://configured.test" {
		t.Fatalf("server changed to %q", f.server.BaseURL())
	}
	if status := d.Status(context.Background()); status.Endpoint == nil || status.Endpoint.OK {
		t.Fatalf("expected stored resolution, got %+v", status.Endpoint)
	}
}

func TestResolveEndpointPropagatesCancellation(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = context.Canceled
	d := f.daemon(t)
	if _, err := d.ResolveEndpoint(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCurrentRefresh(t *testing.T) {
	f := newFixture(t)
	f.detector.last = &detect.Info{SetDir: "/old"}
	f.detector.results = []*detect.Info{{SetDir: "/new"}}
	d := f.daemon(t)

	info, err := d.Current(context.Background(), false)
	if err != nil || info == nil || info.SetDir != "/old" {
		t.Fatalf("Current cached = %+v, %v", info, err)
	}
	info, err = d.Current(context.Background(), true)
	if err != nil || info == nil || info.SetDir != "/new" {
		t.Fatalf("Current refresh = %+v, %v", info, err)
	}
}

func TestCurrentRefreshInProgressFallsBack(t *testing.T) {
	f := newFixture(t)
	f.detector.last = &detect.Info{SetDir: "/old"}
	f.detector.err = detect.ErrDetectionInProgress
	d := f.daemon(t)
	info, err := d.Current(context.Background(), true)
	if err != nil || info == nil || info.SetDir != "/old" {
		t.Fatalf("Current = %+v, %v", info, err)
	}
}

func TestShareCarriesRequestContext(t *testing.T) {
	f := newFixture(t)
	f.sharer.outcome = &share.Outcome{Result: shareapi.Result{ID: "x"}}
	d := f.daemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	reqCtx, cancel := context.WithCancel(services.WithRequestID(services.WithTrigger(context.Background(), "api"), "rid-1"))
	cancel()
	if _, err := d.Share(reqCtx, share.Request{ExpiryMinutes: 10}); err != nil {
		t.Fatalf("Share: %v", err)
	}
	got := f.sharer.ctxs[0]
	if got.Err() != nil {
		t.Fatal("share must not inherit caller cancellation")
	}
	if id, _ := services.RequestIDFromContext(got); id != "rid-1" {
		t.Fatalf("request id = %q", id)
	}
	if trigger, _ := services.TriggerFromContext(got); trigger != "api" {
		t.Fatalf("trigger = %q", trigger)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{share.ErrUploadInProgress, http.StatusConflict},
		{share.ErrNoBeatmap, http.StatusNotFound},
		{services.Wrap(services.ErrValidation, "share", "select", "bad dir", nil), http.StatusBadRequest},
		{&shareapi.APIError{StatusCode: 500, Body: "x"}, http.StatusBadGateway},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestShareAndStatusDuringStartStop(t *testing.T) {
	f := newFixture(t)
	f.sharer.outcome = &share.Outcome{}
	d := f.daemon(t)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := d.Share(services.WithTrigger(context.Background(), "api"), share.Request{}); err != nil {
				t.Errorf("Share: %v", err)
				return
			}
			_ = d.Status(context.Background())
		}
	}()

	for i := 0; i < 5; i++ {
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("Start #%d: %v", i, err)
		}
		if d.Status(context.Background()).StartedAt.IsZero() {
			t.Fatalf("expected start time while running (#%d)", i)
		}
		d.Stop()
	}
	close(done)
	wg.Wait()

	if !d.Status(context.Background()).StartedAt.IsZero() {
		t.Fatal("expected start time cleared after stop")
	}
	f.sharer.mu.Lock()
	defer f.sharer.mu.Unlock()
	if len(f.sharer.ctxs) == 0 {
		t.Fatal("expected concurrent shares to reach the sharer")
	}
	for _, ctx := range f.sharer.ctxs {
		if trigger, _ := services.TriggerFromContext(ctx); trigger != "api" {
			t.Fatalf("trigger = %q, want api", trigger)
		}
	}
}
