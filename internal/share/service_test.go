package share

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"oszshare/internal/config"
	"oszshare/internal/detect"
	"oszshare/internal/history"
	"oszshare/internal/packager"
	"oszshare/internal/retry"
	"oszshare/internal/shareapi"
	"oszshare/internal/testsupport"
)

type fakeDetector struct {
	mu      sync.Mutex
	last    *detect.Info
	current *detect.Info
	err     error
	calls   int
}

func (f *fakeDetector) DetectCurrent(context.Context) (*detect.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.current != nil {
		f.last = f.current
	}
	return f.current, nil
}

func (f *fakeDetector) Last() *detect.Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeUploader struct {
	mu        sync.Mutex
	failures  int
	alwaysErr error
	block     chan struct{}
	entered   chan struct{}
	calls     int
	archives  []string
	existed   []bool
	expiries  []int
}

func (f *fakeUploader) Upload(ctx context.Context, archive string, expiry int) (shareapi.Result, error) {
	f.mu.Lock()
	f.calls++
	f.archives = append(f.archives, archive)
	_, statErr := os.Stat(archive)
	f.existed = append(f.existed, statErr == nil)
	f.expiries = append(f.expiries, expiry)
	call := f.calls
	block := f.block
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return shareapi.Result{}, ctx.Err()
		}
	}
	if f.alwaysErr != nil {
		return shareapi.Result{}, f.alwaysErr
	}
	if call <= f.failures {
		return shareapi.Result{}, errors.New("connection reset")
	}
	return shareapi.Result{
		ID:        "abc123",
		URL:       "https://share.test/d/abc123",
		ExpiresAt: time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
		SizeBytes: 42,
	}, nil
}

func (f *fakeUploader) BaseURL() string { return "https://share.test" }

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (f *fakeRecorder) Record(_ context.Context, e history.Entry) (history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return e, nil
}

func newFixture(t *testing.T) (*config.Config, *detect.Info) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	dir := testsupport.WriteBeatmapSet(t, t.TempDir(), "100 Artist - Title", map[string]string{
		"Artist - Title (Mapper) [Hard].osu": testsupport.Descriptor{Title: "Title", Artist: "Artist", Version: "Hard"}.Render(),
		"audio.mp3":                          "audio",
	})
	return cfg, &detect.Info{SetDir: dir, Artist: "Artist", Title: "Title", Difficulty: "Hard"}
}

func newService(cfg *config.Config, det Detector, up Uploader, rec Recorder) *Service {
	deps := Dependencies{
		Detector: det,
		Packager: packager.New(cfg.ArchiveDir(), nil),
		Uploader: up,
		Recorder: rec,
	}
	return NewService(cfg, deps, nil, WithRetryDelays(0, 0, 0))
}

func TestShareUsesLastDetectionAndCleansUp(t *testing.T) {
	cfg, info := newFixture(t)
	det := &fakeDetector{last: info}
	up := &fakeUploader{}
	rec := &fakeRecorder{}

	outcome, err := newService(cfg, det, up, rec).Share(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if det.calls != 0 {
		t.Fatalf("expected no fresh detection, got %d calls", det.calls)
	}
	if outcome.Result.URL != "https://share.test/d/abc123" || outcome.SetDir != info.SetDir {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.ExpiryMinutes != cfg.Expiry.DefaultMinutes {
		t.Fatalf("expected default expiry, got %d", outcome.ExpiryMinutes)
	}
	if len(up.existed) != 1 || !up.existed[0] {
		t.Fatal("expected archive to exist during upload")
	}
	if _, err := os.Stat(up.archives[0]); !os.IsNotExist(err) {
		t.Fatalf("expected archive removed after upload, stat err=%v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].ShareID != "abc123" || rec.entries[0].Title != "Title" {
		t.Fatalf("unexpected history entries %+v", rec.entries)
	}
}

func TestShareDetectsWhenLastSetIsGone(t *testing.T) {
	cfg, info := newFixture(t)
	det := &fakeDetector{last: &detect.Info{SetDir: "/nonexistent/set"}, current: info}
	up := &fakeUploader{}

	outcome, err := newService(cfg, det, up, nil).Share(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if det.calls != 1 {
		t.Fatalf("expected one detection, got %d", det.calls)
	}
	if outcome.SetDir != info.SetDir {
		t.Fatalf("unexpected set dir %q", outcome.SetDir)
	}
}

func TestShareNoBeatmap(t *testing.T) {
	cfg, _ := newFixture(t)
	up := &fakeUploader{}
	_, err := newService(cfg, &fakeDetector{}, up, nil).Share(context.Background(), Request{})
	if !errors.Is(err, ErrNoBeatmap) {
		t.Fatalf("expected ErrNoBeatmap, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("expected no upload, got %d", up.calls)
	}
}

func TestShareRetriesUpload(t *testing.T) {
	cfg, info := newFixture(t)
	up := &fakeUploader{failures: 2}
	if _, err := newService(cfg, &fakeDetector{last: info}, up, nil).Share(context.Background(), Request{}); err != nil {
		t.Fatalf("Share: %v", err)
	}
	if up.calls != 3 {
		t.Fatalf("expected 3 upload attempts, got %d", up.calls)
	}
	for i, archive := range up.archives {
		if archive != up.archives[0] {
			t.Fatalf("attempt %d used a different archive", i)
		}
	}
}

func TestShareExhaustedRemovesArchive(t *testing.T) {
	cfg, info := newFixture(t)
	up := &fakeUploader{alwaysErr: &shareapi.APIError{StatusCode: 503, Body: "down"}}
	_, err := newService(cfg, &fakeDetector{last: info}, up, nil).Share(context.Background(), Request{})
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 4 || up.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d (calls %d)", exhausted.Attempts, up.calls)
	}
	var apiErr *shareapi.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
	if _, statErr := os.Stat(up.archives[0]); !os.IsNotExist(statErr) {
		t.Fatalf("expected archive removed, stat err=%v", statErr)
	}
}

func TestShareClampsExpiry(t *testing.T) {
	cfg, info := newFixture(t)
	up := &fakeUploader{}
	if _, err := newService(cfg, &fakeDetector{last: info}, up, nil).Share(context.Background(), Request{ExpiryMinutes: 500}); err != nil {
		t.Fatalf("Share: %v", err)
	}
	if up.expiries[0] != cfg.Expiry.MaxMinutes {
		t.Fatalf("expected expiry clamped to %d, got %d", cfg.Expiry.MaxMinutes, up.expiries[0])
	}
}

func TestShareRejectsConcurrentUpload(t *testing.T) {
	cfg, info := newFixture(t)
	up := &fakeUploader{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := newService(cfg, &fakeDetector{last: info}, up, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Share(context.Background(), Request{})
		done <- err
	}()

	select {
	case <-up.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first upload never started")
	}
	if !svc.Busy() {
		t.Fatal("expected service busy")
	}
	if _, err := svc.Share(context.Background(), Request{}); !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("expected ErrUploadInProgress, got %v", err)
	}

	close(up.block)
	if err := <-done; err != nil {
		t.Fatalf("first share: %v", err)
	}
	if svc.Busy() {
		t.Fatal("expected service idle")
	}
}

func TestShareRejectsWhenFileLockHeld(t *testing.T) {
	cfg, info := newFixture(t)
	other := flock.New(cfg.UploadLockPath())
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("acquire external lock: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	up := &fakeUploader{}
	_, err = newService(cfg, &fakeDetector{last: info}, up, nil).Share(context.Background(), Request{})
	if !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("expected ErrUploadInProgress, got %v", err)
	}
	if up.calls != 0 {
		t.Fatal("expected no upload while lock held")
	}
}

func TestShareCancelledDuringUpload(t *testing.T) {
	cfg, info := newFixture(t)
	up := &fakeUploader{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc := newService(cfg, &fakeDetector{last: info}, up, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-up.entered
		cancel()
	}()
	_, err := svc.Share(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if up.calls != 1 {
		t.Fatalf("cancellation must not be retried, got %d calls", up.calls)
	}
	if _, statErr := os.Stat(up.archives[0]); !os.IsNotExist(statErr) {
		t.Fatalf("expected archive removed, stat err=%v", statErr)
	}
}

func TestShareExplicitSetDir(t *testing.T) {
	cfg, info := newFixture(t)
	det := &fakeDetector{}
	outcome, err := newService(cfg, det, &fakeUploader{}, nil).Share(context.Background(), Request{SetDir: info.SetDir})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}
	if det.calls != 0 || outcome.Beatmap != nil {
		t.Fatalf("expected detection bypassed, calls=%d beatmap=%v", det.calls, outcome.Beatmap)
	}
}
