package packager

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"oszshare/internal/services"
	"oszshare/internal/testsupport"
)

func TestPackageWritesEntriesAtRoot(t *testing.T) {
	setDir := testsupport.WriteBeatmapSet(t, t.TempDir(), "123 A - B", map[string]string{
		"map.osu":      "osu file format v14\n",
		"audio.mp3":    strings.Repeat("a", 4096),
		"sb/layer.png": "png",
	})
	if err := os.MkdirAll(filepath.Join(setDir, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	out := t.TempDir()
	p := New(out, nil)
	p.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	archive, err := p.Package(context.Background(), setDir)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if filepath.Dir(archive) != out {
		t.Fatalf("archive written outside scratch dir: %q", archive)
	}
	base := filepath.Base(archive)
	if !strings.HasPrefix(base, "osz-share-20260304050607-") || !strings.HasSuffix(base, ".osz") {
		t.Fatalf("unexpected archive name %q", base)
	}
	if token := strings.TrimSuffix(strings.TrimPrefix(base, "osz-share-20260304050607-"), ".osz"); len(token) != 32 {
		t.Fatalf("expected 32 hex token, got %q", token)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "audio.mp3" {
			rc, err := f.Open()
			if err != nil {
				t.Fatalf("open entry: %v", err)
			}
			data, _ := io.ReadAll(rc)
			rc.Close()
			if len(data) != 4096 {
				t.Fatalf("unexpected audio size %d", len(data))
			}
			if f.Method != zip.Deflate {
				t.Fatalf("expected deflate, got method %d", f.Method)
			}
		}
	}
	sort.Strings(names)
	want := []string{"audio.mp3", "empty/", "map.osu", "sb/layer.png"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
}

func TestPackageRejectsMissingDirectory(t *testing.T) {
	p := New(t.TempDir(), nil)
	_, err := p.Package(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPackageCancelledLeavesNothing(t *testing.T) {
	setDir := testsupport.WriteBeatmapSet(t, t.TempDir(), "set", map[string]string{"a.osu": "x", "b.osu": "y"})
	out := t.TempDir()
	p := New(out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Package(ctx, setDir); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no archive, found %d files", len(entries))
	}
}

func TestPackageFailureRemovesPartialArchive(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	setDir := testsupport.WriteBeatmapSet(t, t.TempDir(), "set", map[string]string{"a.osu": "x", "locked.mp3": "y"})
	locked := filepath.Join(setDir, "locked.mp3")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	out := t.TempDir()
	if _, err := New(out, nil).Package(context.Background(), setDir); err == nil {
		t.Fatal("expected packaging error")
	}
	entries, _ := os.ReadDir(out)
	if len(entries) != 0 {
		t.Fatalf("expected partial archive removed, found %d files", len(entries))
	}
}

func TestPackageFollowsSymlinkedSetAndFiles(t *testing.T) {
	base := t.TempDir()
	realSet := testsupport.WriteBeatmapSet(t, base, "real", map[string]string{
		"map.osu": "osu file format v14\n",
	})
	shared := filepath.Join(base, "shared-audio.mp3")
	if err := os.WriteFile(shared, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(shared, filepath.Join(realSet, "audio.mp3")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(base, filepath.Join(realSet, "loop")); err != nil {
		t.Fatal(err)
	}
	linkedSet := filepath.Join(base, "123 A - B")
	if err := os.Symlink(realSet, linkedSet); err != nil {
		t.Fatal(err)
	}

	archive, err := New(t.TempDir(), nil).Package(context.Background(), linkedSet)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(data)
	}
	if len(contents) != 2 || contents["audio.mp3"] != "audio" || contents["map.osu"] == "" {
		t.Fatalf("unexpected archive contents %v", contents)
	}
}
