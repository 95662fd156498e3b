package services_test

import (
	"errors"
	"strings"
	"testing"

	"oszshare/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "packager", "zip", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"packager", "zip", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestHintMapping(t *testing.T) {
	if hint := services.Hint(services.Wrap(services.ErrBusy, "share", "upload", "in progress", nil)); !strings.Contains(hint, "wait") {
		t.Fatalf("unexpected busy hint %q", hint)
	}
	if hint := services.Hint(services.Wrap(services.ErrNotFound, "share", "detect", "no beatmap", nil)); !strings.Contains(hint, "beatmap") {
		t.Fatalf("unexpected not found hint %q", hint)
	}
	if hint := services.Hint(nil); hint != "" {
		t.Fatalf("expected empty hint for nil, got %q", hint)
	}
}
