package beatmap

import (
	"runtime"
	"testing"
)

func TestValidateRelative(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"simple file", "bg.jpg", true},
		{"nested", "sb/bg.png", true},
		{"blank", "   ", false},
		{"empty", "", false},
		{"parent", "../secret.png", false},
		{"embedded parent", "sb/../../x.png", false},
		{"rooted slash", "/etc/passwd", false},
		{"rooted backslash", `\Windows\win.ini`, false},
		{"nul", "bg\x00.jpg", false},
	}
	if runtime.GOOS == "windows" {
		tests = append(tests,
			struct {
				name  string
				value string
				want  bool
			}{"drive", `C:\bg.jpg`, false},
			struct {
				name  string
				value string
				want  bool
			}{"pipe", "a|b.jpg", false},
		)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRelative(tt.value); got != tt.want {
				t.Fatalf("ValidateRelative(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestInvalidPathRuneWindowsSet(t *testing.T) {
	for _, r := range `<>:"|?*` + "\x01\x1f" {
		if !invalidPathRune("windows", r) {
			t.Errorf("windows should reject %q", r)
		}
	}
	for _, r := range "abc _-.()[]&'" {
		if invalidPathRune("windows", r) {
			t.Errorf("windows should accept %q", r)
		}
	}
	for _, r := range `<>:"|?*` {
		if invalidPathRune("linux", r) {
			t.Errorf("linux should accept %q", r)
		}
	}
	if !invalidPathRune("linux", 0) {
		t.Error("linux should reject NUL")
	}
}
