package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Descriptor holds the fields rendered into a minimal .osu file.
type Descriptor struct {
	Title         string
	TitleUnicode  string
	Artist        string
	ArtistUnicode string
	Version       string
	Background    string
	HP, CS, OD    float64
	AR            float64
}

// Render produces the .osu text for d.
func (d Descriptor) Render() string {
	var b strings.Builder
	b.WriteString("osu file format v14\n\n")
	b.WriteString("[General]\nAudioFilename: audio.mp3\nMode: 0\n\n")
	b.WriteString("[Metadata]\n")
	fmt.Fprintf(&b, "Title:%s\n", d.Title)
	if d.TitleUnicode != "" {
		fmt.Fprintf(&b, "TitleUnicode:%s\n", d.TitleUnicode)
	}
	fmt.Fprintf(&b, "Artist:%s\n", d.Artist)
	if d.ArtistUnicode != "" {
		fmt.Fprintf(&b, "ArtistUnicode:%s\n", d.ArtistUnicode)
	}
	fmt.Fprintf(&b, "Version:%s\n\n", d.Version)
	b.WriteString("[Difficulty]\n")
	fmt.Fprintf(&b, "HPDrainRate:%g\nCircleSize:%g\nOverallDifficulty:%g\nApproachRate:%g\n\n", d.HP, d.CS, d.OD, d.AR)
	b.WriteString("[Events]\n//Background and Video events\n")
	if d.Background != "" {
		fmt.Fprintf(&b, "0,0,\"%s\",0,0\n", d.Background)
	}
	b.WriteString("\n[HitObjects]\n256,192,1000,1,0,0:0:0:0:\n")
	return b.String()
}

// WriteBeatmapSet creates root/folder with the provided files and returns the
// set directory.
func WriteBeatmapSet(t testing.TB, root, folder string, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}
