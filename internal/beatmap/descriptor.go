package beatmap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotDescriptor is returned when input lacks the "osu file format" header.
var ErrNotDescriptor = errors.New("not an osu descriptor")

// Descriptor is the parsed subset of a .osu file.
type Descriptor struct {
	FormatVersion int
	Mode          int

	Title         string
	TitleUnicode  string
	Artist        string
	ArtistUnicode string
	Creator       string
	Version       string
	BeatmapID     int
	BeatmapSetID  int

	HPDrainRate       float64
	CircleSize        float64
	OverallDifficulty float64
	ApproachRate      float64
	SliderMultiplier  float64

	HitObjects int
}

// Parser turns descriptor text into a Descriptor.
type Parser interface {
	Parse(r io.Reader) (*Descriptor, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(r io.Reader) (*Descriptor, error)

func (f ParserFunc) Parse(r io.Reader) (*Descriptor, error) { return f(r) }

// OsuParser reads the key:value sections of a .osu file. Unknown sections
// and keys are ignored, as are numeric values that fail to parse.
type OsuParser struct{}

const formatHeader = "osu file format v"

func (OsuParser) Parse(r io.Reader) (*Descriptor, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	d := &Descriptor{ApproachRate: -1}
	headerSeen := false
	section := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !headerSeen {
			if !strings.HasPrefix(line, formatHeader) {
				return nil, ErrNotDescriptor
			}
			d.FormatVersion, _ = strconv.Atoi(strings.TrimSpace(line[len(formatHeader):]))
			headerSeen = true
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = line[1 : len(line)-1]
			continue
		}
		switch section {
		case "General", "Metadata", "Difficulty":
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			d.apply(strings.TrimSpace(key), strings.TrimSpace(value))
		case "HitObjects":
			d.HitObjects++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	if !headerSeen {
		return nil, ErrNotDescriptor
	}
	// Old formats omit ApproachRate and reuse OverallDifficulty.
	if d.ApproachRate < 0 {
		d.ApproachRate = d.OverallDifficulty
	}
	return d, nil
}

func (d *Descriptor) apply(key, value string) {
	switch key {
	case "Mode":
		d.Mode = atoi(value, d.Mode)
	case "Title":
		d.Title = value
	case "TitleUnicode":
		d.TitleUnicode = value
	case "Artist":
		d.Artist = value
	case "ArtistUnicode":
		d.ArtistUnicode = value
	case "Creator":
		d.Creator = value
	case "Version":
		d.Version = value
	case "BeatmapID":
		d.BeatmapID = atoi(value, d.BeatmapID)
	case "BeatmapSetID":
		d.BeatmapSetID = atoi(value, d.BeatmapSetID)
	case "HPDrainRate":
		d.HPDrainRate = atof(value, d.HPDrainRate)
	case "CircleSize":
		d.CircleSize = atof(value, d.CircleSize)
	case "OverallDifficulty":
		d.OverallDifficulty = atof(value, d.OverallDifficulty)
	case "ApproachRate":
		d.ApproachRate = atof(value, d.ApproachRate)
	case "SliderMultiplier":
		d.SliderMultiplier = atof(value, d.SliderMultiplier)
	}
}

func atoi(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func atof(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}
