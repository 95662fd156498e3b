package beatmap

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"oszshare/internal/logging"
)

// Metadata is the display information resolved for one difficulty.
type Metadata struct {
	Artist     string
	Title      string
	Difficulty string
	StarRating *float64

	// BackgroundRef is the validated set-relative background reference from
	// the descriptor. BackgroundPath is resolved from it on every call so a
	// removed image is never reported.
	BackgroundRef  string
	BackgroundPath string
}

func (m Metadata) clone() Metadata {
	if m.StarRating != nil {
		rating := *m.StarRating
		m.StarRating = &rating
	}
	return m
}

// Resolver produces Metadata for descriptor files, caching the last result.
type Resolver struct {
	parser   Parser
	rating   RatingCalculator
	cache    *Cache
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParser replaces the default .osu parser.
func WithParser(p Parser) Option {
	return func(r *Resolver) { r.parser = p }
}

// WithRatingCalculator enables star ratings.
func WithRatingCalculator(c RatingCalculator) Option {
	return func(r *Resolver) { r.rating = c }
}

// WithCache shares an existing cache.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithFileReader overrides how descriptor bytes are loaded.
func WithFileReader(fn func(string) ([]byte, error)) Option {
	return func(r *Resolver) { r.readFile = fn }
}

// NewResolver builds a resolver with the default parser and no rating.
func NewResolver(logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		parser:   OsuParser{},
		cache:    &Cache{},
		logger:   logging.NewComponentLogger(logger, "metadata"),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache exposes the resolver's single-slot cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve returns metadata for the descriptor at descriptorPath inside
// setDir. It never fails; missing information falls back to names derived
// from the folder and file. A cache hit does not read the descriptor, but the
// background path is checked against the disk each time.
func (r *Resolver) Resolve(descriptorPath, setDir string) Metadata {
	meta, ok := r.cache.Get(descriptorPath)
	if !ok {
		meta = r.load(descriptorPath, setDir)
		r.cache.Put(descriptorPath, meta)
	}
	meta.BackgroundPath = ResolveBackground(setDir, meta.BackgroundRef)
	return meta
}

func (r *Resolver) load(descriptorPath, setDir string) Metadata {

	artist, title := InferArtistTitle(folderName(setDir))
	difficulty := difficultyFromFile(descriptorPath)
	var rating *float64
	var backgroundRef string

	raw, err := r.readFile(descriptorPath)
	if err != nil {
		r.logger.Debug("descriptor read failed; using folder metadata",
			logging.String("path", descriptorPath),
			logging.Error(err),
		)
	} else {
		text := decodeText(raw)
		desc, err := r.parse(text)
		if err != nil {
			r.logger.Debug("descriptor parse failed; using folder metadata",
				logging.String("path", descriptorPath),
				logging.Error(err),
			)
		} else {
			title = preferUnicode(desc.TitleUnicode, desc.Title, title)
			artist = preferUnicode(desc.ArtistUnicode, desc.Artist, artist)
			if v := strings.TrimSpace(desc.Version); v != "" {
				difficulty = v
			}
			rating = r.calculate(desc, descriptorPath)
		}
		backgroundRef = FindBackground(text)
	}

	if strings.TrimSpace(artist) == "" {
		artist = UnknownArtist
	}
	if strings.TrimSpace(difficulty) == "" {
		difficulty = UnknownDifficulty
	}
	if strings.TrimSpace(title) == "" {
		title = difficulty
	}

	return Metadata{
		Artist:        artist,
		Title:         title,
		Difficulty:    difficulty,
		StarRating:    rating,
		BackgroundRef: backgroundRef,
	}
}

func (r *Resolver) parse(text string) (desc *Descriptor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("descriptor parser panic: %v", rec)
		}
	}()
	desc, err = r.parser.Parse(strings.NewReader(text))
	if err == nil && desc == nil {
		err = ErrNotDescriptor
	}
	return desc, err
}

func (r *Resolver) calculate(desc *Descriptor, path string) *float64 {
	if r.rating == nil {
		return nil
	}
	value, err := calculateSafely(r.rating, desc)
	if err != nil {
		r.logger.Debug("star rating unavailable",
			logging.String("path", path),
			logging.Error(err),
		)
		return nil
	}
	rounded, ok := roundRating(value)
	if !ok {
		return nil
	}
	return &rounded
}

func preferUnicode(unicodeValue, asciiValue, fallback string) string {
	if v := strings.TrimSpace(unicodeValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(asciiValue); v != "" {
		return v
	}
	return fallback
}

// decodeText converts descriptor bytes to a string, honouring a UTF-8 or
// UTF-16 byte order mark.
func decodeText(raw []byte) string {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return string(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	}
	return string(out)
}
