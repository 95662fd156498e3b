package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"oszshare/internal/detect"
	"oszshare/internal/logging"
)

const defaultDetectInterval = 2 * time.Second

// monitor polls the detector on a ticker and logs transitions.
type monitor struct {
	detector Detector
	interval time.Duration
	logger   *slog.Logger

	lastKey string
	missing bool
}

func newMonitor(detector Detector, interval time.Duration, logger *slog.Logger) *monitor {
	if interval <= 0 {
		interval = defaultDetectInterval
	}
	return &monitor{
		detector: detector,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "monitor"),
	}
}

func (m *monitor) run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *monitor) poll(ctx context.Context) {
	info, err := m.detector.DetectCurrent(ctx)
	switch {
	case errors.Is(err, detect.ErrDetectionInProgress):
		return
	case err != nil:
		if ctx.Err() == nil {
			m.logger.Debug("detection error", logging.Error(err))
		}
		return
	}

	if info == nil {
		if !m.missing {
			m.missing = true
			logging.WarnWithContext(m.logger, "no beatmap detected", "detection_miss",
				logging.String(logging.FieldErrorHint, "start osu! and open a beatmap"),
				logging.String(logging.FieldImpact, "shares use the last detected beatmap"),
			)
		}
		return
	}

	if m.missing {
		m.missing = false
		m.logger.Debug("detection recovered")
	}
	key := info.SetDir + "|" + info.DescriptorPath
	if key == m.lastKey {
		return
	}
	m.lastKey = key

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "beatmap_detected"),
		logging.String("artist", info.Artist),
		logging.String("title", info.Title),
		logging.String("difficulty", info.Difficulty),
		logging.String("set_dir", info.SetDir),
	}
	if info.StarRating != nil {
		attrs = append(attrs, logging.Float64("star_rating", *info.StarRating))
	}
	m.logger.Info("beatmap detected", logging.Args(attrs...)...)
}
