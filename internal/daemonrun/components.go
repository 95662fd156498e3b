package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"oszshare/internal/beatmap"
	"oszshare/internal/config"
	"oszshare/internal/detect"
	"oszshare/internal/endpoint"
	"oszshare/internal/history"
	"oszshare/internal/livestate"
	"oszshare/internal/packager"
	"oszshare/internal/process"
	"oszshare/internal/share"
	"oszshare/internal/shareapi"
)

// Components holds the wired client engine shared by the daemon and the
// one-shot CLI commands.
type Components struct {
	Detector  *detect.Detector
	Metadata  *beatmap.Resolver
	Source    *livestate.WebsocketSource
	Packager  *packager.Packager
	Uploader  *shareapi.Client
	Endpoints *endpoint.Resolver
	History   *history.Store
	Share     *share.Service
}

// Build wires the engine from configuration. Detector options tune
// detection retries, for example for one-shot commands that start before the
// live-state feed has delivered a frame.
func Build(cfg *config.Config, logger *slog.Logger, detectOpts ...detect.Option) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open share history: %w", err)
	}

	source := livestate.NewWebsocketSource(
		cfg.Detection.LiveStateURL,
		time.Duration(cfg.Detection.StaleAfterSeconds)*time.Second,
		logger,
	)
	metadata := beatmap.NewResolver(logger, beatmap.WithRatingCalculator(feedRating(source)))
	detector := detect.New(
		process.NewLocator(process.SystemEnumerator{}, logger),
		process.NewSongsResolver(cfg.Paths.SongsDir, logger),
		livestate.NewReader(source, logger),
		metadata,
		logger,
		detectOpts...,
	)
	uploader := shareapi.New(cfg.Server.BaseURL, cfg.Server.UploadKey, shareapi.WithLogger(logger))
	pkg := packager.New(cfg.ArchiveDir(), logger)

	c := &Components{
		Detector:  detector,
		Metadata:  metadata,
		Source:    source,
		Packager:  pkg,
		Uploader:  uploader,
		Endpoints: endpoint.NewResolver(logger),
		History:   store,
	}
	c.Share = share.NewService(cfg, share.Dependencies{
		Detector: detector,
		Packager: pkg,
		Uploader: uploader,
		Recorder: store,
	}, logger)
	return c, nil
}

// Close releases the live-state connection and the history database.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Source != nil {
		errs = append(errs, c.Source.Close())
	}
	if c.History != nil {
		errs = append(errs, c.History.Close())
	}
	return errors.Join(errs...)
}
