// SPDX-License-Identifier: MIT

// Command reelcastd is the recording daemon: it captures the desktop,
// encodes live, transcodes to the deliverable MP4 and publishes the result,
// all driven over a small HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reelcast/reelcast/internal/api"
	"github.com/reelcast/reelcast/internal/capture"
	"github.com/reelcast/reelcast/internal/capture/desktop"
	"github.com/reelcast/reelcast/internal/config"
	"github.com/reelcast/reelcast/internal/encode/ffmpegenc"
	"github.com/reelcast/reelcast/internal/log"
	"github.com/reelcast/reelcast/internal/notify"
	"github.com/reelcast/reelcast/internal/publish"
	"github.com/reelcast/reelcast/internal/recorder"
	"github.com/reelcast/reelcast/internal/thumbnail"
	"github.com/reelcast/reelcast/internal/transcode"
	"github.com/reelcast/reelcast/internal/upload"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reelcastd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reelcastd: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "reelcast"})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, configPath string) error {
	logger := log.WithComponent("daemon")
	logger.Info().
		Str("version", version).
		Str("addr", cfg.Listen).
		Str("work_dir", cfg.WorkDir).
		Msg("starting reelcastd")

	if cfg.Publish.BaseURL == "" {
		logger.Warn().Msg("publish.baseUrl not configured, recordings cannot be published")
	}

	ffmpeg := transcode.NewFFmpeg(cfg.FFmpeg.Bin, cfg.FFmpeg.ProbeBin, cfg.WorkDir, cfg.FFmpeg.KillGrace)
	sink := notify.New(cfg.Notify.Endpoint, cfg.Notify.TicksPerSec)

	rec := recorder.New(recorder.Deps{
		Capture: capture.NewManager(desktop.NewProvider(desktop.Config{
			Display:     cfg.Capture.Display,
			PulseDevice: cfg.Capture.PulseDevice,
			FrameRate:   cfg.Capture.FrameRate,
		})),
		Encoders:   ffmpegenc.NewFactory(cfg.FFmpeg.Bin, cfg.FFmpeg.KillGrace),
		Transcoder: ffmpeg,
		Thumbnails: thumbnail.New(cfg.FFmpeg.Bin, ffmpeg, 0),
		Publisher:  publish.NewClient(cfg.Publish.BaseURL, cfg.Publish.APIToken, cfg.Publish.Timeout),
		Uploader:   upload.New(sink, cfg.Upload.Timeout),
	}, recorder.Config{
		WorkDir:  cfg.WorkDir,
		OrgID:    cfg.Publish.OrgID,
		FolderID: cfg.Publish.FolderID,
	})
	defer rec.Close()

	server := &http.Server{
		Addr: cfg.Listen,
		Handler: api.New(rec, api.Options{
			RateLimit:  cfg.API.RateLimit,
			RateWindow: cfg.API.RateWindow,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Listen).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if configPath != "" {
		g.Go(func() error {
			// Hot reload covers the log level only; everything else needs a
			// restart because the pipeline holds the old values.
			return config.Watch(ctx, configPath, func(next config.Config) {
				log.SetLevel(next.LogLevel)
				logger.Info().Str("level", next.LogLevel).Msg("log level reloaded")
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
