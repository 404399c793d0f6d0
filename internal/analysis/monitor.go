package analysis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/errors"
)

// settleInterval is how long a spool file must stay unchanged before it is
// considered fully written.
const settleInterval = 500 * time.Millisecond

// MonitorAnalysis watches a spool directory and evaluates every audio file
// that appears in it, continuously, as one monitoring session. Recorders
// drop their capture chunks here; processed files are left in place.
func MonitorAnalysis(ctx context.Context, settings *conf.Settings, watchDir string) error {
	info, err := os.Stat(watchDir)
	if err != nil || !info.IsDir() {
		return errors.Newf("%s is not a watchable directory", watchDir).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	runtime, err := Build(settings)
	if err != nil {
		return err
	}
	defer runtime.Close()

	if buffered, ok := runtime.Store.(interface{ Run(context.Context) }); ok && runtime.Store != nil {
		go buffered.Run(ctx)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryGeneric).
			Build()
	}
	defer watcher.Close()

	if err := watcher.Add(watchDir); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryGeneric).
			Context("path", watchDir).
			Build()
	}

	sessionID := uuid.New().String()
	runtime.logger.Info("monitoring started",
		"watch_dir", watchDir,
		"session_id", sessionID,
		"threshold", settings.Detector.Threshold,
		"cooldown", settings.Detector.Cooldown,
	)

	for {
		select {
		case <-ctx.Done():
			runtime.logger.Info("monitoring stopped", "session_id", sessionID)
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !isAudioFile(event.Name) {
				continue
			}
			if err := waitForSettle(ctx, event.Name); err != nil {
				continue
			}
			if err := processFile(ctx, runtime, settings, event.Name, sessionID); err != nil {
				runtime.logger.Error("file processing failed",
					"path", event.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			runtime.logger.Error("watcher error", "error", err)
		}
	}
}

func isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".wav"
}

// waitForSettle blocks until the file size stops changing, so partially
// written spool files are not decoded.
func waitForSettle(ctx context.Context, path string) error {
	var lastSize int64 = -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() > 0 && info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()
	}
}
