package analysis

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/soundsentry/screamdet-go/internal/conf"
	"github.com/soundsentry/screamdet-go/internal/detection"
	"github.com/soundsentry/screamdet-go/internal/errors"
	"github.com/soundsentry/screamdet-go/internal/myaudio"
)

// FileAnalysis analyzes a single audio file segment by segment and prints
// the per-segment verdicts. Alerts fire exactly as they would for a live
// stream, the file name serves as the session so the debounce window
// applies across its segments.
func FileAnalysis(ctx context.Context, settings *conf.Settings, path string) error {
	if err := validateAudioFile(path); err != nil {
		return err
	}

	runtime, err := Build(settings)
	if err != nil {
		return err
	}
	defer runtime.Close()

	return processFile(ctx, runtime, settings, path, filepath.Base(path))
}

// processFile evaluates every segment of one file under the given session.
func processFile(ctx context.Context, runtime *Runtime, settings *conf.Settings, path, sessionID string) error {
	segments, err := myaudio.ReadAudioFile(path, settings.Detector.SampleRate)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tOFFSET\tPROBABILITY\tSCREAM\tSUPPRESSED\tESCALATED")

	for i, segment := range segments {
		meta := &detection.Meta{
			Node:      settings.Main.Name,
			Source:    filepath.Base(path),
			SessionID: sessionID,
		}
		result, err := runtime.Pipeline.Evaluate(ctx, segment, meta)
		if err != nil {
			return err
		}

		offset := time.Duration(i) * myaudio.SegmentLength
		fmt.Fprintf(w, "%d\t%s\t%.4f\t%v\t%v\t%v\n",
			i+1,
			offset,
			result.Evidence.Probability,
			result.Decision.IsScream,
			result.Decision.Debounced,
			result.Event.EscalationRequired,
		)
	}
	return w.Flush()
}

// validateAudioFile checks the path points at a readable non-empty file.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if info.IsDir() {
		return errors.Newf("%s is a directory, not a file", path).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	if info.Size() == 0 {
		return errors.Newf("%s is empty", path).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
