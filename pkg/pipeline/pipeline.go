// Package pipeline wires the stages together: a video becomes labelled
// segments, and segments plus gaze plus a calibration reference become
// warped gaze tracks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/gaze"
	"github.com/teslashibe/go-gazewarp/pkg/homography"
	"github.com/teslashibe/go-gazewarp/pkg/presence"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
	"github.com/teslashibe/go-gazewarp/pkg/vision"
)

// Stage names a pipeline step in progress events.
type Stage string

const (
	StageDetect Stage = "detect"
	StageWarp   Stage = "warp"
)

// Event is a progress notification.
type Event struct {
	Stage    Stage          `json:"stage"`
	Message  string         `json:"message"`
	Progress *gaze.Progress `json:"progress,omitempty"`
}

// Config holds pipeline settings.
type Config struct {
	// MaxGap bridges absence runs of up to this many frames.
	MaxGap int

	// Workers is the number of concurrent warp shards.
	Workers int

	// Plot renders the merged presence signals.
	Plot bool

	// Notify receives progress events. It may be nil.
	Notify func(Event)

	Logger *slog.Logger
}

// Option is a functional option for configuring the pipeline.
type Option func(*Config)

// WithMaxGap sets the presence gap tolerance.
func WithMaxGap(frames int) Option {
	return func(c *Config) {
		c.MaxGap = frames
	}
}

// WithWorkers sets the number of warp shards.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithPlot enables the presence timeline plot.
func WithPlot(enabled bool) Option {
	return func(c *Config) {
		c.Plot = enabled
	}
}

// WithNotify registers a progress callback.
func WithNotify(fn func(Event)) Option {
	return func(c *Config) {
		c.Notify = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() *Config {
	return &Config{
		MaxGap:  presence.DefaultConfig().MaxGap,
		Workers: 1,
		Plot:    true,
		Logger:  slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.MaxGap < 0 {
		return errors.New("pipeline: max gap must be >= 0")
	}
	if c.Workers < 1 {
		return errors.New("pipeline: workers must be >= 1")
	}
	return nil
}

func newConfig(opts []Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg, cfg.Validate()
}

func (c *Config) notify(e Event) {
	if c.Notify != nil {
		c.Notify(e)
	}
}

// Detection is the result of segment detection on one video.
type Detection struct {
	FPS       float64
	Frames    int
	Truncated bool

	// Start and End are the merged presence signals.
	Start presence.Signal
	End   presence.Signal

	Extraction *segment.Extraction

	// Issues holds Extraction.Validate's result. Segments are still
	// returned when it is non-nil.
	Issues error

	// Plot is a PNG of the merged signals, when enabled.
	Plot []byte
}

// Segments returns the labelled epochs.
func (d *Detection) Segments() []segment.Segment {
	return d.Extraction.Segments()
}

// DetectSegments scans src, merges the two marker signals, and pairs
// their edges with labels generated from the condition codes.
func DetectSegments(src presence.Scanner, light, head, media string, opts ...Option) (*Detection, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg.notify(Event{Stage: StageDetect, Message: "scanning video"})

	tl, err := presence.Build(src, presence.WithMaxGap(cfg.MaxGap), presence.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}
	start, end := tl.Merged(cfg.MaxGap)

	x, err := segment.Extract(start, end, light, head, media)
	if err != nil {
		return nil, err
	}

	d := &Detection{
		FPS:        tl.FPS,
		Frames:     tl.Frames(),
		Truncated:  tl.Truncated,
		Start:      start,
		End:        end,
		Extraction: x,
		Issues:     x.Validate(),
	}

	log := cfg.Logger.With("frames", d.Frames, "fps", d.FPS)
	if d.Issues != nil {
		log.Warn("segments extracted with issues",
			"starts", x.RawStarts, "ends", x.RawEnds, "labels", len(x.Labels), "issues", d.Issues)
	} else {
		log.Info("segments extracted", "epochs", x.Pairs(), "labels", len(x.Labels))
	}

	if cfg.Plot {
		png, err := presence.Plot(start, end)
		if err != nil {
			return nil, fmt.Errorf("pipeline: plot: %w", err)
		}
		d.Plot = png
	}

	cfg.notify(Event{Stage: StageDetect, Message: fmt.Sprintf("%d epochs detected", x.Pairs())})
	return d, nil
}

// DetectSegmentsFile runs DetectSegments on a video file.
func DetectSegmentsFile(path, light, head, media string, opts ...Option) (*Detection, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	vcfg := vision.PresenceConfig()
	vcfg.Logger = cfg.Logger
	sc, err := vision.NewScanner(path, vcfg)
	if err != nil {
		return nil, err
	}
	defer sc.Close()
	return DetectSegments(sc, light, head, media, opts...)
}

// Warp reprojects samples for every segment against ref, reading frames
// through observers from open.
func Warp(ctx context.Context, open gaze.OpenFunc, segs []segment.Segment, samples gaze.Samples, ref *calibration.Reference, opts ...Option) ([]gaze.Result, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	est, err := homography.NewEstimator(ref, homography.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}

	w, err := gaze.NewWarper(est, open,
		gaze.WithWorkers(cfg.Workers),
		gaze.WithLogger(cfg.Logger),
		gaze.WithProgress(func(p gaze.Progress) {
			cfg.notify(Event{Stage: StageWarp, Message: p.Label, Progress: &p})
		}))
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("warp started", "segments", len(segs), "samples", len(samples), "workers", cfg.Workers)
	results, err := w.Warp(ctx, segs, samples)
	if err != nil {
		cfg.Logger.Error("warp failed", "error", err)
		return nil, err
	}
	return results, nil
}

// Files names the inputs and output directory of a file-based warp.
type Files struct {
	Video     string
	Gaze      string
	Segments  string
	Reference string
	OutputDir string
}

// WarpFiles loads every input from disk, warps, and writes one .npy per
// segment into OutputDir. It returns the paths written.
func WarpFiles(ctx context.Context, f Files, opts ...Option) ([]string, []gaze.Result, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	segs, err := segment.Load(f.Segments)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: segments: %w", err)
	}
	samples, err := gaze.LoadNPY(f.Gaze)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: gaze: %w", err)
	}
	ref, err := calibration.Load(f.Reference)
	if err != nil {
		return nil, nil, fmt.Errorf("pipeline: reference: %w", err)
	}

	vcfg := vision.DefaultConfig()
	vcfg.Logger = cfg.Logger
	open := func() (gaze.Observer, error) {
		o, err := vision.NewSeekObserver(f.Video, vcfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	}

	results, err := Warp(ctx, open, segs, samples, ref, opts...)
	if err != nil {
		return nil, nil, err
	}
	paths, err := gaze.SaveResults(f.OutputDir, results)
	if err != nil {
		return paths, results, err
	}
	return paths, results, nil
}
