package gaze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
	"github.com/teslashibe/go-gazewarp/pkg/homography"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
	"golang.org/x/sync/errgroup"
)

// Observer returns the markers visible at a frame index, seeking the
// video as needed. An error means the frame could not be reached.
type Observer interface {
	Observe(idx int) ([]fiducial.Observation, error)
	Close() error
}

// OpenFunc opens a fresh Observer. Each worker gets its own.
type OpenFunc func() (Observer, error)

// Progress reports the state of a warp run after each segment.
type Progress struct {
	Segment   int    `json:"segment"`
	Segments  int    `json:"segments"`
	Label     string `json:"label"`
	Frames    int    `json:"frames"`
	Sentinels int    `json:"sentinels"`
	Done      int    `json:"done"`
	Total     int    `json:"total"`
}

// Config holds warper settings.
type Config struct {
	// Workers is the number of frame shards processed concurrently.
	Workers int

	// Progress is called after each segment, from the calling goroutine.
	Progress func(Progress)

	Logger *slog.Logger
}

// Option is a functional option for configuring the warper.
type Option func(*Config)

// WithWorkers sets the number of concurrent frame shards.
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithProgress registers a per-segment progress callback.
func WithProgress(fn func(Progress)) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns a single-worker configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers: 1,
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
	if c.Workers < 1 {
		return errors.New("gaze: workers must be >= 1")
	}
	return nil
}

// Result is the warped track of one segment.
type Result struct {
	Segment segment.Segment
	Track   Track
}

// Warper reprojects gaze samples frame by frame through per-frame
// homographies.
type Warper struct {
	cfg  *Config
	est  *homography.Estimator
	open OpenFunc
}

// NewWarper creates a warper that estimates against est and reads frames
// through observers from open.
func NewWarper(est *homography.Estimator, open OpenFunc, opts ...Option) (*Warper, error) {
	if est == nil || open == nil {
		return nil, errors.New("gaze: estimator and observer are required")
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Warper{cfg: cfg, est: est, open: open}, nil
}

// Frame warps the sample of a single frame given its observations.
func Frame(est *homography.Estimator, obs []fiducial.Observation, sample fiducial.Point) Point {
	h, ok := est.Estimate(obs)
	if !ok {
		return Sentinel
	}
	q, ok := h.Apply(sample)
	if !ok {
		return Sentinel
	}
	if math.Abs(q.X) > math.MaxInt32 || math.Abs(q.Y) > math.MaxInt32 {
		return Sentinel
	}
	b := est.Reference().Boundary
	return Point{X: int(q.X) - b, Y: int(q.Y) - b}
}

func (w *Warper) frame(obs Observer, samples Samples, idx int) Point {
	sample, ok := samples.At(idx)
	if !ok {
		return Sentinel
	}
	found, err := obs.Observe(idx)
	if err != nil {
		return Sentinel
	}
	return Frame(w.est, found, sample)
}

// Warp processes every segment in order and returns one result per
// segment. Per-frame failures become sentinels; only an observer that
// cannot be opened or a cancelled context fails the run.
func (w *Warper) Warp(ctx context.Context, segs []segment.Segment, samples Samples) ([]Result, error) {
	observers := make([]Observer, 0, w.cfg.Workers)
	defer func() {
		for _, o := range observers {
			o.Close()
		}
	}()
	for i := 0; i < w.cfg.Workers; i++ {
		o, err := w.open()
		if err != nil {
			return nil, fmt.Errorf("gaze: open observer: %w", err)
		}
		observers = append(observers, o)
	}

	total := 0
	for _, s := range segs {
		total += s.Len()
	}

	results := make([]Result, 0, len(segs))
	done := 0
	for i, s := range segs {
		started := time.Now()
		track, err := w.segment(ctx, observers, s, samples)
		if err != nil {
			return results, err
		}
		results = append(results, Result{Segment: s, Track: track})
		done += len(track)

		sentinels := track.Sentinels()
		w.cfg.Logger.Info("segment warped",
			"label", s.Label,
			"frames", len(track),
			"sentinels", sentinels,
			"duration", time.Since(started))

		if w.cfg.Progress != nil {
			w.cfg.Progress(Progress{
				Segment:   i + 1,
				Segments:  len(segs),
				Label:     s.Label,
				Frames:    len(track),
				Sentinels: sentinels,
				Done:      done,
				Total:     total,
			})
		}
	}
	return results, nil
}

// segment splits [start, end) into one contiguous shard per observer.
// Each shard writes only its own slice of the track, so results stay in
// frame order.
func (w *Warper) segment(ctx context.Context, observers []Observer, s segment.Segment, samples Samples) (Track, error) {
	n := s.Len()
	if n <= 0 {
		return Track{}, nil
	}
	track := make(Track, n)

	shards := len(observers)
	if shards > n {
		shards = n
	}
	size := (n + shards - 1) / shards

	g, ctx := errgroup.WithContext(ctx)
	for k := 0; k < shards; k++ {
		from := k * size
		to := min(from+size, n)
		obs := observers[k]
		g.Go(func() error {
			for off := from; off < to; off++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				track[off] = w.frame(obs, samples, s.Start+off)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return track, nil
}
