package presence

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

// Config holds the presence timeline parameters.
type Config struct {
	// StartMarker disappears at the start of each epoch.
	StartMarker fiducial.Key
	// EndMarker appears at the end of each epoch.
	EndMarker fiducial.Key

	// Threshold is the number of sightings a marker must exceed within a
	// frame to count as present.
	Threshold int

	// MaxGap is the longest absence, in frames, that Merge bridges.
	MaxGap int

	Logger *slog.Logger
}

// Option is a functional option for configuring the timeline builder.
type Option func(*Config)

// WithMarkers overrides the start and end marker keys.
func WithMarkers(start, end fiducial.Key) Option {
	return func(c *Config) {
		c.StartMarker = start
		c.EndMarker = end
	}
}

// WithThreshold sets the per-frame sighting threshold.
func WithThreshold(n int) Option {
	return func(c *Config) {
		c.Threshold = n
	}
}

// WithMaxGap sets the merge gap in frames.
func WithMaxGap(frames int) Option {
	return func(c *Config) {
		c.MaxGap = frames
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the protocol defaults: square tags 0 and 1, more
// than two sightings per frame, 50-frame gap bridging.
func DefaultConfig() *Config {
	return &Config{
		StartMarker: fiducial.Key{Family: fiducial.Square, ID: 0},
		EndMarker:   fiducial.Key{Family: fiducial.Square, ID: 1},
		Threshold:   2,
		MaxGap:      50,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the parameters.
func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return errors.New("presence: threshold must be >= 0")
	}
	if c.MaxGap < 0 {
		return errors.New("presence: max gap must be >= 0")
	}
	if c.StartMarker == c.EndMarker {
		return errors.New("presence: start and end markers must differ")
	}
	return nil
}
