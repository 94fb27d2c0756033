package vision

import (
	"errors"
	"log/slog"
)

// Config holds detector and preprocessing settings.
type Config struct {
	// Dictionaries lists the marker dictionaries searched in each frame.
	// Detections from all of them are merged.
	Dictionaries []Dictionary

	// Equalize applies histogram equalization to the grayscale frame.
	Equalize bool

	// BlurKernel is the Gaussian blur kernel size. Zero disables blurring.
	BlurKernel int

	Logger *slog.Logger
}

// Option is a functional option for configuring detection.
type Option func(*Config)

// WithDictionaries replaces the searched dictionaries.
func WithDictionaries(dicts ...Dictionary) Option {
	return func(c *Config) {
		c.Dictionaries = dicts
	}
}

// WithEnhance enables histogram equalization and a Gaussian blur.
func WithEnhance(blurKernel int) Option {
	return func(c *Config) {
		c.Equalize = true
		c.BlurKernel = blurKernel
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig searches the calibration dictionaries on the plain
// grayscale frame.
func DefaultConfig() *Config {
	return &Config{
		Dictionaries: []Dictionary{DictAprilTag36h11, DictArucoOriginal},
		Logger:       slog.Default(),
	}
}

// PresenceConfig searches only the segmentation dictionary.
func PresenceConfig() *Config {
	cfg := DefaultConfig()
	cfg.Dictionaries = []Dictionary{Dict4x4_50}
	return cfg
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if len(c.Dictionaries) == 0 {
		return errors.New("vision: at least one dictionary is required")
	}
	for _, d := range c.Dictionaries {
		if _, ok := dictionaries[d]; !ok {
			return errors.New("vision: unknown dictionary " + string(d))
		}
	}
	if c.BlurKernel < 0 || (c.BlurKernel > 0 && c.BlurKernel%2 == 0) {
		return errors.New("vision: blur kernel must be zero or odd")
	}
	return nil
}
