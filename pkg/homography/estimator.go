package homography

import (
	"errors"
	"log/slog"

	"github.com/teslashibe/go-gazewarp/pkg/calibration"
	"github.com/teslashibe/go-gazewarp/pkg/fiducial"
)

// Correspondence pairs a detected marker with the calibration tag that
// shares its (family, id).
type Correspondence struct {
	Observed fiducial.Observation
	Tag      calibration.Tag
}

// Image returns the observed pixel center.
func (c Correspondence) Image() fiducial.Point { return c.Observed.Center }

// Reference returns the reference-space center.
func (c Correspondence) Reference() fiducial.Point { return c.Tag.Center }

// Config holds estimator parameters.
type Config struct {
	// CollinearTolerance is the minimum triangle area, in squared reference
	// pixels, any three quad corners must span.
	CollinearTolerance float64

	// MaxCorrespondences bounds the combinatorial quad search. Extra
	// matches beyond this count, in reference order, are ignored.
	MaxCorrespondences int

	Logger *slog.Logger
}

// Option is a functional option for configuring the estimator.
type Option func(*Config)

// WithCollinearTolerance sets the near-collinearity threshold.
func WithCollinearTolerance(tol float64) Option {
	return func(c *Config) {
		c.CollinearTolerance = tol
	}
}

// WithMaxCorrespondences bounds the number of matches searched.
func WithMaxCorrespondences(n int) Option {
	return func(c *Config) {
		c.MaxCorrespondences = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the default estimator parameters.
func DefaultConfig() *Config {
	return &Config{
		CollinearTolerance: 1000,
		MaxCorrespondences: 20,
		Logger:             slog.Default(),
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
	if c.CollinearTolerance < 0 {
		return errors.New("homography: collinear tolerance must be >= 0")
	}
	if c.MaxCorrespondences < 4 {
		return errors.New("homography: max correspondences must be >= 4")
	}
	return nil
}

// Estimator computes per-frame homographies against one reference.
// It keeps no per-frame state and is safe for concurrent use.
type Estimator struct {
	cfg *Config
	ref *calibration.Reference
}

// NewEstimator validates ref and the options.
func NewEstimator(ref *calibration.Reference, opts ...Option) (*Estimator, error) {
	if ref == nil {
		return nil, calibration.ErrInvalidReference
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, ref: ref}, nil
}

// Reference returns the calibration reference.
func (e *Estimator) Reference() *calibration.Reference {
	return e.ref
}

// Match pairs observations with reference tags in reference order.
func Match(obs []fiducial.Observation, ref *calibration.Reference) []Correspondence {
	seen := fiducial.Index(obs)
	var cs []Correspondence
	for _, tag := range ref.Tags {
		if o, ok := seen[tag.Key()]; ok {
			cs = append(cs, Correspondence{Observed: o, Tag: tag})
		}
	}
	return cs
}

// Estimate matches obs against the reference and solves for the transform
// from pixel space to reference space. It returns false when fewer than
// four tags match, every quad is degenerate, or the solve fails.
func (e *Estimator) Estimate(obs []fiducial.Observation) (Matrix, bool) {
	cs := Match(obs, e.ref)
	if len(cs) < 4 {
		return Matrix{}, false
	}
	if len(cs) > e.cfg.MaxCorrespondences {
		cs = cs[:e.cfg.MaxCorrespondences]
	}

	quad, ok := SelectQuad(cs, e.cfg.CollinearTolerance)
	if !ok {
		return Matrix{}, false
	}
	return Solve(imagePoints(quad), referencePoints(quad))
}
