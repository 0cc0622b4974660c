// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "time"

// Kind selects a pipeline variant.
type Kind string

// Known pipeline variants.
const (
	FractalKind    Kind = "fractal"
	PathTracerKind Kind = "pathtracer"
)

// DefaultSubmitTimeout bounds the fence wait of a submission.
const DefaultSubmitTimeout = 100 * time.Second

// RunConfiguration is the explicit description of a single run.
// It's built once at startup and passed down, nothing reads
// run parameters from elsewhere.
type RunConfiguration struct {
	Kind Kind

	// Width and Height of the output image. A zero Width lets
	// variants that support it derive the width from Height.
	Width  uint32
	Height uint32

	// Samples is the number of accumulation passes, only used
	// by sampling variants.
	Samples uint32

	// KernelPath overrides the variant's default kernel.
	KernelPath string

	// OutputPath is where the encoded image is written.
	OutputPath string

	// SubmitTimeout bounds the wait for the submission to complete.
	SubmitTimeout time.Duration
}

// Validate checks the configuration for values no variant can work with.
func (c RunConfiguration) Validate() error {
	switch c.Kind {
	case FractalKind, PathTracerKind:
	default:
		return Markf(ErrConfiguration, "unknown pipeline kind %q", string(c.Kind))
	}
	if c.Height == 0 {
		return Markf(ErrConfiguration, "height must be positive")
	}
	if c.Kind == FractalKind && c.Width == 0 {
		return Markf(ErrConfiguration, "width must be positive")
	}
	if c.Kind == PathTracerKind && c.Samples == 0 {
		return Markf(ErrConfiguration, "sample count must be positive")
	}
	if c.SubmitTimeout < 0 {
		return Markf(ErrConfiguration, "negative submit timeout %s", c.SubmitTimeout)
	}
	return nil
}
