// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

import "github.com/cockroachdb/errors"

// Error kinds. Every failure returned by the compute core is marked with
// exactly one of these and can be checked with errors.Is.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrNoDevice           = errors.New("no vulkan device")
	ErrNoComputeQueue     = errors.New("no compute queue family")
	ErrResourceAllocation = errors.New("resource allocation failed")
	ErrPipelineCreation   = errors.New("pipeline creation failed")
	ErrKernelNotFound     = errors.New("kernel not found")
	ErrSubmissionTimeout  = errors.New("submission did not complete")
)

// Mark wraps err with the failing call name and marks it with kind.
// Returns nil for a nil err.
func Mark(err error, call string, kind error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, call), kind)
}

// Markf creates a new error of the given kind.
func Markf(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}
