// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package gfx

// ReleaseFunc adapts a plain function to Releasable.
type ReleaseFunc func()

// Release implements Releasable.
func (f ReleaseFunc) Release() {
	f()
}

// ReleaseStack owns acquired resources and releases them
// in reverse acquisition order.
type ReleaseStack struct {
	items []Releasable
}

// Push takes ownership of r.
func (s *ReleaseStack) Push(r Releasable) {
	s.items = append(s.items, r)
}

// PushFunc takes ownership of a release function.
func (s *ReleaseStack) PushFunc(fn func()) {
	s.Push(ReleaseFunc(fn))
}

// Len returns the number of resources still owned.
func (s *ReleaseStack) Len() int {
	return len(s.items)
}

// Release releases everything, last pushed first. The stack
// is empty afterwards and can be reused.
func (s *ReleaseStack) Release() {
	for idx := len(s.items) - 1; idx >= 0; idx-- {
		s.items[idx].Release()
		s.items[idx] = nil
	}
	s.items = s.items[:0]
}
