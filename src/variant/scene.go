// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package variant

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Material is the surface reflection model of a scene object.
type Material uint32

// Materials understood by the path tracing kernel.
const (
	Diffuse Material = iota + 1
	Reflective
	Refractive
)

// RecordSize is the encoded size of a plane or sphere, 12 float32.
const RecordSize = 12 * 4

// Plane is an infinite plane at Distance from the origin along Normal.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
	Emission mgl32.Vec3
	Colour   mgl32.Vec3
	Material Material
}

// Sphere is a sphere at Center.
type Sphere struct {
	Center   mgl32.Vec3
	Radius   float32
	Emission mgl32.Vec3
	Colour   mgl32.Vec3
	Material Material
}

// Scene is the geometry uploaded to the path tracer.
type Scene struct {
	Planes  []Plane
	Spheres []Sphere
}

// CornellBox returns the default scene: five walls and a front plane,
// a mirror sphere, a glass sphere and a small bright light.
func CornellBox() Scene {
	white := mgl32.Vec3{.75, .75, .75}
	glass := mgl32.Vec3{.999, .999, .999}
	return Scene{
		Planes: []Plane{
			{Normal: mgl32.Vec3{-1, 0, 0}, Distance: 2.6, Colour: mgl32.Vec3{.85, .25, .25}, Material: Diffuse},
			{Normal: mgl32.Vec3{1, 0, 0}, Distance: 2.6, Colour: mgl32.Vec3{.25, .35, .85}, Material: Diffuse},
			{Normal: mgl32.Vec3{0, 1, 0}, Distance: 2, Colour: white, Material: Diffuse},
			{Normal: mgl32.Vec3{0, -1, 0}, Distance: 2, Colour: white, Material: Diffuse},
			{Normal: mgl32.Vec3{0, 0, -1}, Distance: 2.8, Colour: mgl32.Vec3{.85, .85, .25}, Material: Diffuse},
			{Normal: mgl32.Vec3{0, 0, 1}, Distance: 7.9, Colour: mgl32.Vec3{0.1, 0.7, 0.7}, Material: Diffuse},
		},
		Spheres: []Sphere{
			{Center: mgl32.Vec3{-1.3, -1.2, -1.3}, Radius: 0.8, Colour: glass, Material: Reflective},
			{Center: mgl32.Vec3{1.3, -1.2, -0.2}, Radius: 0.8, Colour: glass, Material: Refractive},
			{Center: mgl32.Vec3{0, 2 * 0.8, 0}, Radius: 0.2, Emission: mgl32.Vec3{100, 100, 100}, Material: Diffuse},
		},
	}
}

func (b block) putRecord(idx int, head mgl32.Vec4, emission, colour mgl32.Vec3, m Material) {
	base := idx * 12
	for i, v := range head {
		b.putFloat32(base+i, v)
	}
	for i, v := range emission {
		b.putFloat32(base+4+i, v)
	}
	for i, v := range colour {
		b.putFloat32(base+8+i, v)
	}
	b.putFloat32(base+11, float32(m))
}

// EncodePlanes packs the planes as {normal, distance | emission, 0 | colour, material}.
func (s Scene) EncodePlanes() []byte {
	b := make(block, len(s.Planes)*RecordSize)
	for idx, p := range s.Planes {
		b.putRecord(idx, p.Normal.Vec4(p.Distance), p.Emission, p.Colour, p.Material)
	}
	return b
}

// EncodeSpheres packs the spheres as {center, radius | emission, 0 | colour, material}.
func (s Scene) EncodeSpheres() []byte {
	b := make(block, len(s.Spheres)*RecordSize)
	for idx, sp := range s.Spheres {
		b.putRecord(idx, sp.Center.Vec4(sp.Radius), sp.Emission, sp.Colour, sp.Material)
	}
	return b
}
