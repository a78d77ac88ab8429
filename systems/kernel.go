// Package systems implements the SPH passes, spatial hashing, impulses and
// grid projection that make up one simulation tick.
package systems

import "math"

// Kernel evaluates the SPH smoothing functions for a fixed radius H.
// Coefficients are computed once so every call is a handful of float32 ops
// and gives bit-identical results regardless of the calling goroutine.
type Kernel struct {
	h, h2 float32

	poly6 float32 // 315 / (64 pi H^9)
	spiky float32 // -45 / (pi H^6)
	visc  float32 // 45 / (pi H^6)
}

// NewKernel precomputes coefficients for smoothing radius h.
func NewKernel(h float32) Kernel {
	hd := float64(h)
	return Kernel{
		h:     h,
		h2:    h * h,
		poly6: float32(315.0 / (64.0 * math.Pi * math.Pow(hd, 9))),
		spiky: float32(-45.0 / (math.Pi * math.Pow(hd, 6))),
		visc:  float32(45.0 / (math.Pi * math.Pow(hd, 6))),
	}
}

// H returns the smoothing radius.
func (k Kernel) H() float32 { return k.h }

// Density is the poly6 kernel on squared distance. Zero outside [0, H^2].
func (k Kernel) Density(r2 float32) float32 {
	if r2 < 0 || r2 > k.h2 {
		return 0
	}
	d := k.h2 - r2
	return k.poly6 * d * d * d
}

// PressureGradient is the spiky kernel gradient magnitude. It is negative
// inside the radius so pressure pushes particles apart. Zero outside [0, H].
func (k Kernel) PressureGradient(r float32) float32 {
	if r < 0 || r > k.h {
		return 0
	}
	d := k.h - r
	return k.spiky * d * d
}

// Viscosity is the viscosity Laplacian. Zero outside [0, H].
func (k Kernel) Viscosity(r float32) float32 {
	if r < 0 || r > k.h {
		return 0
	}
	return k.visc * (k.h - r)
}
