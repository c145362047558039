// Package geo decides whether a reported device position lies inside a center's
// geofence. Everything here is pure: no I/O, no clocks, no shared state.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean earth radius of the spherical approximation.
const EarthRadiusMeters = 6_371_000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fence is a circular tolerance area around a center.
type Fence struct {
	Center          Point
	ToleranceMeters int
}

// Result reports a geofence check. DistanceMeters is rounded to the nearest meter.
type Result struct {
	WithinTolerance bool `json:"within_tolerance"`
	DistanceMeters  int  `json:"distance_meters"`
	ToleranceMeters int  `json:"tolerance_meters"`
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	phi1 := toRadians(a.Latitude)
	phi2 := toRadians(b.Latitude)
	dPhi := toRadians(b.Latitude - a.Latitude)
	dLambda := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Validate compares the unrounded distance against the tolerance; the boundary is inclusive.
func Validate(f Fence, p Point) Result {
	d := DistanceMeters(f.Center, p)
	return Result{
		WithinTolerance: d <= float64(f.ToleranceMeters),
		DistanceMeters:  int(math.Round(d)),
		ToleranceMeters: f.ToleranceMeters,
	}
}

// Violation is returned (wrapped with CodeGeofenceViolation) when a clock-in
// position falls outside the fence.
type Violation struct {
	DistanceMeters  int
	ToleranceMeters int
}

func (v *Violation) Error() string {
	return fmt.Sprintf("position is %dm from the center, tolerance is %dm", v.DistanceMeters, v.ToleranceMeters)
}

// Details exposes the measured figures to error responses.
func (v *Violation) Details() map[string]any {
	return map[string]any{
		"distance_meters":  v.DistanceMeters,
		"tolerance_meters": v.ToleranceMeters,
	}
}

// Violation returns the rejection details for a failed result, or nil.
func (r Result) Violation() *Violation {
	if r.WithinTolerance {
		return nil
	}
	return &Violation{DistanceMeters: r.DistanceMeters, ToleranceMeters: r.ToleranceMeters}
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
