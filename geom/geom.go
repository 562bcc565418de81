// Package geom converts raw step/distance samples into Cartesian
// coordinates. It is a helper, not core: spec.md §1 names coordinate
// transforms as a Non-goal of the protocol engine itself, and this
// package is never imported by urg. Grounded on
// original_source/libs/c/urg/samples/calculate_xy.c.
package geom

import "math"

// ParamSource is the subset of urg.Session a caller needs to convert a
// step index to an angle: the front step offset and the angular
// resolution (steps per full revolution).
type ParamSource interface {
	FrontStep() int
	AreaResolution() int
}

// StepToRadian converts a step index (as returned alongside a Length
// sample, i.e. already offset so that 0 is urg.Params.FrontDataIndex)
// to an angle in radians, matching urg_index2rad / urg_step2rad in the
// reference implementation.
func StepToRadian(p ParamSource, step int) float64 {
	res := p.AreaResolution()
	if res == 0 {
		return 0
	}
	return 2 * math.Pi * float64(step) / float64(res)
}

// Point is a Cartesian position derived from one range sample.
type Point struct {
	X float64
	Y float64
}

// ToXY converts a distance (in the sensor's native millimeter units)
// and an angle in radians into a Point, matching calculate_xy.c's
// `x = distance * cos(radian); y = distance * sin(radian)`.
func ToXY(distance int, radian float64) Point {
	d := float64(distance)
	return Point{
		X: d * math.Cos(radian),
		Y: d * math.Sin(radian),
	}
}

// Bounds filters out samples outside [min, max], matching
// calculate_xy.c's range check before converting each sample.
func Bounds(distance, min, max int) bool {
	return distance >= min && distance <= max
}

// ScanToXY converts a full frame's worth of per-step distances into
// Cartesian points, skipping any sample outside [min, max]. firstStep
// is the absolute step index of lengths[0] (urg.Frame.FirstStep), and
// skip is the frame's step stride (urg.Frame.SkipStep, 0 meaning every
// step). Out-of-range samples are simply omitted, as in
// calculate_xy.c.
func ScanToXY(p ParamSource, lengths []int, firstStep, skip, min, max int) []Point {
	front := p.FrontStep()
	stride := skip + 1
	points := make([]Point, 0, len(lengths))
	for i, d := range lengths {
		if !Bounds(d, min, max) {
			continue
		}
		absStep := firstStep + i*stride
		radian := StepToRadian(p, absStep-front)
		points = append(points, ToXY(d, radian))
	}
	return points
}
