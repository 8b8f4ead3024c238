// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package heading

import (
	"math"
)

const TwoPi = 2 * math.Pi

// Wrap brings a yaw which has gone at most one turn out of range back
// into [0, 2π), the range the IMU reports in.
func Wrap(rads float64) float64 {
	if rads > TwoPi {
		return rads - TwoPi
	} else if rads < 0 {
		return TwoPi + rads
	}

	return rads
}

// Normalise maps any angle into (-π, π].
func Normalise(rads float64) float64 {
	if rads > math.Pi || rads <= -math.Pi {
		rads = math.Atan2(math.Sin(rads), math.Cos(rads))
	}

	return rads
}

// Error is how far yaw has to turn to reach goal, the short way round.
// Positive means anti-clockwise.
func Error(goal, yaw float64) float64 {
	return Normalise(goal - yaw)
}

func Deg2Rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func Rad2Deg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// InBand reports whether yaw is in [lo, lo+width].
func InBand(yaw, lo, width float64) bool {
	return yaw >= lo && yaw <= lo+width
}
