// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package control

import (
	"github.com/felixge/pidctrl"
)

type Gains struct {
	P, I, D float64
	// Limit clamps the output to [-Limit, Limit]. Zero means unclamped.
	Limit float64
}

func (g Gains) New() *pidctrl.PIDController {
	pid := pidctrl.NewPIDController(g.P, g.I, g.D)
	if g.Limit > 0 {
		pid.SetOutputLimits(-g.Limit, g.Limit)
	}

	return pid
}

type Params struct {
	// Distance between the wheel contact points, mm
	TrackWidth float64 `toml:"track_width"`
	// Speed of the inner wheel when turning, mm/s
	TurnBase float64 `toml:"turn_base"`
	// Nominal speed while following the line, mm/s
	LineBase float64 `toml:"line_base"`
	// Heading hold is done once the yaw controller output is this small
	HeadingDone float64 `toml:"heading_done"`

	Wheel Gains `toml:"wheel"`
	Line  Gains `toml:"line"`
	Yaw   Gains `toml:"yaw"`
}

func DefaultParams() Params {
	return Params{
		TrackWidth:  141,
		TurnBase:    15,
		LineBase:    100,
		HeadingDone: 1,

		Wheel: Gains{P: 0.3, I: 2.5, Limit: 100},
		Line:  Gains{P: 4, I: 0.5, Limit: 100},
		Yaw:   Gains{P: 60, I: 5, Limit: 300},
	}
}
