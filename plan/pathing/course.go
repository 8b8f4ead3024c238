// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package pathing

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind int

const (
	// Follow the line until the distance is reached
	LineFollow Kind = iota
	// Follow the line with the centroid goal moved off centre, to pick a
	// branch at a fork. Leaves automatic mode at the distance.
	CentroidOffset
	// Follow the line, leaving automatic mode at the distance
	LineExit
	// Coarse pivot until the heading is in the band past the target
	AlignGoal
	// Hold the heading published by the preceding AlignGoal until the
	// controller settles
	AlignControl
	// Drive straight until the distance is reached
	Traverse
	// Drive forward into the wall, then back off
	Wall
	Stop
)

var kindNames = map[Kind]string{
	LineFollow:     "line",
	CentroidOffset: "offset",
	LineExit:       "line-exit",
	AlignGoal:      "align",
	AlignControl:   "hold",
	Traverse:       "traverse",
	Wall:           "wall",
	Stop:           "stop",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}

	return errors.Errorf("unknown leg kind '%s'", string(text))
}

// Leg is one state of the course. Which fields matter depends on Kind.
type Leg struct {
	Name string `toml:"name"`
	Kind Kind   `toml:"kind"`

	// Total distance travelled at which the leg ends, mm
	Dist float64 `toml:"dist"`
	// mm/s
	Speed float64 `toml:"speed"`
	// Target heading relative to the start, degrees
	Yaw float64 `toml:"yaw"`
	// Pivot direction, +1 anti-clockwise or -1 clockwise
	Dir float64 `toml:"dir"`
	// Centroid goal for CentroidOffset
	Goal float64 `toml:"goal"`
	// How far to reverse off the wall, mm
	Backoff float64 `toml:"backoff"`
}

type Course struct {
	// Coarse pivot rate, rad/s
	PivotRate float64 `toml:"pivot_rate"`
	// Width of the band past the target which ends a coarse pivot, rad
	Band float64 `toml:"band"`

	Legs []Leg `toml:"leg"`
}

func (c Course) Validate() error {
	if len(c.Legs) == 0 {
		return errors.Errorf("course has no legs")
	}

	for i, l := range c.Legs {
		if _, ok := kindNames[l.Kind]; !ok {
			return errors.Errorf("leg %d (%s): bad kind %d", i, l.Name, l.Kind)
		}
		if l.Kind == AlignGoal && l.Dir != 1 && l.Dir != -1 {
			return errors.Errorf("leg %d (%s): direction must be 1 or -1, not %v", i, l.Name, l.Dir)
		}
	}

	if c.Legs[len(c.Legs)-1].Kind != Stop {
		return errors.Errorf("course must end with a stop leg")
	}

	return nil
}

// DefaultCourse is the competition course, from the start line round the
// checkpoints, the wall and both bonus cups to the finish box.
func DefaultCourse() Course {
	return Course{
		PivotRate: 0.75,
		Band:      0.5,
		Legs: []Leg{
			{Name: "LineFollow0", Kind: LineFollow, Dist: 550},
			{Name: "CentroidOffset", Kind: CentroidOffset, Goal: -0.4, Dist: 950},
			{Name: "AlignGoal1", Kind: AlignGoal, Yaw: 82, Dir: -1},
			{Name: "AlignCtl1", Kind: AlignControl},
			{Name: "Fork", Kind: Traverse, Dist: 1175, Speed: 100},
			{Name: "AlignGoal2", Kind: AlignGoal, Yaw: 329, Dir: 1},
			{Name: "AlignCtl2", Kind: AlignControl},
			{Name: "FreeTraverse1", Kind: Traverse, Dist: 1800, Speed: 100},
			{Name: "CP2Pivot1", Kind: AlignGoal, Yaw: 345, Dir: -1},
			{Name: "CP2Pivot2", Kind: AlignControl},
			{Name: "LineFollowing2", Kind: LineExit, Dist: 2025},
			{Name: "AlignGoal3", Kind: AlignGoal, Yaw: 90, Dir: -1},
			{Name: "AlignCtl3", Kind: AlignControl},
			{Name: "FreeTraverse2", Kind: Traverse, Dist: 2725, Speed: 100},
			{Name: "AlignGoal4", Kind: AlignGoal, Yaw: 166, Dir: -1},
			{Name: "AlignCtl4", Kind: AlignControl},
			{Name: "FreeTraverse3", Kind: Traverse, Dist: 3150, Speed: 100},
			{Name: "LineFollowGarage", Kind: LineFollow, Dist: 3275},
			{Name: "AlignGoal5", Kind: AlignGoal, Yaw: 163.5, Dir: 1},
			{Name: "AlignCtl5", Kind: AlignControl},
			{Name: "FreeTraverse4", Kind: Traverse, Dist: 3600, Speed: 50},
			{Name: "AlignGoal6", Kind: AlignGoal, Yaw: 255, Dir: -1},
			{Name: "AlignCtl6", Kind: AlignControl},
			{Name: "FreeTraverse5", Kind: Traverse, Dist: 3900, Speed: 100},
			{Name: "Wall", Kind: Wall, Speed: 100, Backoff: 100},
			{Name: "AlignGoal7", Kind: AlignGoal, Yaw: 345, Dir: -1},
			{Name: "AlignCtl7", Kind: AlignControl},
			{Name: "Cup", Kind: Traverse, Dist: 4300, Speed: 100},
			{Name: "AlignGoal8", Kind: AlignGoal, Yaw: 240, Dir: 1},
			{Name: "AlignCtl8", Kind: AlignControl},
			{Name: "Finish", Kind: Traverse, Dist: 4500, Speed: 100},
			{Name: "FinishLine", Kind: LineFollow, Dist: 5000},
			{Name: "Stop", Kind: Stop},
		},
	}
}
