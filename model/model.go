// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package model keeps track of where the robot has got to.
package model

import (
	"math"

	"github.com/usedbytes/romi/share"
)

const TaskName = "observer"

type Coord struct {
	X, Y float64
}

func (c Coord) Sub(b Coord) Coord {
	return Coord{c.X - b.X, c.Y - b.Y}
}

func (c Coord) Add(b Coord) Coord {
	return Coord{c.X + b.X, c.Y + b.Y}
}

func (c Coord) IsNaN() bool {
	return math.IsNaN(c.X) || math.IsNaN(c.Y)
}

type Shares struct {
	PositionL share.Reader[float64]
	PositionR share.Reader[float64]
	Yaw       share.Reader[float64]

	Distance share.Writer[float64]
}

// Model is the observer task. Distance travelled is the mean of the two
// wheel positions; the pose is dead-reckoned from the change in distance
// and the IMU heading.
type Model struct {
	sh Shares

	pos Coord
	ori float64

	started  bool
	prevDist float64
}

func NewModel(sh Shares) *Model {
	m := &Model{
		sh: sh,
	}

	m.ResetOrientation()

	return m
}

func (m *Model) GetPose() (Coord, float64) {
	return m.pos, m.ori
}

func (m *Model) ResetOrientation() {
	m.pos = Coord{0.0, 0.0}
	m.ori = 0.0
}

func (m *Model) Step() int {
	dist := (m.sh.PositionL.Get() + m.sh.PositionR.Get()) / 2
	m.ori = m.sh.Yaw.Get()

	if m.started {
		delta := dist - m.prevDist
		next := m.pos.Add(Coord{delta * math.Cos(m.ori), delta * math.Sin(m.ori)})
		if !next.IsNaN() {
			m.pos = next
		}
	}

	m.prevDist = dist
	m.started = true

	m.sh.Distance.Put(dist)

	return 0
}
