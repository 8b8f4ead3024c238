// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package collector samples wheel measurements into queues for the console
// to print out after a test run.
package collector

import (
	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/share"
)

const TaskName = "data_collector"

// Mode selects what gets sampled. It's also the task's state.
type Mode int

const (
	Off           Mode = 0
	LeftVelocity  Mode = 2
	RightVelocity Mode = 3
	LeftPosition  Mode = 4
	RightPosition Mode = 5
	BothVelocity  Mode = 6
)

type Shares struct {
	Mode share.Reader[Mode]

	VelocityL share.Reader[float64]
	VelocityR share.Reader[float64]
	PositionL share.Reader[float64]
	PositionR share.Reader[float64]

	// BothVelocity puts left in Velocity and right in Velocity2
	Velocity  *share.Queue[float64]
	Velocity2 *share.Queue[float64]
	Position  *share.Queue[float64]
}

type Task struct {
	sh    Shares
	state Mode
}

func NewTask(sh Shares) *Task {
	return &Task{sh: sh}
}

func (t *Task) Step() int {
	ran := t.state
	mode := t.sh.Mode.Get()

	// A new mode takes effect from the next pass
	if mode != t.state {
		t.state = mode
		return int(ran)
	}

	// Samples that don't fit are dropped, and counted by the queue
	switch t.state {
	case Off:
	case LeftVelocity:
		t.sh.Velocity.Put(t.sh.VelocityL.Get())
	case RightVelocity:
		t.sh.Velocity.Put(t.sh.VelocityR.Get())
	case LeftPosition:
		t.sh.Position.Put(t.sh.PositionL.Get())
	case RightPosition:
		t.sh.Position.Put(t.sh.PositionR.Get())
	case BothVelocity:
		t.sh.Velocity.Put(t.sh.VelocityL.Get())
		t.sh.Velocity2.Put(t.sh.VelocityR.Get())
	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	return int(ran)
}
