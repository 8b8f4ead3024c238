// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package pathing drives the robot round the course.
//
// The course is a list of legs run strictly in order. Each leg sets up
// the control task (by writing an intent and its references) and decides
// from the travelled distance or the heading when it's done. Nothing is
// ever retried: a leg whose condition never comes true stalls the course,
// and the operator steps in.
package pathing

import (
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/heading"
	"github.com/usedbytes/romi/share"
)

const TaskName = "pathing"

// Idle is the state before the start command. Leg i of the course is
// state i+1.
const Idle = 0

type Shares struct {
	Start    share.Reader[bool]
	Yaw      share.Reader[float64]
	Distance share.Reader[float64]
	Bumped   share.Reader[bool]

	Intent       share.Writer[control.State]
	Forward      share.Writer[float64]
	Pivot        share.Writer[float64]
	Automatic    share.Writer[bool]
	CentroidGoal share.Writer[float64]
	YawGoal      share.Writer[float64]
	BumpEnable   share.Writer[bool]
}

type Task struct {
	course Course
	sh     Shares

	state int

	// Heading the IMU reported at the start line
	yawInit float64

	wallArmed   bool
	wallBacking bool
	wallStart   float64
}

func NewTask(course Course, sh Shares) *Task {
	return &Task{
		course: course,
		sh:     sh,
	}
}

func (t *Task) State() int {
	return t.state
}

// Leg returns the leg being run, or nil while idle.
func (t *Task) Leg() *Leg {
	if t.state == Idle || t.state > len(t.course.Legs) {
		return nil
	}
	return &t.course.Legs[t.state-1]
}

func (t *Task) YawOffset() float64 {
	return t.yawInit
}

func (t *Task) next() {
	t.state++
	if leg := t.Leg(); leg != nil {
		log.Info().Str("task", TaskName).Int("state", t.state).Str("leg", leg.Name).
			Float64("dist", t.sh.Distance.Get()).Msg("next leg")
	}
}

// realYaw is the heading relative to the start line.
func (t *Task) realYaw() float64 {
	return heading.Wrap(t.sh.Yaw.Get() - t.yawInit)
}

func (t *Task) lineFollow(leg *Leg) {
	t.sh.Automatic.Put(true)
	t.sh.CentroidGoal.Put(0)
	if t.sh.Distance.Get() >= leg.Dist {
		t.next()
	}
}

func (t *Task) centroidOffset(leg *Leg) {
	t.sh.CentroidGoal.Put(leg.Goal)
	if t.sh.Distance.Get() >= leg.Dist {
		t.sh.CentroidGoal.Put(0)
		t.sh.Automatic.Put(false)
		t.next()
	}
}

func (t *Task) lineExit(leg *Leg) {
	t.sh.Automatic.Put(true)
	if t.sh.Distance.Get() >= leg.Dist {
		t.sh.Automatic.Put(false)
		t.next()
	}
}

func (t *Task) alignGoal(leg *Leg) {
	target := heading.Deg2Rad(leg.Yaw)

	t.sh.Intent.Put(control.Pivot)
	t.sh.Pivot.Put(t.course.PivotRate * leg.Dir)

	if heading.InBand(t.realYaw(), target, t.course.Band) {
		t.sh.Intent.Put(control.Disable)
		t.sh.Pivot.Put(0)
		t.sh.YawGoal.Put(heading.Wrap(target + t.yawInit))
		t.sh.Automatic.Put(false)
		t.next()
	}
}

func (t *Task) alignControl() {
	// The control task clears the goal once it has settled on it
	if t.sh.YawGoal.Get() == 0 {
		t.next()
		return
	}

	t.sh.Intent.Put(control.HeadingHold)
}

func (t *Task) traverse(leg *Leg) {
	t.sh.Intent.Put(control.Forward)
	t.sh.Forward.Put(leg.Speed)

	if t.sh.Distance.Get() >= leg.Dist {
		t.sh.Intent.Put(control.Disable)
		t.sh.Forward.Put(0)
		t.next()
	}
}

func (t *Task) wall(leg *Leg) {
	t.sh.Intent.Put(control.Forward)

	if !t.wallArmed {
		t.sh.BumpEnable.Put(true)
		t.wallArmed = true
	}

	if !t.sh.Bumped.Get() {
		t.sh.Forward.Put(leg.Speed)
		return
	}

	t.sh.Forward.Put(-leg.Speed)

	dist := t.sh.Distance.Get()
	if !t.wallBacking {
		log.Info().Str("task", TaskName).Float64("dist", dist).Msg("hit the wall")
		t.wallBacking = true
		t.wallStart = dist
	}

	if dist <= t.wallStart-leg.Backoff {
		t.sh.BumpEnable.Put(false)
		t.next()
	}
}

// abort drops the course when the operator clears the start flag. The next
// start runs it again from the first leg.
func (t *Task) abort() {
	log.Info().Str("task", TaskName).Int("state", t.state).Msg("course stopped")

	t.sh.Intent.Put(control.Disable)
	t.sh.Forward.Put(0)
	t.sh.Pivot.Put(0)
	t.sh.Automatic.Put(false)
	t.sh.CentroidGoal.Put(0)
	t.sh.YawGoal.Put(0)
	t.sh.BumpEnable.Put(false)

	t.wallArmed = false
	t.wallBacking = false
	t.state = Idle
}

func (t *Task) Step() int {
	ran := t.state

	if t.state == Idle {
		if t.sh.Start.Get() {
			t.yawInit = t.sh.Yaw.Get()
			log.Info().Str("task", TaskName).Float64("yaw_offset", t.yawInit).Msg("course started")
			t.next()
		}
		return ran
	}

	if !t.sh.Start.Get() {
		t.abort()
		return ran
	}

	leg := t.Leg()
	if leg == nil {
		plan.Unreachable(TaskName, t.state)
	}

	switch leg.Kind {
	case LineFollow:
		t.lineFollow(leg)
	case CentroidOffset:
		t.centroidOffset(leg)
	case LineExit:
		t.lineExit(leg)
	case AlignGoal:
		t.alignGoal(leg)
	case AlignControl:
		t.alignControl()
	case Traverse:
		t.traverse(leg)
	case Wall:
		t.wall(leg)
	case Stop:
		t.sh.Intent.Put(control.Disable)
		t.sh.Automatic.Put(false)
	default:
		plan.Unreachable(TaskName, t.state)
	}

	return ran
}
