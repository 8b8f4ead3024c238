// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package control turns motion intents into wheel efforts.
//
// Whoever wants the robot to move (the operator console, or the course
// planner) writes an intent and its reference values. The control task
// interprets the intent into a pair of wheel speed references, and every
// step runs a speed loop per wheel to get the efforts for the wheel tasks.
package control

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/plan/heading"
	"github.com/usedbytes/romi/plan/wheel"
	"github.com/usedbytes/romi/share"
)

const TaskName = "control"

type State int

const (
	Hub State = iota
	Forward
	Turn
	Pivot
	Disable
	AutoLineFollow
	CalibrationWait
	HeadingHold
)

// None is the empty intent.
const None = Hub

func (s State) String() string {
	switch s {
	case Hub:
		return "Hub"
	case Forward:
		return "Forward"
	case Turn:
		return "Turn"
	case Pivot:
		return "Pivot"
	case Disable:
		return "Disable"
	case AutoLineFollow:
		return "AutoLineFollow"
	case CalibrationWait:
		return "CalibrationWait"
	case HeadingHold:
		return "HeadingHold"
	}
	return "Unknown"
}

// Odometer is the part of a wheel encoder the control task lines up with
// the IMU when automatic mode starts.
type Odometer interface {
	Zero()
	SetOffset(mm float64)
}

type Shares struct {
	Intent    share.Reader[State]
	IntentAck share.Clearer

	Forward    share.Reader[float64]
	ForwardAck share.Clearer
	Arc        share.Reader[float64]
	ArcAck     share.Clearer
	Pivot      share.Reader[float64]
	PivotAck   share.Clearer

	Automatic share.Reader[bool]
	NeedCal   share.Reader[bool]
	OpenLoop  share.Reader[bool]

	CentroidGoal share.Reader[float64]
	Centroid     share.Reader[float64]

	Yaw        share.Reader[float64]
	YawGoal    share.Reader[float64]
	YawGoalAck share.Clearer

	VelocityL share.Reader[float64]
	VelocityR share.Reader[float64]

	EffortL  share.Writer[float64]
	EffortR  share.Writer[float64]
	CommandL share.Writer[wheel.State]
	CommandR share.Writer[wheel.State]
}

type Task struct {
	params Params
	dt     time.Duration
	sh     Shares

	left, right Odometer
	aligned     bool

	state      State
	refL, refR float64

	pidL, pidR *pidctrl.PIDController
	linePID    *pidctrl.PIDController
	yawPID     *pidctrl.PIDController
}

// NewTask creates the control task. dt is the task period, which the
// controllers use as their sample time.
func NewTask(params Params, dt time.Duration, left, right Odometer, sh Shares) *Task {
	return &Task{
		params:  params,
		dt:      dt,
		sh:      sh,
		left:    left,
		right:   right,
		pidL:    params.Wheel.New(),
		pidR:    params.Wheel.New(),
		linePID: params.Line.New(),
		yawPID:  params.Yaw.New(),
	}
}

func (t *Task) State() State {
	return t.state
}

// Refs returns the current wheel speed references, mm/s.
func (t *Task) Refs() (float64, float64) {
	return t.refL, t.refR
}

func (t *Task) setRefs(l, r float64) {
	t.refL, t.refR = l, r
}

func (t *Task) goTo(s State) {
	if s == t.state {
		return
	}

	log.Info().Str("task", TaskName).Stringer("from", t.state).Stringer("to", s).Msg("state")

	if s == HeadingHold {
		// Don't carry integral from one alignment to the next
		t.yawPID = t.params.Yaw.New()
	}

	t.state = s
}

// TurnSpeed is the outer wheel speed for an arc of the given radius, with
// the inner wheel at base. A radius of half the track width has no answer.
func TurnSpeed(base, radius, trackWidth float64) float64 {
	return base * (2*radius + trackWidth) / (2*radius - trackWidth)
}

// fixSigns works around the motor driver reversing a wheel when the two
// efforts disagree in sign, or when only the left one is non-zero.
func fixSigns(l, r float64) (float64, float64) {
	switch {
	case l > 0 && r < 0, l < 0 && r > 0:
		return -l, -r
	case l != 0 && r == 0:
		return -l, 0
	}

	return l, r
}

// alignEncoders zeroes both encoders and offsets them so that the
// difference between the wheels agrees with the current yaw.
func (t *Task) alignEncoders() {
	yaw := t.sh.Yaw.Get()
	half := t.params.TrackWidth / 2

	t.left.Zero()
	t.right.Zero()
	t.right.SetOffset(half * yaw)
	t.left.SetOffset(-half * yaw)

	t.aligned = true
	log.Info().Str("task", TaskName).Float64("yaw", yaw).Msg("encoders aligned")
}

func (t *Task) hub() {
	if t.sh.Automatic.Get() {
		if !t.aligned {
			t.alignEncoders()
		}
		t.linePID.Set(0)
		t.goTo(CalibrationWait)
		return
	}

	if intent := t.sh.Intent.Get(); intent != None {
		t.goTo(intent)
	}
}

func (t *Task) disable() {
	t.setRefs(0, 0)

	t.sh.IntentAck.Clear()
	t.sh.ForwardAck.Clear()
	t.sh.ArcAck.Clear()
	t.sh.PivotAck.Clear()

	t.goTo(Hub)
}

func (t *Task) lineFollow() {
	if !t.sh.Automatic.Get() || t.sh.Intent.Get() == Disable {
		t.goTo(Disable)
		return
	}

	if goal := t.sh.CentroidGoal.Get(); goal != t.linePID.Get() {
		log.Info().Str("task", TaskName).Float64("goal", goal).Msg("centroid goal")
		t.linePID.Set(goal)
	}

	corr := t.linePID.UpdateDuration(t.sh.Centroid.Get(), t.dt)
	t.setRefs(t.params.LineBase-corr, t.params.LineBase+corr)
}

func (t *Task) headingHold() {
	if t.sh.Intent.Get() == Disable {
		t.goTo(Disable)
		return
	}

	goal := t.sh.YawGoal.Get()
	if goal == 0 {
		t.setRefs(0, 0)
		t.sh.IntentAck.Clear()
		t.goTo(Hub)
		return
	}

	// The controller's setpoint is 0 and it's fed the negated error, so
	// it always turns the short way round.
	err := heading.Error(goal, t.sh.Yaw.Get())
	out := t.yawPID.UpdateDuration(-err, t.dt)
	t.setRefs(-out, out)

	if math.Abs(out) <= t.params.HeadingDone {
		t.sh.YawGoalAck.Clear()
		t.sh.IntentAck.Clear()
		t.setRefs(0, 0)
		t.goTo(Hub)
	}
}

// drive runs the wheel speed loops and hands the efforts to the wheels.
func (t *Task) drive() {
	if t.sh.OpenLoop.Get() {
		return
	}

	l := t.pidL.Set(t.refL).UpdateDuration(t.sh.VelocityL.Get(), t.dt)
	r := t.pidR.Set(t.refR).UpdateDuration(t.sh.VelocityR.Get(), t.dt)
	l, r = fixSigns(l, r)

	t.sh.EffortL.Put(l)
	t.sh.EffortR.Put(r)
	t.sh.CommandL.Put(wheel.SetEffort)
	t.sh.CommandR.Put(wheel.SetEffort)
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case Hub:
		t.hub()

	case Forward:
		fwd := t.sh.Forward.Get()
		t.setRefs(fwd, fwd)
		t.sh.IntentAck.Clear()
		t.goTo(Hub)

	case Turn:
		base := t.params.TurnBase
		t.setRefs(base, TurnSpeed(base, t.sh.Arc.Get(), t.params.TrackWidth))
		t.sh.IntentAck.Clear()
		t.goTo(Hub)

	case Pivot:
		// Held for as long as the intent stays Pivot
		if t.sh.Intent.Get() != Pivot {
			t.goTo(Hub)
			break
		}
		w := t.sh.Pivot.Get() * t.params.TrackWidth / 2
		t.setRefs(-w, w)

	case Disable:
		t.disable()

	case AutoLineFollow:
		t.lineFollow()

	case CalibrationWait:
		if !t.sh.Automatic.Get() {
			t.goTo(Disable)
		} else if !t.sh.NeedCal.Get() {
			t.goTo(AutoLineFollow)
		}

	case HeadingHold:
		t.headingHold()

	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	t.drive()

	return int(ran)
}
