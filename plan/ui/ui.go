// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package ui is the operator console task.
//
// Commands arrive a line at a time from one or more Sources, none of which
// may block. A command is a single character, and any parameters it takes
// can either follow on the same line or be sent on the lines after it:
//
//	1 <mm/s>            drive forward
//	2 <radius mm>       drive an arc
//	3 <rad/s>           pivot on the spot
//	0                   stop everything
//	s                   open loop effort sweep of the left wheel
//	t <1|2|3> <ref>     closed loop step response of both wheels
//	c                   line sensor calibration
//	g                   run the course
//	i                   print the heading
package ui

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/plan/collector"
	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/wheel"
	"github.com/usedbytes/romi/share"
)

const TaskName = "ui"

type State int

const (
	Idle State = iota
	ForwardRef
	TurnRef
	PivotRef
	Stop
	Sweep
	SweepSettle
	SweepRun
	SweepPause
	TestWhich
	TestRef
	TestSettle
	TestRun
	CalBlack
	CalWhite
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case ForwardRef:
		return "ForwardRef"
	case TurnRef:
		return "TurnRef"
	case PivotRef:
		return "PivotRef"
	case Stop:
		return "Stop"
	case Sweep:
		return "Sweep"
	case SweepSettle:
		return "SweepSettle"
	case SweepRun:
		return "SweepRun"
	case SweepPause:
		return "SweepPause"
	case TestWhich:
		return "TestWhich"
	case TestRef:
		return "TestRef"
	case TestSettle:
		return "TestSettle"
	case TestRun:
		return "TestRun"
	case CalBlack:
		return "CalBlack"
	case CalWhite:
		return "CalWhite"
	}
	return "Unknown"
}

// Source supplies command lines. Poll must return straight away, with
// false if there's nothing waiting.
type Source interface {
	Poll() (string, bool)
}

// Limits bound the parameters accepted from the console.
type Limits struct {
	Speed  float64 `toml:"speed"`
	Radius float64 `toml:"radius"`
	Rate   float64 `toml:"rate"`
}

func DefaultLimits() Limits {
	return Limits{
		Speed:  500,
		Radius: 1000,
		Rate:   6,
	}
}

const (
	sweepStart = 10
	sweepStep  = 10
	sweepEnd   = 100
	sweepPause = 10
)

type Shares struct {
	Intent    share.Writer[control.State]
	Forward   share.Writer[float64]
	Arc       share.Writer[float64]
	Pivot     share.Writer[float64]
	Automatic share.Writer[bool]
	Start     share.Writer[bool]
	OpenLoop  share.Writer[bool]
	Mode      share.Writer[collector.Mode]

	EffortL  share.Writer[float64]
	EffortR  share.Writer[float64]
	CommandL share.Writer[wheel.State]
	CommandR share.Writer[wheel.State]

	SettledL    share.Reader[bool]
	SettledR    share.Reader[bool]
	SettledAckL share.Clearer
	SettledAckR share.Clearer

	NeedCal    share.Reader[bool]
	ReadyBlack share.Writer[bool]
	ReadyWhite share.Writer[bool]

	Yaw     share.Reader[float64]
	YawRate share.Reader[float64]

	Velocity  *share.Queue[float64]
	Velocity2 *share.Queue[float64]
}

type Task struct {
	sh      Shares
	limits  Limits
	out     io.Writer
	sources []Source

	state   State
	pending []string

	calPrompted bool

	effort float64
	pause  int
	header bool

	testWhich int
}

func NewTask(sh Shares, limits Limits, out io.Writer, sources ...Source) *Task {
	return &Task{
		sh:      sh,
		limits:  limits,
		out:     out,
		sources: sources,
	}
}

func (t *Task) State() State {
	return t.state
}

func (t *Task) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.out, format+"\r\n", args...)
}

const commands = "0123stcgi"

func isCommand(word string) bool {
	if len(word) < 2 || !strings.ContainsRune(commands, rune(word[0])) {
		return false
	}

	_, err := strconv.ParseFloat(word[1:], 64)
	return err == nil
}

// next returns the next word of input, if any.
func (t *Task) next() (string, bool) {
	if len(t.pending) > 0 {
		w := t.pending[0]
		t.pending = t.pending[1:]
		return w, true
	}

	for _, s := range t.sources {
		line, ok := s.Poll()
		if !ok {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		// A command may run straight into its number: "1120" is "1" then
		// "120". Lines read for a parameter are never split.
		if t.state == Idle && isCommand(fields[0]) {
			fields = append([]string{fields[0][:1], fields[0][1:]}, fields[1:]...)
		}

		t.pending = fields[1:]
		return fields[0], true
	}

	return "", false
}

func (t *Task) goTo(s State) {
	if s == t.state {
		return
	}

	log.Debug().Str("task", TaskName).Stringer("from", t.state).Stringer("to", s).Msg("state")
	t.state = s
}

func (t *Task) idle() {
	if t.sh.NeedCal.Get() && !t.calPrompted {
		t.calPrompted = true
		t.printf("Need Calibration Data")
		t.printf("Place on black and send 1")
		t.goTo(CalBlack)
		return
	}

	cmd, ok := t.next()
	if !ok {
		return
	}

	switch cmd {
	case "1":
		t.goTo(ForwardRef)
	case "2":
		t.goTo(TurnRef)
	case "3":
		t.goTo(PivotRef)
	case "0":
		t.goTo(Stop)
	case "s":
		t.effort = sweepStart
		t.header = false
		t.goTo(Sweep)
	case "t":
		t.goTo(TestWhich)
	case "c":
		t.printf("Place on black and send 1")
		t.goTo(CalBlack)
	case "g":
		t.printf("Starting course")
		t.sh.Automatic.Put(true)
		t.sh.Start.Put(true)
	case "i":
		t.printf("Yaw, YawRate")
		t.printf("%.3f, %.3f", t.sh.Yaw.Get(), t.sh.YawRate.Get())
	default:
		t.printf("Unknown command '%s'", cmd)
		t.pending = nil
	}
}

// param reads a number with magnitude no more than limit. It returns false
// until one arrives, and bails back to Idle if it's no good.
func (t *Task) param(what string, limit float64) (float64, bool) {
	word, ok := t.next()
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(word, 64)
	if err != nil {
		t.printf("Bad %s '%s'", what, word)
		t.pending = nil
		t.goTo(Idle)
		return 0, false
	}

	if math.Abs(v) > limit {
		t.printf("%s %v out of range (max %v)", what, v, limit)
		t.pending = nil
		t.goTo(Idle)
		return 0, false
	}

	return v, true
}

func (t *Task) stop() {
	t.sh.Mode.Put(collector.Off)
	t.sh.Forward.Put(0)
	t.sh.Arc.Put(0)
	t.sh.Pivot.Put(0)
	t.sh.Automatic.Put(false)
	t.sh.Start.Put(false)
	t.sh.OpenLoop.Put(false)
	t.sh.Intent.Put(control.Disable)
	t.printf("Stopped")
}

func (t *Task) settle() {
	t.sh.OpenLoop.Put(true)
	t.sh.EffortL.Put(0)
	t.sh.EffortR.Put(0)
	t.sh.CommandL.Put(wheel.ZeroAndSettle)
	t.sh.CommandR.Put(wheel.ZeroAndSettle)
}

func (t *Task) settled() bool {
	if !t.sh.SettledL.Get() || !t.sh.SettledR.Get() {
		return false
	}

	t.sh.SettledAckL.Clear()
	t.sh.SettledAckR.Clear()
	t.sh.Velocity.Clear()
	t.sh.Velocity2.Clear()

	return true
}

func (t *Task) dump(q *share.Queue[float64]) {
	for i := 0; !q.Empty(); i++ {
		v, _ := q.Get()
		t.printf("%d, %.3f", i, v)
	}
}

func (t *Task) sweep() {
	switch t.state {
	case Sweep:
		t.settle()
		t.goTo(SweepSettle)

	case SweepSettle:
		if !t.settled() {
			return
		}
		t.sh.EffortL.Put(t.effort)
		t.sh.CommandL.Put(wheel.SetEffort)
		t.sh.Mode.Put(collector.LeftVelocity)
		t.goTo(SweepRun)

	case SweepRun:
		if !t.sh.Velocity.Full() {
			return
		}
		t.sh.Mode.Put(collector.Off)

		if !t.header {
			t.printf("Times, Velocity(mm/s)")
			t.header = true
		}
		t.printf("Effort %v", t.effort)
		t.dump(t.sh.Velocity)

		t.effort += sweepStep
		if t.effort > sweepEnd {
			t.sh.EffortL.Put(0)
			t.sh.CommandL.Put(wheel.SetEffort)
			t.sh.OpenLoop.Put(false)
			t.goTo(Idle)
			return
		}

		t.pause = sweepPause
		t.goTo(SweepPause)

	case SweepPause:
		t.pause--
		if t.pause <= 0 {
			t.goTo(Sweep)
		}
	}
}

func (t *Task) test() {
	switch t.state {
	case TestWhich:
		v, ok := t.param("test", 3)
		if !ok {
			return
		}
		which := int(v)
		if which < 1 || float64(which) != v {
			t.printf("Bad test '%v', want 1, 2 or 3", v)
			t.pending = nil
			t.goTo(Idle)
			return
		}
		t.testWhich = which
		t.goTo(TestRef)

	case TestRef:
		limit := []float64{t.limits.Speed, t.limits.Radius, t.limits.Rate}[t.testWhich-1]
		ref, ok := t.param("reference", limit)
		if !ok {
			return
		}
		switch t.testWhich {
		case 1:
			t.sh.Forward.Put(ref)
		case 2:
			t.sh.Arc.Put(ref)
		case 3:
			t.sh.Pivot.Put(ref)
		}
		t.settle()
		t.goTo(TestSettle)

	case TestSettle:
		if !t.settled() {
			return
		}
		t.sh.OpenLoop.Put(false)
		t.sh.Mode.Put(collector.BothVelocity)
		t.sh.Intent.Put([]control.State{control.Forward, control.Turn, control.Pivot}[t.testWhich-1])
		t.goTo(TestRun)

	case TestRun:
		if !t.sh.Velocity.Full() || !t.sh.Velocity2.Full() {
			return
		}
		t.sh.Mode.Put(collector.Off)
		t.printf("Times, Velocity(mm/s)")
		t.dump(t.sh.Velocity)
		t.printf("Times, Velocity2(mm/s)")
		t.dump(t.sh.Velocity2)
		t.goTo(Stop)
	}
}

func (t *Task) calibrate() {
	word, ok := t.next()
	if !ok || word != "1" {
		return
	}

	switch t.state {
	case CalBlack:
		t.sh.ReadyBlack.Put(true)
		t.printf("Place on white and send 1")
		t.goTo(CalWhite)
	case CalWhite:
		t.sh.ReadyWhite.Put(true)
		t.printf("Calibration done")
		t.goTo(Idle)
	}
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case Idle:
		t.idle()

	case ForwardRef:
		if v, ok := t.param("speed", t.limits.Speed); ok {
			t.sh.Forward.Put(v)
			t.sh.Intent.Put(control.Forward)
			t.goTo(Idle)
		}

	case TurnRef:
		if v, ok := t.param("radius", t.limits.Radius); ok {
			t.sh.Arc.Put(v)
			t.sh.Intent.Put(control.Turn)
			t.goTo(Idle)
		}

	case PivotRef:
		if v, ok := t.param("rate", t.limits.Rate); ok {
			t.sh.Pivot.Put(v)
			t.sh.Intent.Put(control.Pivot)
			t.goTo(Idle)
		}

	case Stop:
		t.stop()
		t.goTo(Idle)

	case Sweep, SweepSettle, SweepRun, SweepPause:
		t.sweep()

	case TestWhich, TestRef, TestSettle, TestRun:
		t.test()

	case CalBlack, CalWhite:
		t.calibrate()

	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	return int(ran)
}
