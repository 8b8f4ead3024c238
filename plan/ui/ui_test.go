// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/usedbytes/romi/plan/collector"
	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/wheel"
	"github.com/usedbytes/romi/share"
)

type lines []string

func (l *lines) Poll() (string, bool) {
	if len(*l) == 0 {
		return "", false
	}
	line := (*l)[0]
	*l = (*l)[1:]
	return line, true
}

type rig struct {
	intent    *share.Cell[control.State]
	fwd       *share.Cell[float64]
	arc       *share.Cell[float64]
	piv       *share.Cell[float64]
	automatic *share.Cell[bool]
	start     *share.Cell[bool]
	openLoop  *share.Cell[bool]
	mode      *share.Cell[collector.Mode]
	pwmL      *share.Cell[float64]
	pwmR      *share.Cell[float64]
	cmdL      *share.Cell[wheel.State]
	cmdR      *share.Cell[wheel.State]
	settledL  *share.Cell[bool]
	settledR  *share.Cell[bool]
	needCal   *share.Cell[bool]
	black     *share.Cell[bool]
	white     *share.Cell[bool]
	yaw       *share.Cell[float64]
	rate      *share.Cell[float64]

	vel, vel2 *share.Queue[float64]

	in   lines
	out  bytes.Buffer
	task *Task
}

func newRig() *rig {
	r := &rig{
		intent:    share.NewCell("c_state", control.None, "ui", "pathing"),
		fwd:       share.NewCell("fwd_ref", 0.0, "ui", "pathing"),
		arc:       share.NewCell("arc_ref", 0.0, "ui", "pathing"),
		piv:       share.NewCell("piv_ref", 0.0, "ui", "pathing"),
		automatic: share.NewCell("automatic", false, "ui", "pathing"),
		start:     share.NewCell("start", false),
		openLoop:  share.NewCell("open_loop", false),
		mode:      share.NewCell("testing", collector.Off),
		pwmL:      share.NewCell("pwm_l", 0.0, "control", "ui"),
		pwmR:      share.NewCell("pwm_r", 0.0, "control", "ui"),
		cmdL:      share.NewCell("cmd_l", wheel.None, "control", "ui"),
		cmdR:      share.NewCell("cmd_r", wheel.None, "control", "ui"),
		settledL:  share.NewCell("settled_l", false),
		settledR:  share.NewCell("settled_r", false),
		needCal:   share.NewCell("need_cal", false),
		black:     share.NewCell("ready_black", false),
		white:     share.NewCell("ready_white", false),
		yaw:       share.NewCell("yaw", 0.0),
		rate:      share.NewCell("yaw_rate", 0.0),
		vel:       share.NewQueue[float64]("velocity", 4),
		vel2:      share.NewQueue[float64]("velocity2", 4),
	}

	r.task = NewTask(Shares{
		Intent:      r.intent.Claim(TaskName),
		Forward:     r.fwd.Claim(TaskName),
		Arc:         r.arc.Claim(TaskName),
		Pivot:       r.piv.Claim(TaskName),
		Automatic:   r.automatic.Claim(TaskName),
		Start:       r.start.Claim(TaskName),
		OpenLoop:    r.openLoop.Claim(TaskName),
		Mode:        r.mode.Claim(TaskName),
		EffortL:     r.pwmL.Claim(TaskName),
		EffortR:     r.pwmR.Claim(TaskName),
		CommandL:    r.cmdL.Claim(TaskName),
		CommandR:    r.cmdR.Claim(TaskName),
		SettledL:    r.settledL.Reader(),
		SettledR:    r.settledR.Reader(),
		SettledAckL: r.settledL.Clearer(),
		SettledAckR: r.settledR.Clearer(),
		NeedCal:     r.needCal.Reader(),
		ReadyBlack:  r.black.Claim(TaskName),
		ReadyWhite:  r.white.Claim(TaskName),
		Yaw:         r.yaw.Reader(),
		YawRate:     r.rate.Reader(),
		Velocity:    r.vel,
		Velocity2:   r.vel2,
	}, DefaultLimits(), &r.out, &r.in)

	return r
}

func (r *rig) send(l ...string) {
	r.in = append(r.in, l...)
}

func (r *rig) steps(n int) {
	for i := 0; i < n; i++ {
		r.task.Step()
	}
}

func TestDriveCommands(t *testing.T) {
	tcs := []struct {
		input  []string
		intent control.State
		ref    func(r *rig) float64
		want   float64
	}{
		{[]string{"1", "120"}, control.Forward, func(r *rig) float64 { return r.fwd.Get() }, 120},
		{[]string{"1 -80"}, control.Forward, func(r *rig) float64 { return r.fwd.Get() }, -80},
		{[]string{"1", "-80"}, control.Forward, func(r *rig) float64 { return r.fwd.Get() }, -80},
		{[]string{"1120"}, control.Forward, func(r *rig) float64 { return r.fwd.Get() }, 120},
		{[]string{"2300"}, control.Turn, func(r *rig) float64 { return r.arc.Get() }, 300},
		{[]string{"2", "300"}, control.Turn, func(r *rig) float64 { return r.arc.Get() }, 300},
		{[]string{"3-2.5"}, control.Pivot, func(r *rig) float64 { return r.piv.Get() }, -2.5},
		{[]string{"3", "1.5"}, control.Pivot, func(r *rig) float64 { return r.piv.Get() }, 1.5},
	}

	for i, tc := range tcs {
		r := newRig()
		r.send(tc.input...)
		r.steps(3)

		if r.intent.Get() != tc.intent {
			t.Fatalf("%d: expected intent %v, got %v", i, tc.intent, r.intent.Get())
		}
		if got := tc.ref(r); got != tc.want {
			t.Fatalf("%d: expected ref %v, got %v", i, tc.want, got)
		}
		if r.out.Len() != 0 {
			t.Fatalf("%d: unexpected output %q", i, r.out.String())
		}
		if r.task.State() != Idle {
			t.Fatalf("%d: expected Idle, got %v", i, r.task.State())
		}
	}
}

func TestBadParameter(t *testing.T) {
	tcs := [][]string{
		{"1", "501"},
		{"2 -1001"},
		{"3", "fast"},
	}

	for i, tc := range tcs {
		r := newRig()
		r.send(tc...)
		r.steps(3)

		if r.intent.Get() != control.None {
			t.Fatalf("%d: expected no intent, got %v", i, r.intent.Get())
		}
		if r.task.State() != Idle {
			t.Fatalf("%d: expected Idle, got %v", i, r.task.State())
		}
		if r.out.Len() == 0 {
			t.Fatalf("%d: expected a complaint", i)
		}
	}
}

func TestStop(t *testing.T) {
	r := newRig()
	r.send("1 100", "g")
	r.steps(4)

	if !r.automatic.Get() || !r.start.Get() {
		t.Fatalf("expected automatic mode started")
	}

	r.send("0")
	r.steps(2)

	if r.intent.Get() != control.Disable {
		t.Fatalf("expected Disable, got %v", r.intent.Get())
	}
	if r.fwd.Get() != 0 || r.automatic.Get() || r.start.Get() || r.openLoop.Get() {
		t.Fatalf("expected everything reset")
	}
}

func TestCalibration(t *testing.T) {
	r := newRig()
	r.needCal.Claim("line").Put(true)

	r.task.Step()
	if r.task.State() != CalBlack {
		t.Fatalf("expected CalBlack, got %v", r.task.State())
	}
	if !strings.Contains(r.out.String(), "Need Calibration Data") {
		t.Fatalf("expected a prompt, got %q", r.out.String())
	}

	r.send("x", "1")
	r.steps(2)
	if !r.black.Get() || r.task.State() != CalWhite {
		t.Fatalf("expected black captured, state %v", r.task.State())
	}

	r.send("1")
	r.task.Step()
	if !r.white.Get() || r.task.State() != Idle {
		t.Fatalf("expected white captured, state %v", r.task.State())
	}

	// Only prompted once
	r.out.Reset()
	r.task.Step()
	if r.task.State() != Idle || r.out.Len() != 0 {
		t.Fatalf("expected no second prompt")
	}
}

func TestHeading(t *testing.T) {
	r := newRig()
	r.yaw.Claim("imu").Put(1.25)
	r.send("i")
	r.task.Step()

	if r.out.String() != "Yaw, YawRate\r\n1.250, 0.000\r\n" {
		t.Fatalf("unexpected output %q", r.out.String())
	}
}

func TestSweep(t *testing.T) {
	r := newRig()
	sl, sr := r.settledL.Claim("left"), r.settledR.Claim("right")

	r.send("s")
	r.steps(2)

	if r.task.State() != SweepSettle || !r.openLoop.Get() {
		t.Fatalf("expected an open loop settle, state %v", r.task.State())
	}
	if r.cmdL.Get() != wheel.ZeroAndSettle || r.cmdR.Get() != wheel.ZeroAndSettle {
		t.Fatalf("expected both wheels settling")
	}

	for effort := 10.0; effort <= 100; effort += 10 {
		if r.task.State() != SweepSettle {
			t.Fatalf("effort %v: expected SweepSettle, got %v", effort, r.task.State())
		}

		r.vel.Put(99)
		sl.Put(true)
		sr.Put(true)
		r.task.Step()

		if r.task.State() != SweepRun || r.pwmL.Get() != effort || r.mode.Get() != collector.LeftVelocity {
			t.Fatalf("effort %v: expected a run, state %v pwm %v", effort, r.task.State(), r.pwmL.Get())
		}
		if sl.Get() || !r.vel.Empty() {
			t.Fatalf("effort %v: expected settled acked and the queue emptied", effort)
		}

		for !r.vel.Full() {
			r.task.Step()
			r.vel.Put(effort)
		}
		r.task.Step()
		if r.mode.Get() != collector.Off || !r.vel.Empty() {
			t.Fatalf("effort %v: expected the run dumped", effort)
		}

		if effort < 100 {
			r.steps(sweepPause + 1)
		}
	}

	if r.task.State() != Idle || r.openLoop.Get() || r.pwmL.Get() != 0 {
		t.Fatalf("expected the sweep finished, state %v", r.task.State())
	}
	if strings.Count(r.out.String(), "Times, Velocity(mm/s)") != 1 {
		t.Fatalf("expected one header")
	}
	if !strings.Contains(r.out.String(), "3, 100.000\r\n") {
		t.Fatalf("expected the last run printed")
	}
}

func TestStepResponse(t *testing.T) {
	r := newRig()
	sl, sr := r.settledL.Claim("left"), r.settledR.Claim("right")

	r.send("t 3 2.5")
	r.steps(3)
	if r.task.State() != TestSettle || r.piv.Get() != 2.5 {
		t.Fatalf("expected settling with a pivot ref, state %v", r.task.State())
	}

	sl.Put(true)
	sr.Put(true)
	r.task.Step()
	if r.intent.Get() != control.Pivot || r.mode.Get() != collector.BothVelocity || r.openLoop.Get() {
		t.Fatalf("expected a closed loop pivot being sampled")
	}

	for i := 0; i < 4; i++ {
		r.vel.Put(float64(i))
		r.vel2.Put(float64(-i))
	}
	r.steps(2)

	if r.task.State() != Idle || r.intent.Get() != control.Disable {
		t.Fatalf("expected stopped, state %v", r.task.State())
	}
	if !strings.Contains(r.out.String(), "3, -3.000\r\n") {
		t.Fatalf("expected the right wheel printed")
	}
}

func TestBadTest(t *testing.T) {
	r := newRig()
	r.send("t 4")
	r.steps(2)

	if r.task.State() != Idle {
		t.Fatalf("expected Idle, got %v", r.task.State())
	}
}
