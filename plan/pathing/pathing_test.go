// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package pathing

import (
	"math"
	"testing"

	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/heading"
	"github.com/usedbytes/romi/share"
)

type rig struct {
	start   share.Writer[bool]
	yaw     share.Writer[float64]
	dist    share.Writer[float64]
	bumped  share.Writer[bool]
	intent  *share.Cell[control.State]
	fwd     *share.Cell[float64]
	piv     *share.Cell[float64]
	auto    *share.Cell[bool]
	goal    *share.Cell[float64]
	yawGoal *share.Cell[float64]
	bumpOn  *share.Cell[bool]
	task    *Task
}

func newRig(course Course) *rig {
	start := share.NewCell("start", false)
	yaw := share.NewCell("yaw", 0.0)
	dist := share.NewCell("total_dist", 0.0)
	bumped := share.NewCell("bumped", false)

	r := &rig{
		start:   start.Claim("ui"),
		yaw:     yaw.Claim("imu"),
		dist:    dist.Claim("observer"),
		bumped:  bumped.Claim("bump"),
		intent:  share.NewCell("c_state", control.None, "ui", "pathing"),
		fwd:     share.NewCell("fwd_ref", 0.0, "ui", "pathing"),
		piv:     share.NewCell("piv_ref", 0.0, "ui", "pathing"),
		auto:    share.NewCell("automatic", false, "ui", "pathing"),
		goal:    share.NewCell("centroid_goal", 0.0),
		yawGoal: share.NewCell("yaw_goal", 0.0),
		bumpOn:  share.NewCell("bump_on", false),
	}

	r.task = NewTask(course, Shares{
		Start:        start.Reader(),
		Yaw:          yaw.Reader(),
		Distance:     dist.Reader(),
		Bumped:       bumped.Reader(),
		Intent:       r.intent.Claim("pathing"),
		Forward:      r.fwd.Claim("pathing"),
		Pivot:        r.piv.Claim("pathing"),
		Automatic:    r.auto.Claim("pathing"),
		CentroidGoal: r.goal.Claim("pathing"),
		YawGoal:      r.yawGoal.Claim("pathing"),
		BumpEnable:   r.bumpOn.Claim("pathing"),
	})

	return r
}

func (r *rig) begin(t *testing.T) {
	r.start.Put(true)
	r.task.Step()
	if r.task.State() != 1 {
		t.Fatalf("expected the first leg after start, got %d", r.task.State())
	}
}

func course(legs ...Leg) Course {
	c := DefaultCourse()
	c.Legs = append(legs, Leg{Name: "Stop", Kind: Stop})
	return c
}

func TestDefaultCourse(t *testing.T) {
	c := DefaultCourse()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}

	want := []string{"LineFollow0", "CentroidOffset", "AlignGoal1", "AlignCtl1", "Fork"}
	for i, name := range want {
		if c.Legs[i].Name != name {
			t.Fatalf("leg %d: expected %s, got %s", i, name, c.Legs[i].Name)
		}
	}
	if c.Legs[len(c.Legs)-2].Name != "FinishLine" {
		t.Fatalf("expected FinishLine before Stop")
	}
}

func TestIdleWaitsForStart(t *testing.T) {
	r := newRig(course(Leg{Name: "go", Kind: Traverse, Dist: 100, Speed: 50}))
	r.yaw.Put(2.0)

	for i := 0; i < 3; i++ {
		if got := r.task.Step(); got != Idle {
			t.Fatalf("expected Idle, got %d", got)
		}
	}
	if r.intent.Get() != control.None {
		t.Fatalf("nothing should be commanded before the start")
	}

	r.begin(t)
	if r.task.YawOffset() != 2.0 {
		t.Fatalf("expected yaw offset 2.0, got %v", r.task.YawOffset())
	}

	// Captured once only
	r.yaw.Put(3.0)
	r.task.Step()
	if r.task.YawOffset() != 2.0 {
		t.Fatalf("yaw offset changed to %v", r.task.YawOffset())
	}
}

func TestAlignmentGoal(t *testing.T) {
	c := course(Leg{Name: "align", Kind: AlignGoal, Yaw: 1.0 * 180 / math.Pi, Dir: 1})
	r := newRig(c)
	r.begin(t)

	target := heading.Deg2Rad(c.Legs[0].Yaw)

	for i := 0; i <= 20; i++ {
		yaw := float64(i) / 10
		r.yaw.Put(yaw)
		r.task.Step()

		if yaw < target {
			if r.task.State() != 1 {
				t.Fatalf("yaw %v: moved on too early", yaw)
			}
			if r.intent.Get() != control.Pivot || r.piv.Get() != 0.75 {
				t.Fatalf("yaw %v: expected a pivot at 0.75, got %v %v", yaw, r.intent.Get(), r.piv.Get())
			}
			continue
		}

		// First tick in [target, target+0.5]
		if r.task.State() != 2 {
			t.Fatalf("yaw %v: expected to move on, state %d", yaw, r.task.State())
		}
		if math.Abs(r.yawGoal.Get()-1.0) > 1e-9 {
			t.Fatalf("expected yaw goal 1.0, got %v", r.yawGoal.Get())
		}
		if r.intent.Get() != control.Disable || r.piv.Get() != 0 || r.auto.Get() {
			t.Fatalf("expected pivot disabled and automatic off")
		}
		return
	}

	t.Fatalf("never reached the band")
}

func TestAlignmentGoalOffset(t *testing.T) {
	c := course(Leg{Name: "align", Kind: AlignGoal, Yaw: 90, Dir: -1})
	r := newRig(c)

	// Start facing 5 rad, so a relative 90 degrees wraps past zero
	r.yaw.Put(5.0)
	r.begin(t)

	r.yaw.Put(5.0 + math.Pi/2 + 0.1 - 2*math.Pi)
	r.task.Step()
	if r.task.State() != 2 {
		t.Fatalf("expected the band to be found across zero")
	}

	want := 5.0 + math.Pi/2 - 2*math.Pi
	if math.Abs(r.yawGoal.Get()-want) > 1e-9 {
		t.Fatalf("expected yaw goal %v, got %v", want, r.yawGoal.Get())
	}
	if r.piv.Get() != 0 {
		t.Fatalf("pivot should be stopped")
	}
}

func TestAlignmentControl(t *testing.T) {
	r := newRig(course(Leg{Name: "hold", Kind: AlignControl}))
	r.begin(t)

	r.yawGoal.Claim("pathing").Put(1.2)
	r.task.Step()
	if r.intent.Get() != control.HeadingHold || r.task.State() != 1 {
		t.Fatalf("expected HeadingHold to be requested")
	}

	// control acknowledges
	r.yawGoal.Clear()
	r.intent.Clear()
	r.task.Step()
	if r.task.State() != 2 {
		t.Fatalf("expected to move on once the goal is cleared")
	}
	if r.intent.Get() != control.None {
		t.Fatalf("HeadingHold shouldn't be requested again")
	}
}

func TestFreeTraverse(t *testing.T) {
	r := newRig(course(Leg{Name: "go", Kind: Traverse, Dist: 500, Speed: 80}))
	r.begin(t)

	for d := 0.0; d < 500; d += 50 {
		r.dist.Put(d)
		r.task.Step()
		if r.fwd.Get() != 80 || r.intent.Get() != control.Forward {
			t.Fatalf("dist %v: expected Forward at 80, got %v %v", d, r.intent.Get(), r.fwd.Get())
		}
		if r.task.State() != 1 {
			t.Fatalf("dist %v: moved on too early", d)
		}
	}

	r.dist.Put(500)
	r.task.Step()
	if r.intent.Get() != control.Disable || r.fwd.Get() != 0 {
		t.Fatalf("expected Disable and stopped, got %v %v", r.intent.Get(), r.fwd.Get())
	}
	if r.task.State() != 2 {
		t.Fatalf("expected to move on, got %d", r.task.State())
	}
}

func TestLineFollow(t *testing.T) {
	r := newRig(course(
		Leg{Name: "line", Kind: LineFollow, Dist: 550},
		Leg{Name: "offset", Kind: CentroidOffset, Goal: -0.4, Dist: 950},
	))
	r.begin(t)

	r.dist.Put(100)
	r.task.Step()
	if !r.auto.Get() || r.goal.Get() != 0 || r.task.State() != 1 {
		t.Fatalf("expected automatic line following")
	}

	r.dist.Put(550)
	r.task.Step()
	r.task.Step()
	if r.goal.Get() != -0.4 || !r.auto.Get() || r.task.State() != 2 {
		t.Fatalf("expected the centroid to be offset, got %v", r.goal.Get())
	}

	r.dist.Put(950)
	r.task.Step()
	if r.goal.Get() != 0 || r.auto.Get() || r.task.State() != 3 {
		t.Fatalf("expected offset reset and automatic off")
	}
}

func TestWall(t *testing.T) {
	r := newRig(course(Leg{Name: "wall", Kind: Wall, Speed: 100, Backoff: 100}))
	r.begin(t)

	r.dist.Put(3900)
	r.task.Step()
	if !r.bumpOn.Get() || r.fwd.Get() != 100 || r.intent.Get() != control.Forward {
		t.Fatalf("expected to drive at the wall with bump sensing on")
	}

	r.dist.Put(3950)
	r.bumped.Put(true)
	r.task.Step()
	if r.fwd.Get() != -100 {
		t.Fatalf("expected to back off, got %v", r.fwd.Get())
	}

	// Distance goes down while reversing; the start point must not move
	for _, d := range []float64{3920, 3880, 3860} {
		r.dist.Put(d)
		r.task.Step()
		if r.task.State() != 1 {
			t.Fatalf("dist %v: stopped backing off too soon", d)
		}
	}

	r.dist.Put(3850)
	r.task.Step()
	if r.task.State() != 2 || r.bumpOn.Get() {
		t.Fatalf("expected to finish and disarm the bump sensor")
	}
}

func TestStop(t *testing.T) {
	r := newRig(course())
	r.begin(t)
	r.auto.Claim("ui").Put(true)

	for i := 0; i < 3; i++ {
		r.task.Step()
		if r.task.State() != 1 {
			t.Fatalf("Stop should be terminal")
		}
	}
	if r.intent.Get() != control.Disable || r.auto.Get() {
		t.Fatalf("expected Disable and automatic off")
	}
}

func TestStartCleared(t *testing.T) {
	r := newRig(course(
		Leg{Name: "go", Kind: Traverse, Dist: 500, Speed: 80},
		Leg{Name: "wall", Kind: Wall, Speed: 100, Backoff: 100},
	))
	r.begin(t)

	r.task.Step()
	if r.intent.Get() != control.Forward || r.fwd.Get() != 80 {
		t.Fatalf("expected Forward at 80")
	}

	// What the console writes for a stop
	ui := r.auto.Claim("ui")
	r.start.Put(false)
	ui.Put(false)
	r.intent.Claim("ui").Put(control.Disable)
	r.fwd.Claim("ui").Put(0)

	for i := 0; i < 3; i++ {
		if got := r.task.Step(); i > 0 && got != Idle {
			t.Fatalf("expected to stay Idle, got %d", got)
		}
		if r.task.State() != Idle {
			t.Fatalf("expected Idle, got %d", r.task.State())
		}
		if r.intent.Get() != control.Disable || r.fwd.Get() != 0 || r.auto.Get() {
			t.Fatalf("expected to stay stopped, got %v %v", r.intent.Get(), r.fwd.Get())
		}
	}

	// A fresh start runs from the first leg
	r.dist.Put(600)
	r.begin(t)
	r.task.Step()
	if r.task.State() != 2 {
		t.Fatalf("expected the first leg to run again, got %d", r.task.State())
	}
}

func TestKindText(t *testing.T) {
	var k Kind
	if err := k.UnmarshalText([]byte("traverse")); err != nil || k != Traverse {
		t.Fatalf("expected traverse, got %v %v", k, err)
	}
	if err := k.UnmarshalText([]byte("fly")); err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
}
