// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package model

import (
	"math"
	"testing"

	"github.com/usedbytes/romi/share"
)

func TestObserver(t *testing.T) {
	posL := share.NewCell("pos_l", 0.0)
	posR := share.NewCell("pos_r", 0.0)
	yaw := share.NewCell("yaw", 0.0)
	dist := share.NewCell("total_dist", 0.0)

	l, r, y := posL.Claim("left"), posR.Claim("right"), yaw.Claim("imu")

	m := NewModel(Shares{
		PositionL: posL.Reader(),
		PositionR: posR.Reader(),
		Yaw:       yaw.Reader(),
		Distance:  dist.Claim(TaskName),
	})

	m.Step()

	l.Put(90)
	r.Put(110)
	m.Step()
	if dist.Get() != 100 {
		t.Fatalf("expected 100 mm, got %v", dist.Get())
	}

	pos, _ := m.GetPose()
	if math.Abs(pos.X-100) > 1e-9 || math.Abs(pos.Y) > 1e-9 {
		t.Fatalf("expected (100, 0), got %v", pos)
	}

	y.Put(math.Pi / 2)
	l.Put(140)
	r.Put(160)
	m.Step()

	pos, ori := m.GetPose()
	if math.Abs(pos.X-100) > 1e-9 || math.Abs(pos.Y-50) > 1e-9 || ori != math.Pi/2 {
		t.Fatalf("expected (100, 50) facing pi/2, got %v %v", pos, ori)
	}

	m.ResetOrientation()
	pos, _ = m.GetPose()
	if pos != (Coord{}) {
		t.Fatalf("expected the pose reset, got %v", pos)
	}
	if dist.Get() != 150 {
		t.Fatalf("reset shouldn't change the distance, got %v", dist.Get())
	}
}
