// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package imu

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/usedbytes/romi/share"
)

type fakeIMU struct {
	yaw, rate  float64
	err        error
	configured bool
}

func (f *fakeIMU) Update() error    { return f.err }
func (f *fakeIMU) Yaw() float64     { return f.yaw }
func (f *fakeIMU) YawRate() float64 { return f.rate }

func (f *fakeIMU) Configure() error {
	f.configured = true
	return nil
}

func TestReadKeepsStale(t *testing.T) {
	yaw := share.NewCell("yaw", 0.0)
	rate := share.NewCell("yaw_rate", 0.0)
	f := &fakeIMU{yaw: 1.25, rate: 0.5}

	task := NewTask(f, Shares{Yaw: yaw.Claim(TaskName), YawRate: rate.Claim(TaskName)})

	task.Step()
	if !f.configured {
		t.Fatalf("expected the IMU to be configured first")
	}

	task.Step()
	if yaw.Get() != 1.25 || rate.Get() != 0.5 {
		t.Fatalf("expected 1.25, 0.5 got %v %v", yaw.Get(), rate.Get())
	}

	f.yaw = 2
	f.err = errors.New("i2c: nack")
	task.Step()
	if yaw.Get() != 1.25 || task.Errors != 1 {
		t.Fatalf("a failed read should leave the last value, got %v", yaw.Get())
	}
}
