// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package imu

import (
	"time"

	"github.com/pkg/errors"
	"github.com/usedbytes/bno055"
	"periph.io/x/periph/conn/i2c"

	"github.com/usedbytes/romi/plan/heading"
)

const Addr = 0x29

// IMU reads the fused heading from a BNO055.
type IMU struct {
	dev *bno055.Dev
	now func() time.Time

	yaw, rate float64
	last      time.Time
}

func NewI2C(b i2c.BusCloser) (*IMU, error) {
	dev, err := bno055.NewI2C(b, Addr)
	if err != nil {
		return nil, errors.Wrap(err, "BNO055")
	}

	return &IMU{
		dev: dev,
		now: time.Now,
	}, nil
}

func (m *IMU) Configure() error {
	return errors.Wrap(m.dev.SetUseExternalCrystal(true), "SetUseExternalCrystal")
}

// Update reads a new heading. On error the previous values are kept.
func (m *IMU) Update() error {
	vec, err := m.dev.GetVector(bno055.VECTOR_EULER)
	if err != nil {
		return errors.Wrap(err, "GetVector")
	}
	if len(vec) == 0 {
		return errors.New("GetVector: empty vector")
	}

	// BNO055 heading is clockwise, in degrees
	yaw := heading.Wrap(-heading.Deg2Rad(vec[0]))

	now := m.now()
	if !m.last.IsZero() {
		if dt := now.Sub(m.last).Seconds(); dt > 0 {
			m.rate = heading.Error(yaw, m.yaw) / dt
		}
	}

	m.yaw, m.last = yaw, now

	return nil
}

// Yaw in radians, [0, 2π), anti-clockwise.
func (m *IMU) Yaw() float64 {
	return m.yaw
}

// YawRate in rad/s.
func (m *IMU) YawRate() float64 {
	return m.rate
}
