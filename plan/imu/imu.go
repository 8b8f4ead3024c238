// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package imu

import (
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/share"
)

const TaskName = "imu"

type State int

const (
	Init State = iota
	Read
)

type IMU interface {
	Update() error
	Yaw() float64
	YawRate() float64
}

// Configurer is implemented by sensors which need setting up before the
// first read.
type Configurer interface {
	Configure() error
}

type Shares struct {
	Yaw     share.Writer[float64]
	YawRate share.Writer[float64]
}

type Task struct {
	imu   IMU
	sh    Shares
	state State

	Errors uint64
}

func NewTask(imu IMU, sh Shares) *Task {
	return &Task{
		imu: imu,
		sh:  sh,
	}
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case Init:
		if c, ok := t.imu.(Configurer); ok {
			if err := c.Configure(); err != nil {
				log.Warn().Str("task", TaskName).Err(err).Msg("configure failed")
			}
		}
		t.state = Read

	case Read:
		if err := t.imu.Update(); err != nil {
			// Consumers carry on with the last reading
			t.Errors++
			log.Warn().Str("task", TaskName).Err(err).Msg("read failed")
			break
		}
		t.sh.Yaw.Put(t.imu.Yaw())
		t.sh.YawRate.Put(t.imu.YawRate())

	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	return int(ran)
}
