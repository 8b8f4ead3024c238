// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package linesense

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/base/line"
	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/share"
)

const TaskName = "line"

type State int

const (
	CheckCalibration State = iota
	Calibrating
	Reading
	Recheck
)

type Sensor interface {
	Raw() []float64
}

type Shares struct {
	ReadyBlack    share.Reader[bool]
	ReadyBlackAck share.Clearer
	ReadyWhite    share.Reader[bool]
	ReadyWhiteAck share.Clearer

	NeedCal  share.Writer[bool]
	Centroid share.Writer[float64]
}

type Task struct {
	sensor Sensor
	path   string
	sh     Shares

	state State
	cal   *line.Calibration

	black, white []float64
}

// NewTask creates the line task, which keeps its calibration in the file
// at path.
func NewTask(sensor Sensor, path string, sh Shares) *Task {
	return &Task{
		sensor: sensor,
		path:   path,
		sh:     sh,
	}
}

func (t *Task) State() State {
	return t.state
}

func (t *Task) load() bool {
	cal, err := line.LoadCalibration(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("task", TaskName).Err(err).Msg("bad calibration file")
		}
		return false
	}

	t.cal = cal
	return true
}

func (t *Task) capture() {
	if t.sh.ReadyBlack.Get() {
		t.black = t.sensor.Raw()
		t.sh.ReadyBlackAck.Clear()
		log.Info().Str("task", TaskName).Floats64("black", t.black).Msg("captured")
	}

	if t.sh.ReadyWhite.Get() {
		t.white = t.sensor.Raw()
		t.sh.ReadyWhiteAck.Clear()
		log.Info().Str("task", TaskName).Floats64("white", t.white).Msg("captured")
	}

	if t.black == nil || t.white == nil {
		return
	}

	err := line.SaveCalibration(t.path, &line.Calibration{Black: t.black, White: t.white})
	if err != nil {
		log.Error().Str("task", TaskName).Err(err).Msg("calibration not saved")
		t.black, t.white = nil, nil
		return
	}

	t.sh.NeedCal.Put(false)
	t.state = Recheck
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case CheckCalibration:
		if t.load() {
			log.Info().Str("task", TaskName).Str("file", t.path).Msg("calibrated")
			t.state = Reading
		} else {
			log.Info().Str("task", TaskName).Msg("not calibrated")
			t.sh.NeedCal.Put(true)
			t.state = Calibrating
		}

	case Calibrating:
		t.capture()

	case Reading:
		t.sh.Centroid.Put(t.cal.Centroid(t.sensor.Raw()))

	case Recheck:
		if t.load() {
			t.state = Reading
		}

	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	return int(ran)
}
