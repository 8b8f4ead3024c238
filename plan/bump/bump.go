// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package bump

import (
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/share"
)

const TaskName = "bump"

type State int

const (
	Off State = iota
	On
)

type Switch interface {
	IsPressed() bool
}

type Shares struct {
	Enable share.Reader[bool]
	// Latched true by any switch while enabled, reset when re-armed
	Bumped share.Writer[bool]
}

type Task struct {
	switches []Switch
	sh       Shares
	state    State
}

func NewTask(sh Shares, switches ...Switch) *Task {
	return &Task{
		switches: switches,
		sh:       sh,
	}
}

func (t *Task) pressed() bool {
	for _, s := range t.switches {
		if s.IsPressed() {
			return true
		}
	}
	return false
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case Off:
		if t.sh.Enable.Get() {
			t.sh.Bumped.Put(false)
			t.state = On
		}

	case On:
		if !t.sh.Enable.Get() {
			t.state = Off
			break
		}
		if !t.sh.Bumped.Get() && t.pressed() {
			log.Info().Str("task", TaskName).Msg("bumped")
			t.sh.Bumped.Put(true)
		}

	default:
		plan.Unreachable(TaskName, int(t.state))
	}

	return int(ran)
}
