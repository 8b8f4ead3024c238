// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package wheel runs one motor and its encoder.
//
// Other tasks drive the wheel by writing a State into its command cell.
// The wheel picks the command up on its next step, carries it out and
// clears the cell again.
package wheel

import (
	"github.com/rs/zerolog/log"

	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/share"
)

type State int

const (
	Init State = iota
	Wait
	SetEffort
	Disable
	EnableWait
	ZeroAndSettle
)

// None is the empty command.
const None = Init

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case Wait:
		return "Wait"
	case SetEffort:
		return "SetEffort"
	case Disable:
		return "Disable"
	case EnableWait:
		return "EnableWait"
	case ZeroAndSettle:
		return "ZeroAndSettle"
	}
	return "Unknown"
}

const DefaultSettleCycles = 100

type Motor interface {
	Enable()
	Disable()
	// SetEffort takes a duty cycle in [-100, 100]
	SetEffort(effort float64)
}

type Encoder interface {
	Update()
	Position() float64
	Velocity() float64
	Zero()
}

type Shares struct {
	Command share.Reader[State]
	Ack     share.Clearer
	Effort  share.Reader[float64]

	Position share.Writer[float64]
	Velocity share.Writer[float64]
	Settled  share.Writer[bool]
}

type Task struct {
	name    string
	motor   Motor
	encoder Encoder
	sh      Shares

	state  State
	settle int
	count  int
}

func NewTask(name string, m Motor, e Encoder, sh Shares) *Task {
	return &Task{
		name:    name,
		motor:   m,
		encoder: e,
		sh:      sh,
		settle:  DefaultSettleCycles,
	}
}

// SetSettleCycles sets how many steps ZeroAndSettle holds the wheel still.
func (t *Task) SetSettleCycles(n int) {
	t.settle = n
}

func (t *Task) State() State {
	return t.state
}

func (t *Task) measure() {
	t.encoder.Update()
	t.sh.Position.Put(t.encoder.Position())
	t.sh.Velocity.Put(t.encoder.Velocity())
}

func (t *Task) Step() int {
	ran := t.state

	switch t.state {
	case Init:
		t.motor.Enable()
		t.state = Wait

	case Wait:
		t.measure()
		if cmd := t.sh.Command.Get(); cmd != None {
			log.Debug().Str("task", t.name).Stringer("cmd", cmd).Msg("command")
			t.state = cmd
		}

	case SetEffort:
		t.measure()
		t.motor.SetEffort(t.sh.Effort.Get())
		t.sh.Ack.Clear()
		t.state = Wait

	case Disable:
		t.motor.Disable()
		t.sh.Ack.Clear()
		t.state = EnableWait

	case EnableWait:
		if t.sh.Command.Get() == EnableWait {
			t.motor.Enable()
		}
		t.sh.Ack.Clear()
		t.state = Wait

	case ZeroAndSettle:
		t.motor.SetEffort(0)
		t.encoder.Zero()
		t.count++
		if t.count >= t.settle {
			t.count = 0
			t.sh.Settled.Put(true)
			t.sh.Ack.Clear()
			t.state = Wait
		}

	default:
		plan.Unreachable(t.name, int(t.state))
	}

	return int(ran)
}
