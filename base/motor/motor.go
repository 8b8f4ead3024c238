// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package motor

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/pkg/errors"
	"github.com/usedbytes/bot_matrix/datalink"

	"github.com/usedbytes/romi/base/dev"
)

const (
	EffortEndpoint = 0x01
	EnableEndpoint = 0x02
	StepEndpoint   = 0x12

	// 1437.1 counts per wheel revolution, 35 mm wheel radius
	DefaultMMPerStep = 2 * math.Pi * 35 / 1437.1
)

type StepReport struct {
	Id    uint32
	Steps int32
}

func rxStepReport(p *datalink.Packet) interface{} {
	if p.Endpoint != StepEndpoint {
		return nil
	}

	rep := &StepReport{}
	buf := bytes.NewBuffer(p.Data)
	if err := binary.Read(buf, binary.LittleEndian, &rep.Id); err != nil {
		return errors.Wrap(err, "step report")
	}
	if err := binary.Read(buf, binary.LittleEndian, &rep.Steps); err != nil {
		return errors.Wrap(err, "step report")
	}

	return rep
}

// Wheel is one motor and its encoder. The encoder counts are pushed to us
// by the microcontroller and accumulated until the next Update.
type Wheel struct {
	m    *Motors
	id   uint8
	sign float64

	pending int32
	count   int64
	offset  float64

	ma   *movingaverage.MovingAverage
	vel  float64
	last time.Time
}

type Motors struct {
	dev       *dev.Dev
	mmPerStep float64
	now       func() time.Time

	Left, Right *Wheel
}

func (m *Motors) newWheel(id uint8, sign float64, smoothing int) *Wheel {
	return &Wheel{
		m:    m,
		id:   id,
		sign: sign,
		ma:   movingaverage.New(smoothing),
	}
}

// NewMotors sets up both wheels. The left motor is mounted the other way
// round, so its effort and counts are negated. Velocity is averaged over
// the last smoothing updates.
func NewMotors(d *dev.Dev, mmPerStep float64, smoothing int) *Motors {
	if smoothing < 1 {
		smoothing = 1
	}

	m := &Motors{
		dev:       d,
		mmPerStep: mmPerStep,
		now:       time.Now,
	}
	m.Left = m.newWheel(0, -1, smoothing)
	m.Right = m.newWheel(1, 1, smoothing)

	d.Add(StepEndpoint, m.Receive)

	return m
}

func (m *Motors) Receive(pkt *datalink.Packet) interface{} {
	ret := rxStepReport(pkt)
	if rep, ok := ret.(*StepReport); ok {
		m.AddSteps(rep)
	}
	return ret
}

func (m *Motors) AddSteps(rep *StepReport) {
	switch rep.Id {
	case 0:
		m.Left.pending += rep.Steps
	case 1:
		m.Right.pending += rep.Steps
	}
}

func (w *Wheel) send(ep uint8, val int8) {
	p := datalink.Packet{Endpoint: ep}

	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, w.id)
	binary.Write(buf, binary.LittleEndian, val)
	p.Data = buf.Bytes()

	w.m.dev.Queue(&p)
}

func (w *Wheel) Enable() {
	w.send(EnableEndpoint, 1)
}

func (w *Wheel) Disable() {
	w.send(EnableEndpoint, 0)
}

// SetEffort sets the duty cycle, [-100, 100].
func (w *Wheel) SetEffort(effort float64) {
	effort = math.Max(-100, math.Min(100, effort*w.sign))
	w.send(EffortEndpoint, int8(math.Round(effort)))
}

// Update takes in the counts received since the last call.
func (w *Wheel) Update() {
	now := w.m.now()
	steps := w.pending
	w.pending = 0
	w.count += int64(steps)

	if !w.last.IsZero() {
		if dt := now.Sub(w.last).Seconds(); dt > 0 {
			w.ma.Add(w.sign * float64(steps) * w.m.mmPerStep / dt)
			w.vel = w.ma.Avg()
		}
	}
	w.last = now
}

// Position is the distance the wheel has travelled since the last Zero,
// plus the offset, mm.
func (w *Wheel) Position() float64 {
	return w.sign*float64(w.count)*w.m.mmPerStep + w.offset
}

// Velocity in mm/s.
func (w *Wheel) Velocity() float64 {
	return w.vel
}

func (w *Wheel) Zero() {
	w.count = 0
	w.pending = 0
}

func (w *Wheel) SetOffset(mm float64) {
	w.offset = mm
}
