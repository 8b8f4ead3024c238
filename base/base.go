// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package base is the robot's hardware: the motor board on the datalink,
// the IMU on I2C, and the switches and status LED.
package base

import (
	"image/color"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/usedbytes/bot_matrix/datalink"
	"github.com/usedbytes/bot_matrix/datalink/netconn"
	"github.com/usedbytes/linux-led"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"

	"github.com/usedbytes/romi/base/bump"
	"github.com/usedbytes/romi/base/dev"
	"github.com/usedbytes/romi/base/imu"
	"github.com/usedbytes/romi/base/line"
	"github.com/usedbytes/romi/base/motor"
	"github.com/usedbytes/romi/config"
)

var (
	okColor  = color.NRGBA{0x00, 0xff, 0x00, 0x80}
	lowColor = color.NRGBA{0xff, 0x00, 0x00, 0x80}
)

type Platform struct {
	dev  *dev.Dev
	conn net.Conn

	Motors  *motor.Motors
	Line    *line.Sensor
	IMU     *imu.IMU
	Bumpers []*bump.Switch

	lowBat gpio.PinIO
	low    bool

	i2cBus i2c.BusCloser

	ledLock    sync.Mutex
	led        led.RGBLED
	ledColor   color.Color
	ledTrigger led.Trigger

	Errors uint64
}

// AddLed sets the LED used for status. It's safe to call from any
// goroutine, gamepads turn up whenever they like.
func (p *Platform) AddLed(rgb led.RGBLED) {
	p.ledLock.Lock()
	defer p.ledLock.Unlock()

	p.led = rgb
	p.led.SetTrigger(p.ledTrigger)
	p.updateLed()
}

func (p *Platform) SetLEDTrigger(trig led.Trigger) {
	p.ledLock.Lock()
	defer p.ledLock.Unlock()

	p.ledTrigger = trig
	if p.led != nil {
		p.led.SetTrigger(p.ledTrigger)
	}
	p.updateLed()
}

func (p *Platform) SetLEDColor(c color.Color) {
	p.ledLock.Lock()
	defer p.ledLock.Unlock()

	p.ledColor = c
	p.updateLed()
}

// ResetLEDColor goes back to the idle heartbeat, in red if the battery
// is low.
func (p *Platform) ResetLEDColor() {
	p.SetLEDTrigger(led.TriggerHeartbeat)

	if p.low {
		p.SetLEDColor(lowColor)
	} else {
		p.SetLEDColor(okColor)
	}
}

func (p *Platform) updateLed() {
	if p.led == nil {
		return
	}

	p.led.SetColor(p.ledColor)
}

func (p *Platform) LowBattery() bool {
	return p.low
}

// Switches returns the bumpers in the order they were configured.
func (p *Platform) Switches() []*bump.Switch {
	return p.Bumpers
}

func newPlatform(t datalink.Transactor, lowBat gpio.PinIO, hw config.Hardware) *Platform {
	d := dev.NewDev(t)

	p := &Platform{
		dev:        d,
		lowBat:     lowBat,
		ledColor:   okColor,
		ledTrigger: led.TriggerHeartbeat,
	}

	p.Motors = motor.NewMotors(d, hw.MMPerStep, hw.Smoothing)

	p.Line = line.NewSensor()
	d.Add(line.Endpoint, p.Line.Receive)

	return p
}

func NewPlatform(hw config.Hardware) (*Platform, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host")
	}

	b, err := i2creg.Open(hw.I2CBus)
	if err != nil {
		return nil, errors.Wrapf(err, "I2C bus '%s'", hw.I2CBus)
	}

	g := gpioreg.ByName(hw.LowBattery)
	if g == nil {
		b.Close()
		return nil, errors.Errorf("no low battery GPIO '%s'", hw.LowBattery)
	}
	if err = g.In(gpio.PullDown, gpio.NoEdge); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "low battery GPIO")
	}

	c, err := net.Dial("unix", hw.Socket)
	if err != nil {
		b.Close()
		return nil, errors.Wrap(err, "datalink")
	}

	p := newPlatform(netconn.NewNetconn(c), g, hw)
	p.conn = c
	p.i2cBus = b

	for _, name := range []string{hw.BumpLeft, hw.BumpRight} {
		sw, err := bump.NewSwitch(name)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Bumpers = append(p.Bumpers, sw)
	}

	// Carry on without it, the course just can't turn accurately
	p.IMU, err = imu.NewI2C(b)
	if err != nil {
		log.Error().Err(err).Msg("no IMU")
	}

	return p, nil
}

func (p *Platform) Close() error {
	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	if p.i2cBus != nil {
		if e := p.i2cBus.Close(); err == nil {
			err = e
		}
	}
	return err
}

// Update exchanges packets with the motor board and checks the battery.
func (p *Platform) Update() error {
	pkts, err := p.dev.Poll()
	if err != nil {
		return err
	}

	for _, pkt := range pkts {
		if e, ok := pkt.(error); ok {
			p.Errors++
			log.Warn().Err(e).Msg("datalink")
		}
	}

	if low := p.lowBat.Read() == gpio.High; low != p.low {
		p.low = low
		if low {
			log.Warn().Msg("battery low")
			p.SetLEDColor(lowColor)
		}
	}

	return nil
}

// Step makes the platform a task, so the datalink is serviced on the
// scheduler's goroutine like everything else.
func (p *Platform) Step() int {
	if err := p.Update(); err != nil {
		p.Errors++
		log.Warn().Err(err).Msg("platform update")
		return 1
	}

	return 0
}
