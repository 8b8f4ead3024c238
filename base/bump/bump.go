// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package bump

import (
	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// Switch is a normally-open bump switch to ground.
type Switch struct {
	pin gpio.PinIO
}

func NewSwitch(name string) (*Switch, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no GPIO '%s'", name)
	}

	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "bump switch %s", name)
	}

	return &Switch{pin: pin}, nil
}

func (s *Switch) IsPressed() bool {
	return s.pin.Read() == gpio.Low
}
