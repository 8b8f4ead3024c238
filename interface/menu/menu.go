// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package menu lets the operator send console commands from a gamepad.
//
// Holding a direction on the D-pad selects the command in that slot, and
// the LED changes to its colour. Cross sends the selection and Triangle
// drops it. Circle always sends a stop.
package menu

import (
	"image/color"

	"github.com/usedbytes/linux-led"

	"github.com/usedbytes/romi/interface/input"
)

type Direction int

const (
	None Direction = iota
	North
	East
	South
	West
)

const StopCommand = "0"

// LED is the status light the menu shows its selection on.
type LED interface {
	SetLEDColor(c color.Color)
	SetLEDTrigger(trig led.Trigger)
	ResetLEDColor()
}

type ButtonSource interface {
	Buttons() input.ButtonState
}

type Item struct {
	color   color.Color
	command string
}

type Menu struct {
	led     LED
	buttons ButtonSource
	items   map[Direction]Item

	dir Direction
}

func NewMenu(l LED, b ButtonSource) *Menu {
	return &Menu{
		led:     l,
		buttons: b,
		items:   make(map[Direction]Item),
	}
}

func (m *Menu) AddItem(dir Direction, c color.Color, command string) {
	m.items[dir] = Item{color: c, command: command}
}

// Poll makes the menu a command source for the ui task.
func (m *Menu) Poll() (string, bool) {
	return m.Tick(m.buttons.Buttons())
}

func held(buttons input.ButtonState, b input.Button) bool {
	return buttons[b] == input.Held
}

// Tick updates the selection from buttons, returning a command if one was
// picked.
func (m *Menu) Tick(buttons input.ButtonState) (string, bool) {
	if buttons[input.Circle] == input.Pressed {
		m.deselect()
		return StopCommand, true
	}

	dir := None
	if held(buttons, input.Up) {
		dir = North
	} else if held(buttons, input.Right) {
		dir = East
	} else if held(buttons, input.Down) {
		dir = South
	} else if held(buttons, input.Left) {
		dir = West
	}

	if dir == None {
		dir = m.dir
	}

	if dir == None {
		return "", false
	}

	item, ok := m.items[dir]
	if !ok {
		return "", false
	}

	if m.dir == None {
		m.led.SetLEDTrigger(led.TriggerNone)
	}

	if m.dir != dir {
		m.led.SetLEDColor(item.color)
		m.dir = dir
	}

	if buttons[input.Cross] == input.Pressed {
		m.deselect()
		return item.command, true
	}

	if buttons[input.Triangle] == input.Pressed {
		m.deselect()
	}

	return "", false
}

func (m *Menu) deselect() {
	if m.dir == None {
		return
	}

	m.dir = None
	m.led.ResetLEDColor()
}

func (m *Menu) Selected() Direction {
	return m.dir
}
