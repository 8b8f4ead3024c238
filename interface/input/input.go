// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package input collects button presses from any gamepads which turn up.
package input

import (
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/gvalkov/golang-evdev"
	"github.com/rs/zerolog/log"
	"github.com/usedbytes/input2"
	"github.com/usedbytes/input2/button"
	"github.com/usedbytes/input2/factory"
	"github.com/usedbytes/linux-led"
)

type Button int

const (
	Cross Button = iota
	Square
	Triangle
	Circle
	PS
	Share
	Options
	L1
	R1
	Up
	Down
	Left
	Right
)

type State int

const (
	None State = iota
	Pressed
	Held
)

const HoldTime = 1500 * time.Millisecond

type ButtonState map[Button]State

type Collector struct {
	lock    sync.Mutex
	buttons ButtonState
	stop    chan bool
}

func (c *Collector) handleEvents(ch <-chan input2.InputEvent) {
	for ev := range ch {
		e, ok := ev.(button.Event)
		if !ok {
			continue
		}

		c.lock.Lock()
		if e.Value == button.Pressed {
			c.buttons[Button(e.Keycode)] = Pressed
		} else if e.Value == button.Held {
			c.buttons[Button(e.Keycode)] = Held
		}
		c.lock.Unlock()
	}
}

// Buttons returns everything that happened since the last call.
func (c *Collector) Buttons() ButtonState {
	c.lock.Lock()
	defer c.lock.Unlock()

	ret := c.buttons
	c.buttons = make(ButtonState)

	return ret
}

// Inject records a button event as if it came from a gamepad.
func (c *Collector) Inject(b Button, s State) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.buttons[b] = s
}

func (c *Collector) Close() {
	close(c.stop)
}

type buttonMap struct {
	scancode uint16
	button   Button
}

var btnMap = []buttonMap{
	{evdev.BTN_MODE, PS},
	{evdev.BTN_NORTH, Triangle},
	{evdev.BTN_EAST, Circle},
	{evdev.BTN_SOUTH, Cross},
	{evdev.BTN_WEST, Square},
	{evdev.BTN_SELECT, Share},
	{evdev.BTN_START, Options},
	{evdev.BTN_TL, L1},
	{evdev.BTN_TR, R1},
	{evdev.BTN_DPAD_UP, Up},
	{evdev.BTN_DPAD_DOWN, Down},
	{evdev.BTN_DPAD_LEFT, Left},
	{evdev.BTN_DPAD_RIGHT, Right},
}

func newCollector() *Collector {
	return &Collector{
		buttons: make(ButtonState),
		stop:    make(chan bool),
	}
}

// NewCollector starts watching for gamepads in the background. If a
// gamepad has a light, it's handed to onLED.
func NewCollector(onLED func(led.RGBLED)) *Collector {
	c := newCollector()

	go func() {
		sources := factory.Monitor()
		for s := range sources {
			log.Info().Str("source", fmt.Sprint(s)).Msg("gamepad")
			conn := s.NewConnection()

			if rgbled, ok := s.(led.RGBLED); ok {
				if onLED != nil {
					onLED(rgbled)
				} else {
					rgbled.SetColor(color.NRGBA{0x00, 0xff, 0x00, 0xff})
					rgbled.SetTrigger(led.TriggerHeartbeat)
				}
			}

			for _, b := range btnMap {
				button.MapButton(conn,
					&button.Button{
						Match:    input2.EventMatch{evdev.EV_KEY, b.scancode},
						HoldTime: HoldTime,
						Keycode:  int(b.button),
					})
			}

			sub := conn.Subscribe(c.stop)
			go c.handleEvents(sub)
		}
	}()

	return c
}
