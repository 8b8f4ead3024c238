// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package console reads operator commands from a serial port (or any
// other stream) without ever blocking the scheduler.
package console

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	DefaultBaud  = 115200
	DefaultDepth = 16
)

type Console struct {
	rw    io.ReadWriter
	lines chan string
	done  chan struct{}
	err   error
}

// OpenSerial opens port at 8N1.
func OpenSerial(port string, baud int) (serial.Port, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", port)
	}

	return p, nil
}

// New starts reading lines from rw. Lines which arrive while depth of them
// are already waiting hold up the reader, not the caller of Poll.
func New(rw io.ReadWriter, depth int) *Console {
	c := &Console{
		rw:    rw,
		lines: make(chan string, depth),
		done:  make(chan struct{}),
	}

	go c.read()

	return c
}

func (c *Console) read() {
	defer close(c.done)
	defer close(c.lines)

	scanner := bufio.NewScanner(c.rw)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}

	c.err = scanner.Err()
	if c.err != nil {
		log.Warn().Err(c.err).Msg("console read")
	}
}

// Poll returns the next line if there is one.
func (c *Console) Poll() (string, bool) {
	select {
	case line, ok := <-c.lines:
		return line, ok
	default:
		return "", false
	}
}

func (c *Console) Write(p []byte) (int, error) {
	return c.rw.Write(p)
}

// Done is closed when the input has ended. Err is only valid after that.
func (c *Console) Done() <-chan struct{} {
	return c.done
}

func (c *Console) Err() error {
	return c.err
}
