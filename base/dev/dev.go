// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package dev talks to the motor and sensor microcontroller over datalink.
//
// Outgoing packets are queued by the components and sent in one batch on
// each Poll. Whatever the microcontroller has for us comes back in the same
// transaction, and is handed to the component registered for its endpoint.
package dev

import (
	"github.com/pkg/errors"
	"github.com/usedbytes/bot_matrix/datalink"
)

type Component struct {
	d  *Dev
	ep uint8
}

// Receiver decodes a packet for its endpoint. Whatever it returns is passed
// back from Poll.
type Receiver func(*datalink.Packet) interface{}

type Dev struct {
	transactor datalink.Transactor
	cmps       map[uint8]Receiver
	toSend     []datalink.Packet
	minNum     int
	allocNum   int

	Sent, Received uint64
}

func (d *Dev) receive(p *datalink.Packet) interface{} {
	// Endpoint 0 is padding
	if p.Endpoint == 0 {
		return nil
	}

	r, ok := d.cmps[p.Endpoint]
	if !ok {
		return errors.Errorf("received unknown datalink packet (EP 0x%02x)", p.Endpoint)
	}

	return r(p)
}

func (d *Dev) Add(ep uint8, r Receiver) (Component, error) {
	if _, ok := d.cmps[ep]; ok {
		return Component{}, errors.Errorf("duplicate endpoint 0x%02x", ep)
	}

	d.cmps[ep] = r

	return Component{d, ep}, nil
}

func (d *Dev) remove(ep uint8) error {
	if _, ok := d.cmps[ep]; !ok {
		return errors.Errorf("no endpoint 0x%02x", ep)
	}

	delete(d.cmps, ep)

	return nil
}

func (c Component) Remove() error {
	return c.d.remove(c.ep)
}

func (d *Dev) Queue(p *datalink.Packet) {
	d.toSend = append(d.toSend, *p)
}

// Pending is the number of packets waiting for the next Poll.
func (d *Dev) Pending() int {
	return len(d.toSend)
}

// Poll sends everything queued and dispatches what comes back. The result
// has one entry per received packet: a decoded report, an error, or nil.
func (d *Dev) Poll() ([]interface{}, error) {
	toSend := d.toSend
	if len(toSend) > 0 {
		d.toSend = make([]datalink.Packet, 0, d.allocNum)

		if len(toSend) < d.minNum {
			toSend = append(toSend, make([]datalink.Packet, d.minNum-len(toSend))...)
		}
	}

	pkts, err := d.transactor.Transact(toSend)
	if err != nil {
		return nil, errors.Wrap(err, "datalink transaction")
	}
	d.Sent += uint64(len(toSend))
	d.Received += uint64(len(pkts))

	ret := make([]interface{}, 0, len(pkts))
	for i := range pkts {
		ret = append(ret, d.receive(&pkts[i]))
	}

	return ret, nil
}

func NewDev(transactor datalink.Transactor) *Dev {
	allocNum := 4
	return &Dev{
		transactor: transactor,
		cmps:       make(map[uint8]Receiver),
		toSend:     make([]datalink.Packet, 0, allocNum),
		allocNum:   allocNum,
	}
}
