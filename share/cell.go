// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package share holds the values tasks exchange with each other.
//
// Nothing in here locks. Tasks are stepped one at a time by the scheduler,
// so a cell is never read while another task is half way through writing
// it. What the package does enforce is ownership: every cell has one
// producer, fixed when the tasks are wired together.
package share

import (
	"fmt"
)

type Reader[T any] interface {
	Get() T
	Name() string
}

type Writer[T any] interface {
	Reader[T]
	Put(v T)
}

// Clearer lets a consumer acknowledge a one-shot value by putting the cell
// back to its initial value. It can't write anything else.
type Clearer interface {
	Clear()
}

type Cell[T any] struct {
	name    string
	val     T
	initial T

	allowed []string
	owners  []string
}

// NewCell creates a cell holding init. With no writers listed, the first
// owner to Claim the cell becomes its only producer. Listing writers is for
// command cells which two authorities take turns to drive (the operator
// console and the course planner, for example); only those may Claim.
func NewCell[T any](name string, init T, writers ...string) *Cell[T] {
	return &Cell[T]{
		name:    name,
		val:     init,
		initial: init,
		allowed: writers,
	}
}

func (c *Cell[T]) Name() string {
	return c.name
}

func (c *Cell[T]) Get() T {
	return c.val
}

func (c *Cell[T]) put(v T) {
	c.val = v
}

func (c *Cell[T]) Clear() {
	c.val = c.initial
}

func (c *Cell[T]) Reader() Reader[T] {
	return reader[T]{c}
}

func (c *Cell[T]) Clearer() Clearer {
	return c
}

// Claim returns the Writer for owner. Claiming a cell that belongs to
// somebody else is a wiring bug, so it panics.
func (c *Cell[T]) Claim(owner string) Writer[T] {
	for _, o := range c.owners {
		if o == owner {
			return writer[T]{c}
		}
	}

	if len(c.allowed) == 0 {
		if len(c.owners) > 0 {
			panic(fmt.Sprintf("share: %s already written by %s, %s can't claim it", c.name, c.owners[0], owner))
		}
	} else if !contains(c.allowed, owner) {
		panic(fmt.Sprintf("share: %s may only be written by %v, not %s", c.name, c.allowed, owner))
	}

	c.owners = append(c.owners, owner)
	return writer[T]{c}
}

// Owners lists who has claimed the cell so far.
func (c *Cell[T]) Owners() []string {
	return append([]string(nil), c.owners...)
}

func (c *Cell[T]) String() string {
	return fmt.Sprintf("%s=%v", c.name, c.val)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type reader[T any] struct {
	c *Cell[T]
}

func (r reader[T]) Get() T {
	return r.c.Get()
}

func (r reader[T]) Name() string {
	return r.c.name
}

type writer[T any] struct {
	c *Cell[T]
}

func (w writer[T]) Get() T {
	return w.c.Get()
}

func (w writer[T]) Name() string {
	return w.c.name
}

func (w writer[T]) Put(v T) {
	w.c.put(v)
}
