// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package plan runs the robot's tasks.
//
// A task is a state machine with a priority and a period. Each time it is
// due, the scheduler calls Step once, which runs the current state and
// returns. Steps must not block or loop waiting for something: waiting is
// done by staying in the same state and checking again next time.
package plan

import (
	"fmt"
	"time"
)

// StateMachine is the body of a task. Step runs one state and returns the
// code of the state it ran, for diagnostics.
type StateMachine interface {
	Step() int
}

type Task struct {
	Name     string
	Priority int
	Period   time.Duration

	sm StateMachine

	next  time.Time
	state int

	Runs     uint64
	Late     uint64
	Overruns uint64
	Total    time.Duration
	Max      time.Duration
}

func NewTask(name string, sm StateMachine, priority int, period time.Duration) *Task {
	if period <= 0 {
		panic(fmt.Sprintf("plan: task %s needs a positive period, got %v", name, period))
	}

	return &Task{
		Name:     name,
		Priority: priority,
		Period:   period,
		sm:       sm,
	}
}

// State is the code returned by the last Step.
func (t *Task) State() int {
	return t.state
}

func (t *Task) due(now time.Time) bool {
	return !now.Before(t.next)
}

// step runs the state machine once and books the time it took.
func (t *Task) step(clock Clock) time.Duration {
	start := clock.Now()
	t.state = t.sm.Step()
	took := clock.Now().Sub(start)

	t.Runs++
	t.Total += took
	if took > t.Max {
		t.Max = took
	}

	return took
}

// reschedule moves the due time on by a period. A task that has fallen a
// whole period behind is put back in step with now instead of running
// back-to-back to catch up.
func (t *Task) reschedule(now time.Time) {
	if t.next.IsZero() {
		t.next = now
	}

	t.next = t.next.Add(t.Period)
	if !t.next.After(now) {
		t.Late++
		t.next = now.Add(t.Period)
	}
}

func (t *Task) Average() time.Duration {
	if t.Runs == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Runs)
}

func (t *Task) String() string {
	return fmt.Sprintf("%-20s %4d %8v %8d %10v %10v %6d %6d",
		t.Name, t.Priority, t.Period, t.Runs, t.Average(), t.Max, t.Late, t.Overruns)
}

// StateError is what a state machine panics with when it finds itself in a
// state it doesn't have. That can only be a programming error.
type StateError struct {
	Task  string
	State int
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: no such state %d", e.Task, e.State)
}

// Unreachable panics with a StateError.
func Unreachable(task string, state int) {
	panic(&StateError{Task: task, State: state})
}
