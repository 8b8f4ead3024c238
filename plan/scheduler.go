// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Longest the scheduler sleeps in one go when nothing is due, so that
// cancellation is noticed promptly.
const maxIdle = 5 * time.Millisecond

type Scheduler struct {
	clock  Clock
	tasks  []*Task
	names  map[string]*Task
	budget time.Duration
	strict bool
}

type Option func(*Scheduler)

// WithBudget sets how long a single Step may take before it counts as an
// overrun. Zero disables the check.
func WithBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		s.budget = d
	}
}

// Strict makes an overrun fatal instead of just counting it.
func Strict() Option {
	return func(s *Scheduler) {
		s.strict = true
	}
}

func NewScheduler(clock Clock, opts ...Option) *Scheduler {
	if clock == nil {
		clock = SystemClock
	}

	s := &Scheduler{
		clock: clock,
		names: make(map[string]*Task),
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

func (s *Scheduler) AddTask(t *Task) error {
	if _, ok := s.names[t.Name]; ok {
		return errors.Errorf("duplicate task name '%s'", t.Name)
	}

	s.names[t.Name] = t
	s.tasks = append(s.tasks, t)

	return nil
}

func (s *Scheduler) Task(name string) *Task {
	return s.names[name]
}

// TaskError is returned when a task's Step panics. It stops the scheduler.
type TaskError struct {
	Task  string
	Value interface{}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Value)
}

func (e *TaskError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

type OverrunError struct {
	Task   string
	Took   time.Duration
	Budget time.Duration
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("task %s step took %v, budget is %v", e.Task, e.Took, e.Budget)
}

// pick finds the task to run: the highest priority task that is due, and of
// those the one that has been waiting longest.
func (s *Scheduler) pick(now time.Time) *Task {
	var best *Task
	for _, t := range s.tasks {
		if !t.due(now) {
			continue
		}

		switch {
		case best == nil:
			best = t
		case t.Priority > best.Priority:
			best = t
		case t.Priority == best.Priority && t.next.Before(best.next):
			best = t
		}
	}

	return best
}

func (s *Scheduler) run(t *Task) (took time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskError{Task: t.Name, Value: r}
		}
	}()

	return t.step(s.clock), nil
}

// Tick runs at most one task: the most important one that is due. Anything
// else that is due waits for a later Tick.
func (s *Scheduler) Tick() (bool, error) {
	now := s.clock.Now()

	t := s.pick(now)
	if t == nil {
		return false, nil
	}

	t.reschedule(now)

	took, err := s.run(t)
	if err != nil {
		return true, err
	}

	if s.budget > 0 && took > s.budget {
		t.Overruns++
		log.Warn().Str("task", t.Name).Dur("took", took).Dur("budget", s.budget).Msg("step overran")
		if s.strict {
			return true, &OverrunError{Task: t.Name, Took: took, Budget: s.budget}
		}
	}

	return true, nil
}

// nextDue is how long until something needs to run.
func (s *Scheduler) nextDue(now time.Time) time.Duration {
	wait := maxIdle
	for _, t := range s.tasks {
		if d := t.next.Sub(now); d < wait {
			wait = d
		}
	}

	return wait
}

// Run ticks until ctx is cancelled or a task fails.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().Int("tasks", len(s.tasks)).Msg("scheduler starting")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ran, err := s.Tick()
		if err != nil {
			return errors.Wrap(err, "scheduler stopped")
		}

		if !ran {
			if wait := s.nextDue(s.clock.Now()); wait > 0 {
				s.clock.Sleep(wait)
			}
		}
	}
}

// String is the profile table, highest priority first.
func (s *Scheduler) String() string {
	tasks := append([]*Task(nil), s.tasks...)
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority > tasks[j].Priority
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %4s %8s %8s %10s %10s %6s %6s\n",
		"task", "pri", "period", "runs", "avg", "max", "late", "over")
	for _, t := range tasks {
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	return b.String()
}
