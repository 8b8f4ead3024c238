// Copyright 2018 Brian Starkey <stark3y@gmail.com>

// Package config holds everything about the robot which can be changed
// without a rebuild. A TOML file only needs to mention what differs from
// Default().
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/usedbytes/romi/base/motor"
	"github.com/usedbytes/romi/model"
	"github.com/usedbytes/romi/plan/bump"
	"github.com/usedbytes/romi/plan/collector"
	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/imu"
	"github.com/usedbytes/romi/plan/linesense"
	"github.com/usedbytes/romi/plan/pathing"
	"github.com/usedbytes/romi/plan/ui"
	"github.com/usedbytes/romi/plan/wheel"
)

// Task names which aren't a package's TaskName.
const (
	PlatformTask = "platform"
	WheelLeft    = "wheel_l"
	WheelRight   = "wheel_r"
)

// Duration is a time.Duration written as a string, like "15ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Wrapf(err, "duration '%s'", text)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func ms(n int) Duration {
	return Duration{time.Duration(n) * time.Millisecond}
}

type Task struct {
	Priority int      `toml:"priority"`
	Period   Duration `toml:"period"`
}

type Hardware struct {
	// Unix socket of the datalink bridge to the motor board
	Socket string `toml:"socket"`
	I2CBus string `toml:"i2c_bus"`

	LowBattery string `toml:"low_battery"`
	BumpLeft   string `toml:"bump_left"`
	BumpRight  string `toml:"bump_right"`

	MMPerStep    float64 `toml:"mm_per_step"`
	Smoothing    int     `toml:"smoothing"`
	SettleCycles int     `toml:"settle_cycles"`
}

type Config struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`

	Calibration string `toml:"calibration"`

	// Longest a single step may take
	Budget    Duration `toml:"budget"`
	QueueSize int      `toml:"queue_size"`

	Tasks    map[string]Task `toml:"tasks"`
	Hardware Hardware        `toml:"hardware"`
	Control  control.Params  `toml:"control"`
	Course   pathing.Course  `toml:"course"`
	Limits   ui.Limits       `toml:"limits"`
}

func defaultTasks() map[string]Task {
	return map[string]Task{
		PlatformTask:       {8, ms(10)},
		WheelLeft:          {7, ms(13)},
		WheelRight:         {7, ms(13)},
		control.TaskName:   {6, ms(15)},
		imu.TaskName:       {6, ms(20)},
		linesense.TaskName: {5, ms(22)},
		model.TaskName:     {4, ms(20)},
		pathing.TaskName:   {3, ms(30)},
		bump.TaskName:      {2, ms(50)},
		collector.TaskName: {2, ms(18)},
		ui.TaskName:        {1, ms(1)},
	}
}

func Default() *Config {
	return &Config{
		Port:        "/dev/rfcomm0",
		Baud:        115200,
		Calibration: "calibration.csv",
		Budget:      ms(5),
		QueueSize:   50,
		Tasks:       defaultTasks(),
		Hardware: Hardware{
			Socket:       "/tmp/sock",
			I2CBus:       "",
			LowBattery:   "GPIO27",
			BumpLeft:     "GPIO5",
			BumpRight:    "GPIO6",
			MMPerStep:    motor.DefaultMMPerStep,
			Smoothing:    4,
			SettleCycles: wheel.DefaultSettleCycles,
		},
		Control: control.DefaultParams(),
		Course:  pathing.DefaultCourse(),
		Limits:  ui.DefaultLimits(),
	}
}

// Load reads path over the defaults. Tasks in the file only need the
// fields they change. Legs replace the whole default course.
func Load(path string) (*Config, error) {
	cfg := Default()
	legs := cfg.Course.Legs
	cfg.Course.Legs = nil

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	if cfg.Course.Legs == nil {
		cfg.Course.Legs = legs
	}

	defaults := defaultTasks()
	for name, t := range cfg.Tasks {
		d, ok := defaults[name]
		if !ok {
			return nil, errors.Errorf("config %s: unknown task '%s'", path, name)
		}
		if t.Priority == 0 {
			t.Priority = d.Priority
		}
		if t.Period.Duration == 0 {
			t.Period = d.Period
		}
		cfg.Tasks[name] = t
	}

	if err := cfg.Course.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return cfg, nil
}

// Task returns the settings for the named task.
func (c *Config) Task(name string) (int, time.Duration) {
	t, ok := c.Tasks[name]
	if !ok {
		t = defaultTasks()[name]
	}
	return t.Priority, t.Period.Duration
}
