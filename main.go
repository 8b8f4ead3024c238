// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/usedbytes/romi/base"
	"github.com/usedbytes/romi/config"
	"github.com/usedbytes/romi/interface/console"
	"github.com/usedbytes/romi/interface/input"
	"github.com/usedbytes/romi/interface/menu"
	"github.com/usedbytes/romi/model"
	"github.com/usedbytes/romi/plan"
	"github.com/usedbytes/romi/plan/bump"
	"github.com/usedbytes/romi/plan/collector"
	"github.com/usedbytes/romi/plan/control"
	"github.com/usedbytes/romi/plan/imu"
	"github.com/usedbytes/romi/plan/linesense"
	"github.com/usedbytes/romi/plan/pathing"
	"github.com/usedbytes/romi/plan/ui"
	"github.com/usedbytes/romi/plan/wheel"
	"github.com/usedbytes/romi/share"
)

// Commands are shared by whoever is driving: the operator or the course.
var drivers = []string{ui.TaskName, pathing.TaskName}

// The wheels are driven by control, or directly by the ui for open loop
// tests.
var wheelDrivers = []string{control.TaskName, ui.TaskName}

type cells struct {
	intent    *share.Cell[control.State]
	fwd       *share.Cell[float64]
	arc       *share.Cell[float64]
	piv       *share.Cell[float64]
	automatic *share.Cell[bool]
	start     *share.Cell[bool]
	openLoop  *share.Cell[bool]
	testing   *share.Cell[collector.Mode]

	needCal  *share.Cell[bool]
	centroid *share.Cell[float64]
	goal     *share.Cell[float64]
	black    *share.Cell[bool]
	white    *share.Cell[bool]

	yaw     *share.Cell[float64]
	yawRate *share.Cell[float64]
	yawGoal *share.Cell[float64]

	pwmL, pwmR         *share.Cell[float64]
	cmdL, cmdR         *share.Cell[wheel.State]
	posL, posR         *share.Cell[float64]
	velL, velR         *share.Cell[float64]
	settledL, settledR *share.Cell[bool]

	dist      *share.Cell[float64]
	bumpOn    *share.Cell[bool]
	bumped    *share.Cell[bool]
	velocity  *share.Queue[float64]
	velocity2 *share.Queue[float64]
	position  *share.Queue[float64]
}

func newCells(queueSize int) *cells {
	return &cells{
		intent:    share.NewCell("c_state", control.None, drivers...),
		fwd:       share.NewCell("fwd_ref", 0.0, drivers...),
		arc:       share.NewCell("arc_ref", 0.0, drivers...),
		piv:       share.NewCell("piv_ref", 0.0, drivers...),
		automatic: share.NewCell("automatic", false, drivers...),
		start:     share.NewCell("start", false),
		openLoop:  share.NewCell("open_loop", false),
		testing:   share.NewCell("testing", collector.Off),

		needCal:  share.NewCell("need_cal", false),
		centroid: share.NewCell("centroid", 0.0),
		goal:     share.NewCell("centroid_goal", 0.0),
		black:    share.NewCell("ready_black", false),
		white:    share.NewCell("ready_white", false),

		yaw:     share.NewCell("yaw", 0.0),
		yawRate: share.NewCell("yaw_rate", 0.0),
		yawGoal: share.NewCell("yaw_goal", 0.0),

		pwmL:     share.NewCell("pwm_l", 0.0, wheelDrivers...),
		pwmR:     share.NewCell("pwm_r", 0.0, wheelDrivers...),
		cmdL:     share.NewCell("cmd_l", wheel.None, wheelDrivers...),
		cmdR:     share.NewCell("cmd_r", wheel.None, wheelDrivers...),
		posL:     share.NewCell("pos_l", 0.0),
		posR:     share.NewCell("pos_r", 0.0),
		velL:     share.NewCell("vel_l", 0.0),
		velR:     share.NewCell("vel_r", 0.0),
		settledL: share.NewCell("settled_l", false),
		settledR: share.NewCell("settled_r", false),

		dist:      share.NewCell("total_dist", 0.0),
		bumpOn:    share.NewCell("bump_on", false),
		bumped:    share.NewCell("bumped", false),
		velocity:  share.NewQueue[float64]("velocity", queueSize),
		velocity2: share.NewQueue[float64]("velocity2", queueSize),
		position:  share.NewQueue[float64]("position", queueSize),
	}
}

func openConsole(port string, baud int) (*console.Console, error) {
	if port == "-" {
		rw := struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}
		return console.New(rw, console.DefaultDepth), nil
	}

	p, err := console.OpenSerial(port, baud)
	if err != nil {
		return nil, err
	}

	return console.New(p, console.DefaultDepth), nil
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	return nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	path := c.String("config")
	_, statErr := os.Stat(path)
	if statErr == nil || c.IsSet("config") {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		log.Info().Str("path", path).Msg("loaded config")
	}

	if c.IsSet("port") {
		cfg.Port = c.String("port")
	}

	return cfg, nil
}

func addTask(s *plan.Scheduler, cfg *config.Config, name string, sm plan.StateMachine) {
	priority, period := cfg.Task(name)
	if err := s.AddTask(plan.NewTask(name, sm, priority, period)); err != nil {
		panic(err)
	}
}

func run(c *cli.Context) error {
	if err := setupLogging(c.String("log-level")); err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log.Info().Msg("ROMI")

	platform, err := base.NewPlatform(cfg.Hardware)
	if err != nil {
		return err
	}
	defer platform.Close()

	con, err := openConsole(cfg.Port, cfg.Baud)
	if err != nil {
		return err
	}

	gamepads := input.NewCollector(platform.AddLed)
	defer gamepads.Close()

	m := menu.NewMenu(platform, gamepads)
	m.AddItem(menu.North, color.NRGBA{0x00, 0xff, 0x00, 0xff}, "g")
	m.AddItem(menu.East, color.NRGBA{0x00, 0x00, 0xff, 0xff}, "c")
	m.AddItem(menu.South, color.NRGBA{0xff, 0x00, 0x00, 0xff}, "0")
	m.AddItem(menu.West, color.NRGBA{0xff, 0xff, 0x00, 0xff}, "i")

	sh := newCells(cfg.QueueSize)

	var opts []plan.Option
	opts = append(opts, plan.WithBudget(cfg.Budget.Duration))
	if c.Bool("strict") {
		opts = append(opts, plan.Strict())
	}
	sched := plan.NewScheduler(plan.SystemClock, opts...)

	addTask(sched, cfg, config.PlatformTask, platform)

	left := wheel.NewTask(config.WheelLeft, platform.Motors.Left, platform.Motors.Left, wheel.Shares{
		Command:  sh.cmdL.Reader(),
		Ack:      sh.cmdL.Clearer(),
		Effort:   sh.pwmL.Reader(),
		Position: sh.posL.Claim(config.WheelLeft),
		Velocity: sh.velL.Claim(config.WheelLeft),
		Settled:  sh.settledL.Claim(config.WheelLeft),
	})
	left.SetSettleCycles(cfg.Hardware.SettleCycles)
	addTask(sched, cfg, config.WheelLeft, left)

	right := wheel.NewTask(config.WheelRight, platform.Motors.Right, platform.Motors.Right, wheel.Shares{
		Command:  sh.cmdR.Reader(),
		Ack:      sh.cmdR.Clearer(),
		Effort:   sh.pwmR.Reader(),
		Position: sh.posR.Claim(config.WheelRight),
		Velocity: sh.velR.Claim(config.WheelRight),
		Settled:  sh.settledR.Claim(config.WheelRight),
	})
	right.SetSettleCycles(cfg.Hardware.SettleCycles)
	addTask(sched, cfg, config.WheelRight, right)

	_, ctlPeriod := cfg.Task(control.TaskName)
	addTask(sched, cfg, control.TaskName, control.NewTask(cfg.Control, ctlPeriod,
		platform.Motors.Left, platform.Motors.Right, control.Shares{
			Intent:       sh.intent.Reader(),
			IntentAck:    sh.intent.Clearer(),
			Forward:      sh.fwd.Reader(),
			ForwardAck:   sh.fwd.Clearer(),
			Arc:          sh.arc.Reader(),
			ArcAck:       sh.arc.Clearer(),
			Pivot:        sh.piv.Reader(),
			PivotAck:     sh.piv.Clearer(),
			Automatic:    sh.automatic.Reader(),
			NeedCal:      sh.needCal.Reader(),
			OpenLoop:     sh.openLoop.Reader(),
			CentroidGoal: sh.goal.Reader(),
			Centroid:     sh.centroid.Reader(),
			Yaw:          sh.yaw.Reader(),
			YawGoal:      sh.yawGoal.Reader(),
			YawGoalAck:   sh.yawGoal.Clearer(),
			VelocityL:    sh.velL.Reader(),
			VelocityR:    sh.velR.Reader(),
			EffortL:      sh.pwmL.Claim(control.TaskName),
			EffortR:      sh.pwmR.Claim(control.TaskName),
			CommandL:     sh.cmdL.Claim(control.TaskName),
			CommandR:     sh.cmdR.Claim(control.TaskName),
		}))

	addTask(sched, cfg, linesense.TaskName, linesense.NewTask(platform.Line, cfg.Calibration, linesense.Shares{
		ReadyBlack:    sh.black.Reader(),
		ReadyBlackAck: sh.black.Clearer(),
		ReadyWhite:    sh.white.Reader(),
		ReadyWhiteAck: sh.white.Clearer(),
		NeedCal:       sh.needCal.Claim(linesense.TaskName),
		Centroid:      sh.centroid.Claim(linesense.TaskName),
	}))

	if platform.IMU != nil {
		addTask(sched, cfg, imu.TaskName, imu.NewTask(platform.IMU, imu.Shares{
			Yaw:     sh.yaw.Claim(imu.TaskName),
			YawRate: sh.yawRate.Claim(imu.TaskName),
		}))
	}

	observer := model.NewModel(model.Shares{
		PositionL: sh.posL.Reader(),
		PositionR: sh.posR.Reader(),
		Yaw:       sh.yaw.Reader(),
		Distance:  sh.dist.Claim(model.TaskName),
	})
	addTask(sched, cfg, model.TaskName, observer)

	addTask(sched, cfg, pathing.TaskName, pathing.NewTask(cfg.Course, pathing.Shares{
		Start:        sh.start.Reader(),
		Yaw:          sh.yaw.Reader(),
		Distance:     sh.dist.Reader(),
		Bumped:       sh.bumped.Reader(),
		Intent:       sh.intent.Claim(pathing.TaskName),
		Forward:      sh.fwd.Claim(pathing.TaskName),
		Pivot:        sh.piv.Claim(pathing.TaskName),
		Automatic:    sh.automatic.Claim(pathing.TaskName),
		CentroidGoal: sh.goal.Claim(pathing.TaskName),
		YawGoal:      sh.yawGoal.Claim(pathing.TaskName),
		BumpEnable:   sh.bumpOn.Claim(pathing.TaskName),
	}))

	var switches []bump.Switch
	for _, s := range platform.Switches() {
		switches = append(switches, s)
	}
	addTask(sched, cfg, bump.TaskName, bump.NewTask(bump.Shares{
		Enable: sh.bumpOn.Reader(),
		Bumped: sh.bumped.Claim(bump.TaskName),
	}, switches...))

	addTask(sched, cfg, collector.TaskName, collector.NewTask(collector.Shares{
		Mode:      sh.testing.Reader(),
		VelocityL: sh.velL.Reader(),
		VelocityR: sh.velR.Reader(),
		PositionL: sh.posL.Reader(),
		PositionR: sh.posR.Reader(),
		Velocity:  sh.velocity,
		Velocity2: sh.velocity2,
		Position:  sh.position,
	}))

	addTask(sched, cfg, ui.TaskName, ui.NewTask(ui.Shares{
		Intent:      sh.intent.Claim(ui.TaskName),
		Forward:     sh.fwd.Claim(ui.TaskName),
		Arc:         sh.arc.Claim(ui.TaskName),
		Pivot:       sh.piv.Claim(ui.TaskName),
		Automatic:   sh.automatic.Claim(ui.TaskName),
		Start:       sh.start.Claim(ui.TaskName),
		OpenLoop:    sh.openLoop.Claim(ui.TaskName),
		Mode:        sh.testing.Claim(ui.TaskName),
		EffortL:     sh.pwmL.Claim(ui.TaskName),
		EffortR:     sh.pwmR.Claim(ui.TaskName),
		CommandL:    sh.cmdL.Claim(ui.TaskName),
		CommandR:    sh.cmdR.Claim(ui.TaskName),
		SettledL:    sh.settledL.Reader(),
		SettledR:    sh.settledR.Reader(),
		SettledAckL: sh.settledL.Clearer(),
		SettledAckR: sh.settledR.Clearer(),
		NeedCal:     sh.needCal.Reader(),
		ReadyBlack:  sh.black.Claim(ui.TaskName),
		ReadyWhite:  sh.white.Claim(ui.TaskName),
		Yaw:         sh.yaw.Reader(),
		YawRate:     sh.yawRate.Reader(),
		Velocity:    sh.velocity,
		Velocity2:   sh.velocity2,
	}, cfg.Limits, con, con, m))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = sched.Run(ctx)

	platform.Motors.Left.Disable()
	platform.Motors.Right.Disable()
	platform.Update()

	fmt.Fprint(os.Stderr, sched.String())

	var taskErr *plan.TaskError
	if errors.As(err, &taskErr) {
		log.Fatal().Err(err).Str("task", taskErr.Task).Msg("task failed")
	}
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("stopped")
		return nil
	}

	return err
}

func main() {
	app := cli.NewApp()
	app.Name = "romi"
	app.Usage = "drive the ROMI round the course"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Value: "romi.toml",
			Usage: "TOML config file",
		},
		cli.StringFlag{
			Name:  "port",
			Usage: "serial port for the console, - for stdin",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "trace, debug, info, warn or error",
		},
		cli.BoolFlag{
			Name:  "strict",
			Usage: "stop if a task step overruns its budget",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("romi")
	}
}
