package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/stepq/internal/log"
	loglogrus "github.com/slok/stepq/internal/log/logrus"
	"github.com/slok/stepq/internal/model"
	"github.com/slok/stepq/internal/scheduler"
	"github.com/slok/stepq/internal/task"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"

	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// cmdConfig holds the demo command configuration.
type cmdConfig struct {
	Debug      bool
	NoColor    bool
	LoggerType string

	Workers int
	Tasks   int
	Steps   int
	Period  time.Duration
}

// Run runs the main application.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := cmdConfig{}

	app := kingpin.New("stepq", "Cooperative tick-driven task scheduler demo.")
	app.DefaultEnvars()
	app.Flag("debug", "Enable debug mode.").BoolVar(&cfg.Debug)
	app.Flag("no-color", "Disable logger color.").BoolVar(&cfg.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&cfg.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("workers", "Number of simulated workers (one scheduler context each).").Default("3").IntVar(&cfg.Workers)
	app.Flag("tasks", "Step tasks submitted per worker.").Default("2").IntVar(&cfg.Tasks)
	app.Flag("steps", "Steps per task.").Default("5").IntVar(&cfg.Steps)
	app.Flag("period", "Tick period.").Default("20ms").DurationVar(&cfg.Period)

	if _, err := app.Parse(args[1:]); err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	logger := getLogger(cfg, stderr)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Demo workload.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				if err := runDemo(ctx, logger, cfg); err != nil {
					return fmt.Errorf("demo failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// runDemo submits simulated workloads across several contexts and lets the
// automatic pump interleave them until everything is done.
func runDemo(ctx context.Context, logger log.Logger, cfg cmdConfig) error {
	sched, err := scheduler.New(scheduler.Config{Period: cfg.Period, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create scheduler: %w", err)
	}

	for w := 0; w < cfg.Workers; w++ {
		c := model.NewContext(fmt.Sprintf("worker-%d", w))
		wlogger := logger.WithValues(log.Kv{"context": c.String()})

		for t := 0; t < cfg.Tasks; t++ {
			steps := make([]task.Step, 0, cfg.Steps)
			for st := 0; st < cfg.Steps; st++ {
				name := fmt.Sprintf("task-%d/step-%d", t, st)
				steps = append(steps, task.Step{Name: name, Fn: func(context.Context) error {
					wlogger.Infof("Ran %s", name)
					return nil
				}})
			}

			seq, err := task.NewStepSequence(task.StepSequenceConfig{
				Name:   fmt.Sprintf("task-%d", t),
				Steps:  steps,
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("could not create step task: %w", err)
			}
			sched.AddTask(seq, c)
		}

		// One async group per worker to show out-of-band completion tracking.
		group, err := task.NewAsyncGroup(task.AsyncGroupConfig{
			Name: "io",
			Mode: task.ModeSequential,
			Operations: []task.Operation{
				{Name: "fetch", Fn: sleepOp(5 * cfg.Period)},
				{Name: "store", Fn: sleepOp(3 * cfg.Period)},
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("could not create async task: %w", err)
		}
		sched.AddTask(group, c)
	}

	// The pump started ticking on the first AddTask, wait for it to drain.
	ticker := time.NewTicker(cfg.Period)
	defer ticker.Stop()
	for sched.HasOutstanding() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Infof("All work completed")
	return nil
}

// sleepOp fakes an asynchronous IO operation.
func sleepOp(d time.Duration) task.OperationFunc {
	return func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
}

// getLogger returns the application logger.
func getLogger(cfg cmdConfig, stderr io.Writer) log.Logger {
	logrusLog := logrus.New()
	logrusLog.Out = stderr // By default logger goes to stderr (so it can split stdout prints).
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if cfg.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	// Log format.
	switch cfg.LoggerType {
	case LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !cfg.NoColor,
			DisableColors: cfg.NoColor,
		})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled") // Will log only when debug enabled.

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
