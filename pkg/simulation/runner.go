package simulation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const DefaultFrameRate = 60

var ErrRunnerStopped = errors.New("runner stopped")

type command struct {
	fn   func(*Engine) error
	done chan error
}

// Runner drives an Engine from a single goroutine: frames come from a ticker
// and control commands are executed between frames.
type Runner struct {
	logger   *zap.Logger
	engine   *Engine
	interval time.Duration
	commands chan command
	stopped  chan struct{}
}

func NewRunner(logger *zap.Logger, engine *Engine, frameRate int) *Runner {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Runner{
		logger:   logger,
		engine:   engine,
		interval: time.Second / time.Duration(frameRate),
		commands: make(chan command),
		stopped:  make(chan struct{}),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)
	defer r.engine.Close()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("runner started", zap.Duration("frame_interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			if r.engine.Loaded() {
				r.engine.Report().Print(r.logger)
			}
			return ctx.Err()
		case cmd := <-r.commands:
			cmd.done <- cmd.fn(r.engine)
		case now := <-ticker.C:
			r.engine.OnFrame(now)
		}
	}
}

// Do executes fn on the runner goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(*Engine) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.commands <- cmd:
	case <-r.stopped:
		return ErrRunnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
