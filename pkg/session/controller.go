// Package session hosts the timing engine behind a single goroutine. The
// engine itself is not goroutine safe; the controller funnels GPS fixes,
// lifecycle commands, operator input and timer callbacks through one command
// loop and publishes the results via broadcast servers.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/racelogger/laptimer-go/log"
	"github.com/racelogger/laptimer-go/pkg/model"
	"github.com/racelogger/laptimer-go/pkg/timing"
	"github.com/racelogger/laptimer-go/pkg/utils/broadcast"
)

const defaultTickInterval = 200 * time.Millisecond

type Controller struct {
	l    *log.Logger
	e    *timing.Engine
	cmds chan func()
	tick time.Duration

	snapSrc  chan model.Snapshot
	flashSrc chan model.LapFlash

	snapshots broadcast.BroadcastServer[model.Snapshot]
	flashes   broadcast.BroadcastServer[model.LapFlash]

	completedLaps atomic.Int64
}

type Option func(*Controller)

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.l = l
	}
}

// WithTickInterval sets the UI tick driving the pit clock and the periodic
// snapshot publication.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.tick = d
	}
}

func NewController(opts ...Option) *Controller {
	ret := &Controller{
		l:        log.Default().Named("session"),
		cmds:     make(chan func(), 64),
		tick:     defaultTickInterval,
		snapSrc:  make(chan model.Snapshot),
		flashSrc: make(chan model.LapFlash, 8),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.e = timing.NewEngine(
		timing.WithLogger(ret.l.Named("engine")),
		timing.WithScheduler(ret.schedule),
		timing.WithLapFlashFunc(ret.publishFlash),
	)
	ret.snapshots = broadcast.NewBroadcastServer("snapshots", ret.snapSrc)
	ret.flashes = broadcast.NewBroadcastServer("lapflash", ret.flashSrc)
	ret.setupMetrics()
	return ret
}

func (c *Controller) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("laptimer.session")
	if _, err := meter.Int64ObservableGauge(
		"laptimer.session.laps",
		metric.WithDescription("Number of completed laps"),
		metric.WithUnit("{count}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(c.completedLaps.Load())
			return nil
		})); err != nil {
		c.l.Error("failed to register metric", log.ErrorField(err))
	}
}

// Run executes the command loop until ctx is done. Must be running before
// fixes are fed in.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	c.l.Info("session controller started",
		log.Duration("tick", c.tick))
	for {
		select {
		case <-ctx.Done():
			c.snapshots.Close()
			c.flashes.Close()
			c.l.Info("session controller stopped")
			return
		case cmd := <-c.cmds:
			cmd()
		case <-ticker.C:
			c.e.PitTick()
			c.publishSnapshot()
		}
	}
}

func (c *Controller) SubscribeSnapshots() <-chan model.Snapshot {
	return c.snapshots.Subscribe()
}

func (c *Controller) CancelSnapshots(ch <-chan model.Snapshot) {
	c.snapshots.CancelSubscription(ch)
}

func (c *Controller) SubscribeLapFlashes() <-chan model.LapFlash {
	return c.flashes.Subscribe()
}

func (c *Controller) CancelLapFlashes(ch <-chan model.LapFlash) {
	c.flashes.CancelSubscription(ch)
}

// Arm configures a new session. Queued like every other command.
func (c *Controller) Arm(cfg timing.RaceConfig) {
	c.cmds <- func() { c.e.Arm(cfg) }
}

func (c *Controller) StartSession() {
	c.cmds <- func() { c.e.Start() }
}

func (c *Controller) StopSession() {
	c.cmds <- func() { c.e.Stop() }
}

func (c *Controller) ResetSession() {
	c.cmds <- func() { c.e.Reset() }
}

func (c *Controller) Ingest(fix model.Fix) {
	c.cmds <- func() { c.e.Ingest(fix) }
}

func (c *Controller) TogglePit() {
	c.cmds <- func() { c.e.TogglePit() }
}

func (c *Controller) SelectDriver(name string) {
	c.cmds <- func() { c.e.SelectDriver(name) }
}

// CurrentSnapshot returns the engine state synchronously.
func (c *Controller) CurrentSnapshot(ctx context.Context) (model.Snapshot, error) {
	reply := make(chan model.Snapshot, 1)
	select {
	case c.cmds <- func() { reply <- c.e.Snapshot() }:
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return model.Snapshot{}, ctx.Err()
	}
}

// schedule is the engine's deferred-action hook. The callback is posted back
// into the command loop; a callback that already fired when Cancel runs is
// neutralized by the engine's generation check.
func (c *Controller) schedule(d time.Duration, fn func()) timing.CancelFunc {
	t := time.AfterFunc(d, func() {
		select {
		case c.cmds <- fn:
		default:
			c.l.Warn("command queue full, dropping deferred action")
		}
	})
	return func() { t.Stop() }
}

// publishFlash runs inside the command loop (engine callback).
func (c *Controller) publishFlash(flash model.LapFlash) {
	c.completedLaps.Store(int64(flash.LapNo))
	select {
	case c.flashSrc <- flash:
	default:
		c.l.Warn("lap flash dropped", log.Int("lapNo", flash.LapNo))
	}
}

func (c *Controller) publishSnapshot() {
	snap := c.e.Snapshot()
	select {
	case c.snapSrc <- snap:
	default:
		// nobody ready; the next tick delivers a fresh snapshot anyway
	}
}
