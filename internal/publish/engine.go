// Package publish implements the decoupled publishing pipeline: a bounded
// ingestion queue fed by Submit, a single background worker that drains the
// queue into the aggregation buffer, and a throttled publish step that
// renders a record and delivers it to the configured sinks.
//
// The worker runs a small state machine: Idle (blocked on the queue) ->
// Draining (apply queued packets in arrival order) -> Throttled or
// Publishing -> Idle, with Stopped entered only on shutdown. The aggregation
// buffer is owned exclusively by the worker goroutine; synchronization is
// confined to the queue hand-off.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"skyfeed/internal/derive"
	"skyfeed/internal/record"
	"skyfeed/internal/stats"
	"skyfeed/internal/types"
	"skyfeed/internal/units"
)

// dropLogInterval bounds how often queue-overflow drops are logged; the
// drop counter itself is exact.
const dropLogInterval = time.Minute

// failLogInterval bounds how often a persistently failing sink is logged
// at error level.
const failLogInterval = time.Minute

// Sink is an output destination for a published record. Deliver is called
// once per publish tick with a bounded context; implementations do not
// retry within a tick.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, body string) error
}

// Metrics receives pipeline telemetry. Implementations must be safe to call
// from the worker goroutine and from Submit callers.
type Metrics interface {
	RecordDropped(ctx context.Context, n int64)
	RecordPublish(ctx context.Context, d time.Duration, success bool)
	RecordSinkFailure(ctx context.Context, sink string)
	RecordRollover(ctx context.Context)
}

// noopMetrics is the default when telemetry is disabled.
type noopMetrics struct{}

func (noopMetrics) RecordDropped(context.Context, int64)              {}
func (noopMetrics) RecordPublish(context.Context, time.Duration, bool) {}
func (noopMetrics) RecordSinkFailure(context.Context, string)         {}
func (noopMetrics) RecordRollover(context.Context)                    {}

// itemKind discriminates queue items. Packets dominate; seeds and ticks are
// occasional control traffic sharing the same ordered hand-off.
type itemKind int

const (
	itemPacket itemKind = iota
	itemSeeds
	itemTick
)

type item struct {
	kind  itemKind
	pkt   types.Packet
	seeds *types.Seeds
	now   time.Time
}

// Published is the outcome of one publish tick, retained for the status API.
type Published struct {
	Body string
	Time time.Time
	Tick string
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Received    int64
	Dropped     int64
	Published   int64
	LastPublish time.Time
}

// Config wires an Engine.
type Config struct {
	Buffer    *stats.Buffer
	Cache     *PacketCache
	Calc      derive.Calculator
	Formatter *record.Formatter
	Sinks     []Sink

	// MinInterval is the minimum time between publish ticks. Zero publishes
	// on every drain.
	MinInterval time.Duration
	// SinkTimeout bounds each sink delivery. Zero means 10s.
	SinkTimeout time.Duration
	// QueueSize bounds the ingestion queue. Zero means 64.
	QueueSize int

	Metrics Metrics
	Clock   types.Clock
	Logger  *slog.Logger

	// LogSuccess and LogFailure control per-tick delivery logging.
	LogSuccess bool
	LogFailure bool
}

// Engine owns the ingestion queue, the aggregation buffer and the publish
// step. Construct with NewEngine, start with Start, stop with Close.
type Engine struct {
	cfg     Config
	queue   chan item
	metrics Metrics
	clock   types.Clock
	logger  *slog.Logger

	// Worker-owned state; touched only from the worker goroutine.
	buffer      *stats.Buffer
	cache       *PacketCache
	calc        derive.Calculator
	formatter   *record.Formatter
	seeds       types.Seeds
	seeded      bool
	lastPublish time.Time
	lastFailLog map[string]time.Time

	// Cross-goroutine counters and the latest record.
	received        atomic.Int64
	dropped         atomic.Int64
	published       atomic.Int64
	lastPublishUnix atomic.Int64
	lastDropLog     atomic.Int64
	latest          atomic.Pointer[Published]

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewEngine validates and wires an engine. It does not start the worker.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Buffer == nil {
		return nil, fmt.Errorf("engine: buffer is nil")
	}
	if cfg.Formatter == nil {
		return nil, fmt.Errorf("engine: formatter is nil")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewPacketCache(10 * time.Minute)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 10 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = types.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		cfg:         cfg,
		queue:       make(chan item, cfg.QueueSize),
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		buffer:      cfg.Buffer,
		cache:       cfg.Cache,
		calc:        cfg.Calc,
		formatter:   cfg.Formatter,
		lastFailLog: make(map[string]time.Time),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Submit enqueues a packet. It never blocks: on a full queue the newest
// packet (this one) is dropped, counted, and logged at a bounded rate.
// Safe to call from any goroutine at arbitrary frequency.
func (e *Engine) Submit(pkt types.Packet) {
	e.received.Add(1)
	select {
	case e.queue <- item{kind: itemPacket, pkt: pkt.Clone()}:
	default:
		e.noteDrop()
	}
}

// Tick forces a day-boundary check even when no packets are arriving. It
// never blocks; a full queue means packets are flowing, which performs the
// same check anyway.
func (e *Engine) Tick(now time.Time) {
	select {
	case e.queue <- item{kind: itemTick, now: now}:
	default:
	}
}

// UpdateSeeds hands refreshed history aggregates to the worker. The first
// update also primes the buffer's day accumulators; later updates refresh
// only the longer-horizon values (month/year rain, hour gust) so loop
// accumulation is never clobbered.
func (e *Engine) UpdateSeeds(seeds types.Seeds) {
	select {
	case e.queue <- item{kind: itemSeeds, seeds: &seeds}:
	default:
	}
}

// Close stops the worker: intake of queued items ceases, any in-progress
// apply finishes, no final publish is attempted. It returns when the worker
// has exited or ctx expires.
func (e *Engine) Close(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stop) })
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: shutdown timed out: %w", ctx.Err())
	}
}

// Latest returns the most recently produced record, or nil before the first
// publish tick.
func (e *Engine) Latest() *Published {
	return e.latest.Load()
}

// Stats returns current engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Received:  e.received.Load(),
		Dropped:   e.dropped.Load(),
		Published: e.published.Load(),
	}
	if ts := e.lastPublishUnix.Load(); ts > 0 {
		s.LastPublish = time.Unix(ts, 0).UTC()
	}
	return s
}

// run is the worker loop. Each iteration is wrapped in a recover boundary:
// an unexpected panic is logged with its stack and the loop continues, so a
// single poisoned packet cannot silently kill publishing. Exit happens only
// via the stop channel, and is logged distinctly from a crash.
func (e *Engine) run() {
	defer close(e.done)
	e.logger.Info("publish worker started",
		"queue_size", cap(e.queue),
		"min_interval", e.cfg.MinInterval.String(),
	)
	for {
		select {
		case <-e.stop:
			e.logger.Info("publish worker stopped")
			return
		case it := <-e.queue:
			e.iterate(it)
		}
	}
}

// iterate processes one queue item plus whatever else has queued behind it,
// then runs the throttled publish gate.
func (e *Engine) iterate(it item) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("publish worker iteration panicked; continuing",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	sawPacket := e.apply(it)

	// Draining: absorb everything already queued, in arrival order, before
	// considering a publish. Bounded by queue capacity.
drain:
	for i := 0; i < cap(e.queue); i++ {
		select {
		case next := <-e.queue:
			if e.apply(next) {
				sawPacket = true
			}
		default:
			break drain
		}
	}

	if !sawPacket {
		return
	}

	now := e.clock.Now()
	if e.cfg.MinInterval > 0 && !e.lastPublish.IsZero() && now.Sub(e.lastPublish) < e.cfg.MinInterval {
		// Throttled: the buffer has absorbed the packets; output cadence
		// is capped, no data is lost.
		return
	}
	e.publishOnce(now)
}

// apply folds one item into worker state and reports whether it carried a
// packet (publishing is packet-driven; seeds and ticks alone do not emit).
func (e *Engine) apply(it item) bool {
	switch it.kind {
	case itemSeeds:
		if !e.seeded {
			e.buffer.SeedDaySums(it.seeds.DaySums, it.seeds.WindRunMeters, e.clock.Now())
			e.seeded = true
		}
		e.seeds = *it.seeds
		return false
	case itemTick:
		now := it.now
		if now.IsZero() {
			now = e.clock.Now()
		}
		if e.buffer.CheckRollover(now) {
			e.noteRollover(now)
		}
		return false
	default:
		pkt := units.ToCanonical(it.pkt)
		e.cache.Update(pkt)
		if e.buffer.Apply(pkt) {
			e.noteRollover(pkt.Timestamp())
		}
		return true
	}
}

// publishOnce renders one record from a buffer snapshot and delivers it to
// every sink concurrently and independently. Sink failures are logged and
// counted, never propagated: the worker and the buffer are unaffected.
func (e *Engine) publishOnce(now time.Time) {
	tick := uuid.New().String()
	started := e.clock.Now()

	cached := e.cache.Packet(now.Unix())
	snap := e.buffer.Snapshot(now)
	derived := e.calc.Compute(cached, now)
	body := e.formatter.Format(snap, derived, cached, e.seeds)

	e.latest.Store(&Published{Body: body, Time: now, Tick: tick})

	// Deliver to all sinks concurrently; a stalled sink cannot delay the
	// others beyond its own timeout, and errgroup here only joins -- each
	// sink's error is handled where it occurs.
	var delivered atomic.Int64
	g := new(errgroup.Group)
	for _, s := range e.cfg.Sinks {
		s := s
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SinkTimeout)
			defer cancel()
			if err := s.Deliver(ctx, body); err != nil {
				e.noteSinkFailure(s.Name(), tick, err)
				return nil
			}
			delivered.Add(1)
			if e.cfg.LogSuccess {
				e.logger.Info("record delivered", "sink", s.Name(), "tick", tick)
			}
			return nil
		})
	}
	g.Wait()

	success := len(e.cfg.Sinks) == 0 || delivered.Load() > 0
	elapsed := e.clock.Now().Sub(started)
	e.metrics.RecordPublish(context.Background(), elapsed, success)

	if success {
		// The throttle clock runs from the last successful publish; a tick
		// where every sink failed is retried as soon as the next packet
		// arrives rather than waiting out the interval.
		e.lastPublish = now
		e.lastPublishUnix.Store(now.Unix())
		e.published.Add(1)
	}
}

// noteDrop counts a queue-overflow drop and logs it at a bounded rate.
func (e *Engine) noteDrop() {
	n := e.dropped.Add(1)
	e.metrics.RecordDropped(context.Background(), 1)
	now := e.clock.Now().Unix()
	last := e.lastDropLog.Load()
	if now-last >= int64(dropLogInterval/time.Second) && e.lastDropLog.CompareAndSwap(last, now) {
		e.logger.Warn("ingestion queue full; dropping newest packet",
			"dropped_total", n,
			"queue_size", cap(e.queue),
		)
	}
}

// noteRollover logs and counts a day-boundary reset.
func (e *Engine) noteRollover(now time.Time) {
	e.metrics.RecordRollover(context.Background())
	e.logger.Info("day boundary crossed; day statistics reset", "at", now)
}

// noteSinkFailure counts a sink failure and logs it, at error level at most
// once per failLogInterval per sink and at debug otherwise, so a dead
// endpoint cannot flood the log.
func (e *Engine) noteSinkFailure(sink, tick string, err error) {
	e.metrics.RecordSinkFailure(context.Background(), sink)
	if !e.cfg.LogFailure {
		return
	}
	now := e.clock.Now()
	if last, ok := e.lastFailLog[sink]; !ok || now.Sub(last) >= failLogInterval {
		e.lastFailLog[sink] = now
		e.logger.Error("record delivery failed", "sink", sink, "tick", tick, "error", err)
		return
	}
	e.logger.Debug("record delivery failed", "sink", sink, "tick", tick, "error", err)
}
