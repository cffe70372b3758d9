package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfeed/internal/derive"
	"skyfeed/internal/record"
	"skyfeed/internal/stats"
	"skyfeed/internal/types"
)

// --- Test Doubles ---

// fakeClock is a settable clock shared by the test and the worker.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureSink records delivered bodies and signals each delivery.
type captureSink struct {
	mu        sync.Mutex
	bodies    []string
	delivered chan string
	err       error
}

func newCaptureSink() *captureSink {
	return &captureSink{delivered: make(chan string, 16)}
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Deliver(ctx context.Context, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.bodies = append(s.bodies, body)
	s.delivered <- body
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

// panicMetrics panics on the first RecordPublish call, then behaves.
type panicMetrics struct {
	mu       sync.Mutex
	panicked bool
	calls    int
}

func (m *panicMetrics) RecordDropped(context.Context, int64) {}
func (m *panicMetrics) RecordSinkFailure(context.Context, string) {}
func (m *panicMetrics) RecordRollover(context.Context) {}
func (m *panicMetrics) RecordPublish(ctx context.Context, d time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if !m.panicked {
		m.panicked = true
		panic("simulated metrics failure")
	}
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngineConfig(clock types.Clock, sinks ...Sink) Config {
	start := clock.Now()
	buffer := stats.NewBuffer(stats.DefaultTable(time.Hour, 20*time.Minute, 5*time.Minute), 0, time.UTC, start)
	formatter := record.NewFormatter(record.Config{StationName: "test", Location: time.UTC})
	return Config{
		Buffer:      buffer,
		Cache:       NewPacketCache(10 * time.Minute),
		Calc:        derive.Calculator{},
		Formatter:   formatter,
		Sinks:       sinks,
		MinInterval: 10 * time.Second,
		SinkTimeout: time.Second,
		QueueSize:   16,
		Clock:       clock,
		Logger:      testLogger(),
	}
}

func tempPacket(ts time.Time, temp float64) types.Packet {
	pkt := types.Packet{Time: ts.Unix(), Units: types.UnitsCanonical}
	pkt.Set(types.FieldOutTemp, temp)
	return pkt
}

func waitDelivery(t *testing.T, sink *captureSink) string {
	t.Helper()
	select {
	case body := <-sink.delivered:
		return body
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		return ""
	}
}

func closeEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))
}

// --- Tests ---

func TestEnginePublishesSubmittedPacket(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	sink := newCaptureSink()
	e, err := NewEngine(testEngineConfig(clock, sink))
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	e.Submit(tempPacket(clock.Now(), 21.5))

	body := waitDelivery(t, sink)
	tokens := strings.Split(body, " ")
	require.Len(t, tokens, record.FieldCount)
	assert.Equal(t, "21.5", tokens[4])

	latest := e.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, body, latest.Body)
	assert.NotEmpty(t, latest.Tick)
}

func TestEngineThrottlesWithinMinInterval(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	sink := newCaptureSink()
	e, err := NewEngine(testEngineConfig(clock, sink))
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	e.Submit(tempPacket(clock.Now(), 20.0))
	waitDelivery(t, sink)

	// Within the interval: absorbed, not published.
	e.Submit(tempPacket(clock.Now().Add(time.Second), 25.0))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, sink.count())

	// Past the interval the next packet publishes, and the record carries
	// the day maximum from the throttled packet: nothing was lost.
	clock.Advance(11 * time.Second)
	e.Submit(tempPacket(clock.Now(), 22.0))
	body := waitDelivery(t, sink)
	tokens := strings.Split(body, " ")
	assert.Equal(t, "25.0", tokens[46], "day max temperature includes the throttled sample")
	assert.Equal(t, int64(2), e.Stats().Published)
}

func TestEngineDropsNewestOnFullQueue(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	cfg := testEngineConfig(clock)
	cfg.QueueSize = 2
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	// Worker deliberately not started: the queue fills.

	for i := 0; i < 5; i++ {
		e.Submit(tempPacket(clock.Now(), float64(i)))
	}

	s := e.Stats()
	assert.Equal(t, int64(5), s.Received)
	assert.Equal(t, int64(3), s.Dropped)

	e.Start()
	closeEngine(t, e)
}

func TestEngineSurvivesIterationPanic(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	sink := newCaptureSink()
	cfg := testEngineConfig(clock, sink)
	metrics := &panicMetrics{}
	cfg.Metrics = metrics
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	// First iteration panics inside the publish path after delivery.
	e.Submit(tempPacket(clock.Now(), 20.0))
	waitDelivery(t, sink)

	// The worker must still be alive and publishing.
	clock.Advance(11 * time.Second)
	e.Submit(tempPacket(clock.Now(), 21.0))
	waitDelivery(t, sink)
	assert.Equal(t, 2, sink.count())
}

func TestEngineSeedsAppearInRecord(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	sink := newCaptureSink()
	e, err := NewEngine(testEngineConfig(clock, sink))
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	month := 40.0
	e.UpdateSeeds(types.Seeds{
		DaySums:     map[string]float64{types.FieldRain: 2.0},
		MonthRainMM: &month,
	})
	e.Submit(tempPacket(clock.Now(), 20.0))

	tokens := strings.Split(waitDelivery(t, sink), " ")
	assert.Equal(t, "2.0", tokens[7], "seeded day rain")
	assert.Equal(t, "42.0", tokens[8], "month rain is seed plus day sum")
}

func TestEngineAllSinksFailingRetriesNextPacket(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	sink := newCaptureSink()
	sink.err = fmt.Errorf("endpoint down")
	e, err := NewEngine(testEngineConfig(clock, sink))
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	e.Submit(tempPacket(clock.Now(), 20.0))
	require.Eventually(t, func() bool { return e.Latest() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), e.Stats().Published)

	// A failed tick does not arm the throttle: the very next packet
	// publishes again without waiting out the interval.
	sink.mu.Lock()
	sink.err = nil
	sink.mu.Unlock()
	e.Submit(tempPacket(clock.Now().Add(time.Second), 21.0))
	waitDelivery(t, sink)
	assert.Equal(t, int64(1), e.Stats().Published)
}

func TestEngineCloseStopsWorker(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))
	e, err := NewEngine(testEngineConfig(clock))
	require.NoError(t, err)
	e.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))
	// Close is idempotent.
	require.NoError(t, e.Close(ctx))
}

func TestEngineTickRollsDayWithoutPackets(t *testing.T) {
	start := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	clock := newFakeClock(start)
	sink := newCaptureSink()
	e, err := NewEngine(testEngineConfig(clock, sink))
	require.NoError(t, err)
	e.Start()
	defer closeEngine(t, e)

	pkt := types.Packet{Time: start.Unix(), Units: types.UnitsCanonical}
	pkt.Set(types.FieldRain, 3.0)
	e.Submit(pkt)
	tokens := strings.Split(waitDelivery(t, sink), " ")
	assert.Equal(t, "3.0", tokens[7])

	// Cross midnight with no packets; the tick resets day totals, and the
	// next packet's record reports zero day rain.
	clock.Advance(2 * time.Minute)
	e.Tick(clock.Now())
	clock.Advance(10 * time.Second)
	e.Submit(tempPacket(clock.Now(), 10.0))

	tokens = strings.Split(waitDelivery(t, sink), " ")
	assert.Equal(t, "0.0", tokens[7])
}
