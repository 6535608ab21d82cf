package monitor

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/bus"
	"psoc6-go/config"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *recorder) WithAttrs([]slog.Attr) slog.Handler       { return r }
func (r *recorder) WithGroup(string) slog.Handler            { return r }
func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := rec.Message
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "topic" {
			msg += " " + a.Value.String()
		}
		return true
	})
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m == msg {
			n++
		}
	}
	return n
}

func TestParseTopic(t *testing.T) {
	assert.Equal(t, bus.T("adc", "#"), ParseTopic("/adc/#"))
	assert.Equal(t, bus.T("#"), ParseTopic("#"))
}

func TestLogsTrafficAndHeartbeat(t *testing.T) {
	rec := &recorder{}
	clk := clockwork.NewFakeClock()
	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Service{Log: slog.New(rec), Clock: clk, Topics: []string{"adc/#"}, Heartbeat: time.Second}
	s.Start(ctx, b.NewConnection("monitor"))
	clk.BlockUntil(1)

	pub := b.NewConnection("test")
	pub.Publish(pub.NewMessage(bus.T("adc", "A0"), 123, false))
	pub.Publish(pub.NewMessage(bus.T("pwm", "P13_7"), 1, false))
	require.Eventually(t, func() bool { return rec.count("bus adc/A0") == 1 }, time.Second, time.Millisecond)
	assert.Zero(t, rec.count("bus pwm/P13_7"))

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return rec.count("heartbeat") == 1 }, time.Second, time.Millisecond)
}

func TestHeartbeatFollowsConfig(t *testing.T) {
	rec := &recorder{}
	clk := clockwork.NewFakeClock()
	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Service{Log: slog.New(rec), Clock: clk}
	s.Start(ctx, b.NewConnection("monitor"))

	cfg := config.Default()
	cfg.Monitor.Heartbeat = 5 * time.Second
	cfg.Publish(b.NewConnection("config"))
	clk.BlockUntil(1)

	clk.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return rec.count("heartbeat") == 1 }, time.Second, time.Millisecond)
	// Config sections are not echoed as traffic.
	assert.Zero(t, rec.count("bus config/board"))
}
