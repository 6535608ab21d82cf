// Package monitor logs bus traffic and emits a periodic heartbeat. The
// heartbeat interval follows the retained config/monitor section.
package monitor

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"psoc6-go/bus"
	"psoc6-go/config"
)

var topicConfigMonitor = bus.T("config", "monitor")

type Service struct {
	Log   *slog.Logger
	Clock clockwork.Clock
	// Topics are subscription patterns such as "adc/#"; empty means all.
	Topics []string
	// Heartbeat is the initial interval; zero disables until configured.
	Heartbeat time.Duration
}

// ParseTopic splits a slash-separated pattern into a Topic.
func ParseTopic(s string) bus.Topic {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	t := make(bus.Topic, len(parts))
	for i, p := range parts {
		t[i] = p
	}
	return t
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	log := s.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := s.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	cfgSub := conn.Subscribe(topicConfigMonitor)
	defer conn.Unsubscribe(cfgSub)

	topics := s.Topics
	if len(topics) == 0 {
		topics = []string{bus.MultiWild}
	}
	merged := make(chan *bus.Message, 16)
	for _, p := range topics {
		sub := conn.Subscribe(ParseTopic(p))
		defer conn.Unsubscribe(sub)
		go forward(ctx, sub, merged)
	}

	interval := s.Heartbeat
	var tick clockwork.Ticker
	var tickC <-chan time.Time
	reset := func(d time.Duration) {
		if tick != nil {
			tick.Stop()
			tick, tickC = nil, nil
		}
		if d > 0 {
			tick = clk.NewTicker(d)
			tickC = tick.Chan()
		}
	}
	reset(interval)
	defer func() { reset(0) }()

	var seen uint64
	for {
		select {
		case <-ctx.Done():
			log.Info("monitor stopping", "messages", seen)
			return
		case t := <-tickC:
			log.Info("heartbeat", "time", t.Format("15:04:05"), "messages", seen)
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(config.Monitor); ok && m.Heartbeat != interval {
				interval = m.Heartbeat
				reset(interval)
				log.Debug("heartbeat interval set", "interval", interval)
			}
		case msg := <-merged:
			if len(msg.Topic) > 0 && msg.Topic[0] == "config" {
				continue
			}
			seen++
			log.Info("bus", "topic", msg.Topic.String(), "payload", msg.Payload)
		}
	}
}

func forward(ctx context.Context, sub *bus.Subscription, out chan<- *bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Start runs the monitor until ctx ends.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.serviceLoop(ctx, conn)
}
