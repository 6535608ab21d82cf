//go:build rp2040

// Command psoc6-pico runs one example on a Raspberry Pi Pico wired like a
// PSoC6 prototyping kit. Pick the example at link time:
//
//	tinygo flash -target pico -ldflags "-X main.example=timers" ./cmd/psoc6-pico
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"psoc6-go/boards"
	"psoc6-go/bus"
	"psoc6-go/examples"
	"psoc6-go/hal"
	"psoc6-go/internal/monitor"
	"psoc6-go/internal/rp2"
)

var example = "blink"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log.Info("boot", "example", example)

	ctx := context.Background()
	m := hal.New(rp2.New(nil), hal.WithLogger(log))
	m.Start(ctx)

	b := bus.NewBus(4)
	mon := &monitor.Service{Log: log, Heartbeat: 10 * time.Second}
	mon.Start(ctx, b.NewConnection("monitor"))

	env := &examples.Env{
		M:      m,
		Board:  boards.Default(),
		Log:    log,
		Conn:   b.NewConnection("examples"),
		Params: examples.DefaultParams(),
	}
	for {
		if err := examples.Run(ctx, example, env); err != nil {
			log.Error("example failed", "err", err)
		}
		time.Sleep(5 * time.Second)
	}
}
