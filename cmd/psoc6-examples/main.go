// Command psoc6-examples lists and runs the peripheral examples against a
// simulated board, a Linux host via periph.io, or host serial ports.
//
//	psoc6-examples [flags] list|boards|paths [name]|ports|run <example>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/mattn/go-colorable"

	"psoc6-go/boards"
	"psoc6-go/bus"
	"psoc6-go/catalog"
	"psoc6-go/config"
	"psoc6-go/errcode"
	"psoc6-go/examples"
	"psoc6-go/hal"
	"psoc6-go/internal/monitor"
	"psoc6-go/internal/periphhost"
	"psoc6-go/internal/serialport"
	"psoc6-go/internal/sim"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, colorable.NewColorableStderr())
	stop()
	os.Exit(code)
}

type options struct {
	config   string
	board    string
	backend  string
	logLevel string
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		fmt.Fprintln(w, "usage: psoc6-examples [flags] <command>")
		fmt.Fprintln(w, "\ncommands:")
		fmt.Fprintln(w, "  list           examples by level")
		fmt.Fprintln(w, "  boards         supported boards")
		fmt.Fprintln(w, "  paths [name]   learning paths")
		fmt.Fprintln(w, "  ports          host serial ports")
		fmt.Fprintln(w, "  run <example>  run one example until done or interrupted")
		fmt.Fprintln(w, "\nflags:")
		fs.PrintDefaults()
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("psoc6-examples", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "psoc6.yaml", "YAML config file; missing means defaults")
	fs.StringVar(&o.board, "board", "", "board name (overrides config)")
	fs.StringVar(&o.backend, "backend", "", "sim, periph or rp2 (overrides config)")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fs.Usage = usage(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}
	switch rest[0] {
	case "list":
		printCatalog(stdout)
	case "boards":
		if err := cfg.RegisterBoards(); err != nil {
			fmt.Fprintln(stderr, "boards:", err)
			return exitUsage
		}
		printBoards(stdout, cfg.Board)
	case "paths":
		return printPaths(stdout, stderr, rest[1:])
	case "ports":
		ports, err := serialport.List()
		if err != nil {
			fmt.Fprintln(stderr, "ports:", err)
			return exitFail
		}
		for _, p := range ports {
			fmt.Fprintln(stdout, p)
		}
	case "run":
		if len(rest) != 2 {
			fmt.Fprintln(stderr, "run needs exactly one example name")
			return exitUsage
		}
		return runExample(ctx, cfg, rest[1], log, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		fs.Usage()
		return exitUsage
	}
	return exitOK
}

func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.Load(o.config)
	if err != nil {
		return nil, err
	}
	if o.board != "" {
		cfg.Board = o.board
	}
	if o.backend != "" {
		cfg.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, cfg.Validate()
}

func printCatalog(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range catalog.Levels() {
		fmt.Fprintf(tw, "%s\t%s\n", strings.ToUpper(string(s.Level)), s.Description)
		for _, e := range s.Entries {
			mark := ""
			if !e.Runnable {
				mark = " (reference)"
			}
			fmt.Fprintf(tw, "  %s\t%s%s\t%s\n", e.Name, e.Title, mark, e.Stars())
		}
	}
	tw.Flush()
}

func printBoards(w io.Writer, selected string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, b := range boards.List() {
		mark := " "
		if b.Name == selected {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\n", mark, b.Name, b.Description)
	}
	tw.Flush()
}

func printPaths(stdout, stderr io.Writer, args []string) int {
	if len(args) == 0 {
		for _, n := range catalog.PathNames() {
			fmt.Fprintf(stdout, "%s\t%s\n", n, catalog.Title(n))
		}
		return exitOK
	}
	entries, err := catalog.Path(args[0])
	if err != nil {
		fmt.Fprintln(stderr, "paths:", err)
		return exitUsage
	}
	fmt.Fprintln(stdout, catalog.Title(args[0]))
	for i, e := range entries {
		fmt.Fprintf(stdout, "%2d. %s (%s)\n", i+1, e.Title, e.Name)
	}
	return exitOK
}

func runExample(ctx context.Context, cfg *config.Config, name string, log *slog.Logger, stderr io.Writer) int {
	if _, err := examples.Lookup(name); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	params := examples.DefaultParams()
	if err := params.Apply(cfg.Timings); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return exitUsage
	}
	board, err := cfg.SelectedBoard()
	if err != nil {
		fmt.Fprintln(stderr, "board:", err)
		return exitUsage
	}
	be, err := openBackend(cfg, board)
	if err != nil {
		log.Error("backend", "backend", cfg.Backend, "err", err)
		return exitFail
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := hal.New(be, hal.WithLogger(log.With("component", "hal")))
	m.Start(ctx)
	defer m.Close()

	b := bus.NewBus(16)
	cfg.Publish(b.NewConnection("config"))
	mon := &monitor.Service{
		Log:       log.With("component", "monitor"),
		Topics:    cfg.Monitor.Topics,
		Heartbeat: cfg.Monitor.Heartbeat,
	}
	mon.Start(ctx, b.NewConnection("monitor"))

	env := &examples.Env{
		M:       m,
		Board:   board,
		Log:     log,
		Conn:    b.NewConnection("examples"),
		Params:  params,
		DataDir: cfg.DataDir,
	}
	if err := examples.Run(ctx, name, env); err != nil {
		log.Error("example failed", "example", name, "code", errcode.Of(err), "err", err)
		return exitFail
	}
	return exitOK
}

// openBackend builds the configured backend and lays host serial ports
// over it when any are mapped.
func openBackend(cfg *config.Config, board boards.Board) (hal.Backend, error) {
	var be hal.Backend
	switch cfg.Backend {
	case config.BackendSim:
		be = sim.NewDemo(board)
	case config.BackendPeriph:
		pb, err := periphhost.Open(periphhost.Config{
			Pins: cfg.Periph.Pins,
			I2C:  cfg.Periph.I2C,
			SPI:  cfg.Periph.SPI,
		})
		if err != nil {
			return nil, err
		}
		be = pb
	default:
		return nil, errcode.New(errcode.Unsupported, "backend", cfg.Backend+" needs a TinyGo build (cmd/psoc6-pico)")
	}
	if len(cfg.Serial.Ports) > 0 {
		be = &serialport.Overlay{Backend: be, Ports: cfg.Serial.Ports}
	}
	return be, nil
}
