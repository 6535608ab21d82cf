// Package uartproto holds the small line protocols used over a UART: a
// command parser and dispatcher, reading formatters and checksummed frames.
package uartproto

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/shlex"

	"psoc6-go/errcode"
)

// EOL terminates every response.
const EOL = "\r\n"

// Command is one parsed input line. Name is upper-cased.
type Command struct {
	Name string
	Args []string
}

// Parse splits line with shell quoting rules. An empty line is an error.
func Parse(line string) (Command, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return Command{}, errcode.Wrap(errcode.InvalidParams, "uartproto.parse", err)
	}
	if len(words) == 0 {
		return Command{}, errcode.New(errcode.NoData, "uartproto.parse", "empty line")
	}
	return Command{Name: strings.ToUpper(words[0]), Args: words[1:]}, nil
}

// Handler answers one command. The dispatcher appends EOL.
type Handler func(Command) string

// Dispatcher routes commands by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Handle registers h for name, replacing any previous handler.
func (d *Dispatcher) Handle(name string, h Handler) {
	d.mu.Lock()
	d.handlers[strings.ToUpper(name)] = h
	d.mu.Unlock()
}

// Names lists registered commands in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dispatch parses line and returns the response. Blank lines yield "".
func (d *Dispatcher) Dispatch(line string) string {
	cmd, err := Parse(line)
	if errcode.Of(err) == errcode.NoData {
		return ""
	}
	if err != nil {
		return "Unknown command: " + strings.ToUpper(strings.TrimSpace(line)) + EOL
	}
	d.mu.RLock()
	h, ok := d.handlers[cmd.Name]
	d.mu.RUnlock()
	if !ok {
		return "Unknown command: " + cmd.Name + EOL
	}
	return h(cmd) + EOL
}

// Switch is the LED surface the default commands drive.
type Switch interface {
	On() error
	Off() error
}

// Register installs LED_ON, LED_OFF and STATUS. A nil led only reports.
func Register(d *Dispatcher, led Switch) {
	d.Handle("LED_ON", func(Command) string {
		if led != nil {
			if err := led.On(); err != nil {
				return "ERROR " + err.Error()
			}
		}
		return "LED turned ON"
	})
	d.Handle("LED_OFF", func(Command) string {
		if led != nil {
			if err := led.Off(); err != nil {
				return "ERROR " + err.Error()
			}
		}
		return "LED turned OFF"
	})
	d.Handle("STATUS", func(Command) string { return "System OK" })
}

// LineBuffer assembles bytes into lines terminated by '\n' or '\r'.
type LineBuffer struct {
	buf []byte
	max int
}

// NewLineBuffer caps a pending line at max bytes; longer input is cut
// into max-sized lines.
func NewLineBuffer(max int) *LineBuffer {
	if max <= 0 {
		max = 256
	}
	return &LineBuffer{max: max}
}

// Feed consumes p and returns every completed, non-empty line.
func (l *LineBuffer) Feed(p []byte) []string {
	var out []string
	for _, c := range p {
		if c == '\n' || c == '\r' {
			if len(l.buf) > 0 {
				out = append(out, string(l.buf))
				l.buf = l.buf[:0]
			}
			continue
		}
		l.buf = append(l.buf, c)
		if len(l.buf) == l.max {
			out = append(out, string(l.buf))
			l.buf = l.buf[:0]
		}
	}
	return out
}

// Pending returns the incomplete tail.
func (l *LineBuffer) Pending() string { return string(l.buf) }
