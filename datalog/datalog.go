// Package datalog keeps small line-oriented text logs and CSV sensor logs
// on the local filesystem.
package datalog

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/inhies/go-bytesize"
)

// TextLog is a newline-delimited text file.
type TextLog struct {
	path string
}

func NewText(path string) *TextLog { return &TextLog{path: path} }

func (l *TextLog) Path() string { return l.path }

// Write replaces the file with lines, each terminated by a newline.
func (l *TextLog) Write(lines ...string) error {
	return withLock(l.path, func() error {
		return os.WriteFile(l.path, joinLines(lines), 0o644)
	})
}

// Append adds lines to the end of the file, creating it if needed.
func (l *TextLog) Append(lines ...string) error {
	return appendLocked(l.path, joinLines(lines))
}

// ReadAll returns the whole file.
func (l *TextLog) ReadAll() (string, error) {
	b, err := os.ReadFile(l.path)
	if err != nil {
		return "", fmt.Errorf("datalog read %s: %w", l.path, err)
	}
	return string(b), nil
}

// Lines returns the file's lines in order, newline-stripped.
func (l *TextLog) Lines() ([]string, error) {
	var out []string
	err := l.Each(func(_ int, line string) error {
		out = append(out, line)
		return nil
	})
	return out, err
}

// Each calls fn for every line, numbered from 1. A non-nil error from fn
// stops the scan and is returned.
func (l *TextLog) Each(fn func(n int, line string) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("datalog open %s: %w", l.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, strings.TrimRight(sc.Text(), "\r")); err != nil {
			return err
		}
	}
	return sc.Err()
}

func joinLines(lines []string) []byte {
	var b bytes.Buffer
	for _, s := range lines {
		b.WriteString(strings.TrimSuffix(s, "\n"))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// lockPath is the advisory lock file guarding path.
func lockPath(path string) string { return path + ".lock" }

func withLock(path string, fn func() error) error {
	fl := flock.New(lockPath(path))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("datalog lock %s: %w", path, err)
	}
	defer fl.Unlock()
	return fn()
}

func appendLocked(path string, data []byte) error {
	return withLock(path, func() error {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("datalog append %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("datalog append %s: %w", path, err)
		}
		return f.Close()
	})
}

// FileInfo describes one listed file.
type FileInfo struct {
	Name  string
	Size  int64
	Human string
}

func (f FileInfo) String() string { return fmt.Sprintf("%-20s (%s)", f.Name, f.Human) }

// List returns the regular files in dir sorted by name. Lock files are
// skipped.
func List(dir string) ([]FileInfo, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("datalog list %s: %w", dir, err)
	}
	var out []FileInfo
	for _, e := range ents {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:  e.Name(),
			Size:  info.Size(),
			Human: bytesize.New(float64(info.Size())).String(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
