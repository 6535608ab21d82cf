package datalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSVHeader is the first row of every sensor log.
var CSVHeader = []string{"Timestamp", "Temperature", "Humidity"}

// Record is one sensor log row.
type Record struct {
	Time        time.Time
	Temperature float64
	Humidity    float64
}

func (r Record) row() []string {
	return []string{
		strconv.FormatInt(r.Time.Unix(), 10),
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.FormatFloat(r.Humidity, 'f', -1, 64),
	}
}

// CSVLog is a header-plus-rows sensor log.
type CSVLog struct {
	path string
}

// CreateCSV truncates path and writes the header row.
func CreateCSV(path string) (*CSVLog, error) {
	l := &CSVLog{path: path}
	err := withLock(path, func() error {
		b, err := encodeRows(CSVHeader)
		if err != nil {
			return err
		}
		return os.WriteFile(path, b, 0o644)
	})
	if err != nil {
		return nil, fmt.Errorf("datalog create %s: %w", path, err)
	}
	return l, nil
}

// OpenCSV attaches to an existing log without touching it.
func OpenCSV(path string) *CSVLog { return &CSVLog{path: path} }

func (l *CSVLog) Path() string { return l.path }

// Append adds one row.
func (l *CSVLog) Append(r Record) error {
	b, err := encodeRows(r.row())
	if err != nil {
		return err
	}
	return appendLocked(l.path, b)
}

// Records parses every row after the header.
func (l *CSVLog) Records() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("datalog open %s: %w", l.path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(CSVHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("datalog parse %s: %w", l.path, err)
	}
	if len(rows) == 0 || rows[0][0] != CSVHeader[0] {
		return nil, fmt.Errorf("datalog parse %s: missing header", l.path)
	}
	out := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		r, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("datalog parse %s row %d: %w", l.path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseRow(row []string) (Record, error) {
	ts, err := strconv.ParseFloat(row[0], 64)
	if err != nil {
		return Record{}, err
	}
	t, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return Record{}, err
	}
	h, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Record{}, err
	}
	return Record{Time: time.Unix(int64(ts), 0), Temperature: t, Humidity: h}, nil
}

func encodeRows(rows ...[]string) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
