package uartproto

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Reading is one environmental sample.
type Reading struct {
	Temp     float64   `json:"temp"`
	Humidity float64   `json:"humidity"`
	Pressure float64   `json:"pressure"`
	Time     time.Time `json:"-"`
}

// JSON renders r as one JSON object line with a unix timestamp.
func (r Reading) JSON() (string, error) {
	type wire struct {
		Reading
		Timestamp int64 `json:"timestamp"`
	}
	b, err := json.Marshal(wire{Reading: r, Timestamp: r.Time.Unix()})
	if err != nil {
		return "", err
	}
	return string(b) + EOL, nil
}

// CSV renders "temp,humidity,pressure".
func (r Reading) CSV() string {
	return strings.Join([]string{num(r.Temp), num(r.Humidity), num(r.Pressure)}, ",") + EOL
}

// Compact renders "T:25.5C H:60.0% P:1013.25hPa".
func (r Reading) Compact() string {
	return "T:" + num(r.Temp) + "C H:" + num(r.Humidity) + "% P:" + num(r.Pressure) + "hPa" + EOL
}

// num prints the shortest form but always with a fractional part.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
