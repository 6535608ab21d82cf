package uartproto

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/sigurn/crc16"

	"psoc6-go/errcode"
)

var modbus = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum is CRC-16/MODBUS over p.
func Checksum(p []byte) uint16 { return crc16.Checksum(p, modbus) }

// ErrChecksum reports a frame whose trailer does not match its payload.
var ErrChecksum = &errcode.E{C: errcode.InvalidParams, Op: "uartproto.frame", Msg: "checksum mismatch"}

// EncodeFrame wraps payload as "$payload*XXXX\r\n".
func EncodeFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, '$')
	out = append(out, payload...)
	out = append(out, fmt.Sprintf("*%04X", Checksum(payload))...)
	return append(out, EOL...)
}

// DecodeFrame verifies one frame and returns its payload. A trailing line
// ending is optional.
func DecodeFrame(frame []byte) ([]byte, error) {
	f := bytes.TrimRight(frame, "\r\n")
	if len(f) < 6 || f[0] != '$' {
		return nil, errcode.New(errcode.InvalidParams, "uartproto.frame", "missing '$'")
	}
	star := bytes.LastIndexByte(f, '*')
	if star < 1 || len(f)-star != 5 {
		return nil, errcode.New(errcode.InvalidParams, "uartproto.frame", "missing checksum")
	}
	want, err := strconv.ParseUint(string(f[star+1:]), 16, 16)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "uartproto.frame", err)
	}
	payload := f[1:star]
	if Checksum(payload) != uint16(want) {
		return nil, ErrChecksum
	}
	return payload, nil
}
