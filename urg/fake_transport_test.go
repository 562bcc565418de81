package urg

import (
	"time"

	"github.com/hokuyo/urgscip/scip"
	"github.com/hokuyo/urgscip/transport"
)

// fakeTransport replays a scripted sequence of lines to ReadLine and
// records every Write, standing in for transport.Transport in tests
// (the teacher repo has no equivalent fake; this is grounded on the
// narrow Transport contract spec.md §6 defines for the byte layer).
type fakeTransport struct {
	lines  [][]byte
	writes []string
	baud   int
	closed bool
}

// withChecksum appends a valid SCIP checksum byte to s, for lines the
// protocol layer verifies.
func withChecksum(s string) string {
	return s + string(scip.Checksum([]byte(s)))
}

func newFakeTransport(lines ...string) *fakeTransport {
	f := &fakeTransport{}
	for _, l := range lines {
		f.lines = append(f.lines, []byte(l))
	}
	return f
}

func (f *fakeTransport) Write(data []byte) (int, error) {
	f.writes = append(f.writes, string(data))
	return len(data), nil
}

// timeoutMarker is a scripted "line" that makes ReadLine behave as if
// nothing arrived before the timeout, without consuming any of the
// real lines queued after it. It stands in for the silence a drain()
// call reads past on real hardware.
var timeoutMarker = []byte("\x00timeout\x00")

func (f *fakeTransport) ReadLine(out []byte, timeout time.Duration) (int, error) {
	if len(f.lines) == 0 {
		return 0, transport.ErrTimeout
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	if string(line) == string(timeoutMarker) {
		return 0, transport.ErrTimeout
	}
	n := copy(out, line)
	return n, nil
}

func (f *fakeTransport) SetBaudRate(bps int) error {
	f.baud = bps
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// ppResponseLines builds a well-formed PP response: echo is handled by
// the caller's script ordering, this returns the status + 8 data lines
// + trailing blank that fetchParameters expects.
func ppResponseLines() []string {
	return []string{
		withChecksum("00"),
		withChecksum("DMIN:20"),
		withChecksum("DMAX:5600"),
		withChecksum("ARES:1024"),
		withChecksum("AMIN:44"),
		withChecksum("AMAX:725"),
		withChecksum("AFRT:384"),
		withChecksum("SCAN:600"),
		withChecksum("VEND:HOKUYO"),
		"",
	}
}
