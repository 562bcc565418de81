package urg

import (
	"strconv"
	"strings"
	"time"
)

// requiredParamBits is the 0x7F mask of PP keys that must all be
// present for a parameter response to be considered complete
// (spec.md §4.D).
const requiredParamBits = 0x7f

const (
	bitDMin = 1 << iota
	bitDMax
	bitARes
	bitAMin
	bitAMax
	bitAFrt
	bitScan
)

// fetchParameters sends PP and populates s.params, then resets the
// scanning window to cover every step (spec.md §4.D).
func (s *Session) fetchParameters() error {
	lines, err := s.command("PP\n", []int{0}, maxTimeout)
	if err != nil {
		s.drain(maxTimeout)
		return s.fail(InvalidResponse, "PP failed")
	}
	if len(lines) < 10 {
		s.drain(maxTimeout)
		return s.fail(InvalidResponse, "short PP response")
	}

	var bits int
	for _, line := range lines[:len(lines)-1] {
		switch {
		case strings.HasPrefix(line, "DMIN:"):
			s.params.MinDistance = atoiPrefix(line, 5)
			bits |= bitDMin
		case strings.HasPrefix(line, "DMAX:"):
			s.params.MaxDistance = atoiPrefix(line, 5)
			bits |= bitDMax
		case strings.HasPrefix(line, "ARES:"):
			s.params.AreaResolution = atoiPrefix(line, 5)
			bits |= bitARes
		case strings.HasPrefix(line, "AMIN:"):
			s.params.FirstDataIndex = atoiPrefix(line, 5)
			bits |= bitAMin
		case strings.HasPrefix(line, "AMAX:"):
			s.params.LastDataIndex = atoiPrefix(line, 5)
			bits |= bitAMax
		case strings.HasPrefix(line, "AFRT:"):
			s.params.FrontDataIndex = atoiPrefix(line, 5)
			bits |= bitAFrt
		case strings.HasPrefix(line, "SCAN:"):
			rpm := atoiPrefix(line, 5)
			if rpm > 0 {
				s.params.ScanUsec = 60_000_000 / rpm
			}
			bits |= bitScan
		}
	}

	if bits != requiredParamBits {
		return s.fail(ReceiveError, "incomplete parameter set")
	}

	s.timeout = deriveTimeout(s.params.ScanUsec)

	return s.SetScanningParameter(
		s.params.FirstDataIndex-s.params.FrontDataIndex,
		s.params.LastDataIndex-s.params.FrontDataIndex,
		1,
	)
}

func atoiPrefix(line string, skip int) int {
	v, _ := strconv.Atoi(line[skip:])
	return v
}

// deriveTimeout implements spec.md §3's "derived line-read timeout
// equals scan_usec / 256, floor-clamped so a full scan period fits"
// (scan_usec >> 8 in the reference, which uses >> (10-2)). The shifted
// value is already milliseconds: urg_serial.h documents urg->timeout
// as "[msec]", not microseconds.
func deriveTimeout(scanUsec int) time.Duration {
	const minMillis = 1 // never go below 1ms
	millis := scanUsec >> 8
	if millis < minMillis {
		millis = minMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// SetScanningParameter sets the scanning window, validating against
// the parameter-store invariants of spec.md §3.
func (s *Session) SetScanningParameter(first, last, skip int) error {
	if skip < 0 || skip >= 100 ||
		first > last ||
		first < -s.params.FrontDataIndex ||
		last > s.params.LastDataIndex-s.params.FrontDataIndex {
		return s.fail(ScanningParameterError, "out of range")
	}
	s.scanningFirstStep = first
	s.scanningLastStep = last
	s.scanningSkipStep = skip
	s.ok()
	return nil
}

// SetConnectionDataSize selects 2-byte or 3-byte sample encoding for
// plain distance measurements. spec.md §9 flags the reference
// implementation's validation as an always-true "(x != A) || (x != B)"
// bug; this uses the evidently-intended "&&".
func (s *Session) SetConnectionDataSize(width DataWidth) error {
	if !s.isActive {
		return s.fail(NotConnected, "")
	}
	if width != Width3Byte && width != Width2Byte {
		return s.fail(DataSizeParameterError, "")
	}
	s.dataWidth = width
	s.ok()
	return nil
}
