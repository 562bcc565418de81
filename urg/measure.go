package urg

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hokuyo/urgscip/scip"
)

// EngineState is the measurement streaming state machine of spec.md
// §4.E, modeled as a tagged variant rather than the implicit state the
// reference implementation carries across scanning_remain_times
// (spec.md §9's "tagged-variant result codes" note).
type EngineState int

const (
	StateIdle EngineState = iota
	StateAwaitingFirstFrame
	StateStreaming
	StateStopping
)

// State returns the measurement engine's current state.
func (s *Session) State() EngineState {
	return s.state
}

// StartMeasurement issues the measurement command for kind. scanTimes
// == 0 means "infinite, until Stop"; skipScan must be in [0, 9].
func (s *Session) StartMeasurement(kind Kind, scanTimes, skipScan int) error {
	if !s.isActive {
		return s.fail(NotConnected, "")
	}
	if skipScan < 0 || skipScan > 9 {
		return s.fail(InvalidParameter, "skip_scan out of range")
	}

	switch kind {
	case KindDistance:
		ch := byte('D')
		if s.dataWidth == Width2Byte {
			ch = 'S'
		}
		return s.sendDistanceCommand(scanTimes, skipScan, 'G', 'M', ch)
	case KindDistanceIntensity:
		return s.sendDistanceCommand(scanTimes, skipScan, 'G', 'M', 'E')
	case KindMultiecho:
		return s.sendDistanceCommand(scanTimes, skipScan, 'H', 'N', 'D')
	case KindMultiechoIntensity:
		return s.sendDistanceCommand(scanTimes, skipScan, 'H', 'N', 'E')
	default:
		return s.fail(InvalidParameter, "unsupported measurement kind")
	}
}

func (s *Session) sendDistanceCommand(scanTimes, skipScan int, singleCh, continuousCh, typeCh byte) error {
	if scanTimes < 0 {
		scanTimes = 0
	}
	s.specifiedScanTimes = scanTimes
	s.remainingScanTimes = scanTimes
	if skipScan < 0 {
		skipScan = 0
	}
	s.skipScan = skipScan

	front := s.params.FrontDataIndex
	var cmd string
	if s.remainingScanTimes == 1 {
		if err := s.LaserOn(); err != nil {
			return err
		}
		s.state = StateAwaitingFirstFrame
		cmd = fmt.Sprintf("%c%c%04d%04d%02d\n", singleCh, typeCh,
			s.scanningFirstStep+front, s.scanningLastStep+front, s.scanningSkipStep)
	} else {
		s.state = StateStreaming
		cmd = fmt.Sprintf("%c%c%04d%04d%02d%01d%02d\n", continuousCh, typeCh,
			s.scanningFirstStep+front, s.scanningLastStep+front, s.scanningSkipStep,
			skipScan, 0)
	}

	return s.write(cmd)
}

// GetDistance retrieves one distance-only frame.
func (s *Session) GetDistance(lengthOut []int, timestampOut *int) (int, error) {
	if !s.isActive {
		return 0, s.fail(NotConnected, "")
	}
	return s.receiveData(lengthOut, nil, timestampOut)
}

// GetDistanceIntensity retrieves one distance+intensity frame.
// intensityOut may be nil, in which case intensities are decoded but
// discarded.
func (s *Session) GetDistanceIntensity(lengthOut, intensityOut []int, timestampOut *int) (int, error) {
	if !s.isActive {
		return 0, s.fail(NotConnected, "")
	}
	return s.receiveData(lengthOut, intensityOut, timestampOut)
}

// GetMultiecho retrieves one multi-echo frame; lengthOut must have
// capacity steps*MaxEcho.
func (s *Session) GetMultiecho(lengthOut []int, timestampOut *int) (int, error) {
	if !s.isActive {
		return 0, s.fail(NotConnected, "")
	}
	return s.receiveData(lengthOut, nil, timestampOut)
}

// GetMultiechoIntensity retrieves one multi-echo+intensity frame.
func (s *Session) GetMultiechoIntensity(lengthOut, intensityOut []int, timestampOut *int) (int, error) {
	if !s.isActive {
		return 0, s.fail(NotConnected, "")
	}
	return s.receiveData(lengthOut, intensityOut, timestampOut)
}

// parsedEchoback is the result of parsing a measurement reply's echo
// line (parse_distance_echoback / parse_distance_parameter).
type parsedEchoback struct {
	kind           Kind
	firstIndex     int
	lastIndex      int
	skipStep       int
	twoByteEncoded bool
}

func parseDistanceEchoback(echo string) parsedEchoback {
	if echo == "QT" {
		return parsedEchoback{kind: KindStop}
	}

	n := len(echo)
	isGH := n > 0 && (echo[0] == 'G' || echo[0] == 'H')
	isMN := n > 0 && (echo[0] == 'M' || echo[0] == 'N')

	if !((n == 12 && isGH) || (n == 15 && (echo[0] == 'M' || echo[0] == 'N'))) {
		return parsedEchoback{kind: KindUnknown}
	}
	_ = isMN

	p := parsedEchoback{twoByteEncoded: false}
	switch echo[1] {
	case 'S':
		p.twoByteEncoded = true
		p.kind = KindDistance
	case 'D':
		if echo[0] == 'G' || echo[0] == 'M' {
			p.kind = KindDistance
		} else if echo[0] == 'H' || echo[0] == 'N' {
			p.kind = KindMultiecho
		}
	case 'E':
		if echo[0] == 'G' || echo[0] == 'M' {
			p.kind = KindDistanceIntensity
		} else if echo[0] == 'H' || echo[0] == 'N' {
			p.kind = KindMultiechoIntensity
		}
	default:
		return parsedEchoback{kind: KindUnknown}
	}

	p.firstIndex, _ = strconv.Atoi(echo[2:6])
	p.lastIndex, _ = strconv.Atoi(echo[6:10])
	p.skipStep, _ = strconv.Atoi(echo[10:12])
	return p
}

// receiveData is the per-frame parse of spec.md §4.E: echoback, status
// line, timestamp line, then data lines, mirroring receive_data /
// receive_length_data in urg_sensor.c.
func (s *Session) receiveData(lengthOut, intensityOut []int, timestampOut *int) (int, error) {
	extraMicros := 0
	if s.skipScan > 0 {
		extraMicros = s.params.ScanUsec * s.skipScan
	}
	extendedTimeout := s.timeout + time.Duration(extraMicros/1000)*time.Millisecond

	buf := make([]byte, bufferSize)

	n, err := s.conn.ReadLine(buf, extendedTimeout)
	if err != nil || n <= 0 {
		return 0, s.fail(NoResponse, "")
	}
	echo := parseDistanceEchoback(string(buf[:n]))

	if echo.kind == KindStop {
		s.state = StateIdle
		return 0, nil
	}

	n, err = s.conn.ReadLine(buf, s.timeout)
	if err != nil || n != 3 {
		s.drain(s.timeout)
		return 0, s.fail(InvalidResponse, "malformed status line")
	}
	if !scip.VerifyChecksum(buf[:n]) {
		s.drain(s.timeout)
		return 0, s.fail(ChecksumError, "")
	}
	status := string(buf[:2])

	if s.specifiedScanTimes != 1 && status == "00" {
		// Acknowledgement preceding the first data frame of a
		// continuous stream: consume the trailing blank line and
		// recurse to fetch the actual frame.
		n, err = s.conn.ReadLine(buf, s.timeout)
		if err != nil || n != 0 {
			s.drain(s.timeout)
			return 0, s.fail(InvalidResponse, "expected blank line after ack")
		}
		return s.receiveData(lengthOut, intensityOut, timestampOut)
	}

	wantStatus := "99"
	if s.specifiedScanTimes == 1 {
		wantStatus = "00"
	}
	if status != wantStatus {
		s.drain(s.timeout)
		return 0, s.fail(InvalidResponse, "unexpected data status")
	}

	n, err = s.conn.ReadLine(buf, s.timeout)
	timestamp := 0
	if err == nil && n > 0 {
		timestamp = scip.Decode(buf[:4])
	}
	if timestampOut != nil {
		*timestampOut = timestamp
	}

	maxSteps := echo.lastIndex - echo.firstIndex
	decoder := scip.NewSampleDecoder(echo.kind, echo.twoByteEncoded, lengthOut, intensityOut, maxSteps)

	for {
		n, err = s.conn.ReadLine(buf, s.timeout)
		if err != nil {
			s.drain(s.timeout)
			return decoder.Steps(), s.fail(NoResponse, "")
		}
		if n == 0 {
			break
		}
		line := buf[:n]
		if !scip.VerifyChecksum(line) {
			s.drain(s.timeout)
			return decoder.Steps(), s.fail(ChecksumError, "")
		}
		if _, derr := decoder.Feed(line[:n-1]); derr != nil {
			s.drain(s.timeout)
			return decoder.Steps(), s.fail(ReceiveError, derr.Error())
		}
	}

	steps := decoder.Steps()

	if s.observer != nil {
		s.observer.Observe(Frame{
			Kind:      echo.kind,
			FirstStep: echo.firstIndex,
			LastStep:  echo.lastIndex,
			SkipStep:  echo.skipStep,
			Timestamp: timestamp,
			Length:    copySlice(lengthOut, frameLen(echo.kind, steps)),
			Intensity: copySlice(intensityOut, frameLen(echo.kind, steps)),
		})
	}

	if s.specifiedScanTimes > 0 && s.remainingScanTimes > 0 {
		s.remainingScanTimes--
		if s.remainingScanTimes <= 0 {
			s.conn.Write([]byte("QT\n"))
			s.isLaserOn = false
		}
	}
	if s.state == StateAwaitingFirstFrame {
		s.state = StateIdle
	}

	s.ok()
	return steps, nil
}

func frameLen(kind Kind, steps int) int {
	if kind.IsMultiecho() {
		return steps * MaxEcho
	}
	return steps
}

func copySlice(src []int, n int) []int {
	if src == nil || n <= 0 || n > len(src) {
		return nil
	}
	out := make([]int, n)
	copy(out, src[:n])
	return out
}

// StopMeasurement sends QT and discards frames until a QT echo is
// observed or three frames have been discarded (spec.md §4.G).
func (s *Session) StopMeasurement() error {
	if !s.isActive {
		return s.fail(NotConnected, "")
	}
	s.state = StateStopping

	if _, err := s.conn.Write([]byte("QT\n")); err != nil {
		return s.fail(SendError, "")
	}
	s.isLaserOn = false

	// receiveData's QT-echo branch sets state to StateIdle; any other
	// nil-error outcome leaves it at StateStopping, so three discarded
	// frames without that transition means the sensor never echoed QT.
	const maxReadTimes = 3
	for i := 0; i < maxReadTimes; i++ {
		if _, err := s.receiveData(nil, nil, nil); err == nil && s.state == StateIdle {
			s.isSending = false
			s.ok()
			return nil
		}
	}
	return s.fail(InvalidResponse, "stop not acknowledged")
}
