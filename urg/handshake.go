package urg

import "fmt"

// candidateBauds are the rates tried during auto-baud detection,
// before being reordered so the requested baud goes first (spec.md
// §4.C).
var candidateBauds = []int{19200, 38400, 115200}

// handshake drives the sensor from an unknown baud/protocol state to
// "idle, SCIP 2.0, at baud" (spec.md §4.C), grounded on
// connect_serial_device in urg_sensor.c.
func (s *Session) handshake(baud int) error {
	order := reorderBauds(candidateBauds, baud)

	for _, candidate := range order {
		if err := s.conn.SetBaudRate(candidate); err != nil {
			continue
		}

		lines, cmdErr := s.command("QT\n", []int{0}, maxTimeout)

		switch {
		case cmdErr == nil && len(lines) > 0 && lines[0] == "E":
			// SCIP 1.1: switch protocol, then drain and retarget baud.
			if _, err := s.command("SCIP2.0\n", []int{0}, maxTimeout); err != nil {
				return err
			}
			s.drain(maxTimeout)
			return s.changeBaud(baud, candidate)

		case cmdErr == nil && len(lines) > 0 && lines[0] == "0Ee":
			// Time-adjustment mode: exit it, then drain and retarget baud.
			if _, err := s.command("TM2\n", []int{0}, maxTimeout); err != nil {
				return err
			}
			s.drain(maxTimeout)
			return s.changeBaud(baud, candidate)

		case cmdErr != nil && cmdErr.Code == InvalidResponse:
			// Mid-stream garbage: drain and retarget baud.
			s.drain(maxTimeout)
			return s.changeBaud(baud, candidate)

		case cmdErr != nil:
			// No response at this baud: try the next candidate.
			continue

		case len(lines) > 0 && lines[0] == "00P":
			return s.changeBaud(baud, candidate)
		}
	}

	return s.fail(NotDetectBaudrateError, "")
}

// reorderBauds returns candidates with requested moved to the front,
// if present, matching the C source's in-place swap.
func reorderBauds(candidates []int, requested int) []int {
	order := append([]int(nil), candidates...)
	for i, b := range order {
		if b == requested {
			order[i] = order[0]
			order[0] = requested
			break
		}
	}
	return order
}

// changeBaud sets the sensor's own baud via SS, then reconfigures the
// local transport to match (spec.md §4.C step 3).
func (s *Session) changeBaud(target, current int) error {
	if target == current {
		s.ok()
		return nil
	}
	cmd := fmt.Sprintf("SS%06d\n", target)
	if _, err := s.command(cmd, []int{0, 3, 4}, s.timeout); err != nil {
		return s.fail(InvalidParameter, "sensor rejected baud change")
	}
	if err := s.conn.SetBaudRate(target); err != nil {
		return s.fail(SerialOpenError, err.Error())
	}
	s.ok()
	return nil
}
