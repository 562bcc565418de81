package transport

import (
	"time"

	"go.bug.st/serial"
)

// Serial is a Transport over a serial line, built on go.bug.st/serial
// (the same library the teacher repo uses for its own sensing
// devices), replacing the termios-based implementation in
// urg_serial_linux.c.
type Serial struct {
	port serial.Port
	lineReader
}

// NewSerial opens device at baud, 8N1, no flow control, matching
// spec.md §6's "Serial: 8N1, flow control off, raw mode".
func NewSerial(device string, baud int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}

	s := &Serial{port: port}
	s.lineReader.fill = s.rawFill
	return s, nil
}

func (s *Serial) rawFill(buf []byte, timeout time.Duration) (int, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, err
	}
	n, err := s.port.Read(buf)
	if err != nil {
		return 0, ErrClosed
	}
	return n, nil
}

func (s *Serial) Write(data []byte) (int, error) {
	n, err := s.port.Write(data)
	if err != nil {
		return n, ErrClosed
	}
	return n, nil
}

func (s *Serial) ReadLine(out []byte, timeout time.Duration) (int, error) {
	return s.lineReader.ReadLine(out, timeout)
}

// SetBaudRate reconfigures the serial line, draining any buffered
// bytes since they were framed at the old rate (mirrors serial_clear
// in the reference implementation).
func (s *Serial) SetBaudRate(bps int) error {
	if err := s.port.SetMode(&serial.Mode{
		BaudRate: bps,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}); err != nil {
		return err
	}
	s.lineReader.ring = ringBuffer{}
	s.lineReader.hasPushback = false
	return s.port.ResetInputBuffer()
}

func (s *Serial) Close() error {
	return s.port.Close()
}
