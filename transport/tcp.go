package transport

import (
	"net"
	"strconv"
	"time"
)

// DefaultTCPPort is the sensor's default Ethernet control port
// (spec.md §6).
const DefaultTCPPort = 10940

// TCP is a Transport over a TCP socket, replacing urg_tcpclient.c.
// SetBaudRate is a no-op, per spec.md §4.A.
type TCP struct {
	conn net.Conn
	lineReader
}

// NewTCP dials host:port (IPv4), defaulting port to DefaultTCPPort when
// 0 is given.
func NewTCP(host string, port int) (*TCP, error) {
	if port == 0 {
		port = DefaultTCPPort
	}
	conn, err := net.Dial("tcp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	t := &TCP{conn: conn}
	t.lineReader.fill = t.rawFill
	return t, nil
}

// rawFill mirrors tcpclient_read's two-phase strategy: an
// opportunistic non-blocking top-up of whatever the OS has already
// buffered, then a blocking read bounded by timeout (SO_RCVTIMEO) for
// the remainder.
func (t *TCP) rawFill(buf []byte, timeout time.Duration) (int, error) {
	// Phase 1: non-blocking opportunistic read.
	t.conn.SetReadDeadline(time.Now())
	n, err := t.conn.Read(buf)
	if n > 0 {
		t.conn.SetReadDeadline(time.Time{})
		return n, nil
	}
	if err != nil && !isTimeoutErr(err) {
		return 0, ErrClosed
	}

	// Phase 2: blocking read bounded by the caller's timeout.
	t.conn.SetReadDeadline(time.Now().Add(timeout))
	n, err = t.conn.Read(buf)
	t.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if isTimeoutErr(err) {
			return n, nil
		}
		return 0, ErrClosed
	}
	return n, nil
}

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (t *TCP) Write(data []byte) (int, error) {
	n, err := t.conn.Write(data)
	if err != nil {
		return n, ErrClosed
	}
	return n, nil
}

func (t *TCP) ReadLine(out []byte, timeout time.Duration) (int, error) {
	return t.lineReader.ReadLine(out, timeout)
}

// SetBaudRate is a no-op for TCP, per spec.md §4.A.
func (t *TCP) SetBaudRate(bps int) error {
	return nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

