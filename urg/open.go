package urg

import (
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"

	"github.com/hokuyo/urgscip/transport"
)

// OpenSerial opens a serial-line session at device, retrying the
// physical port open (not the SCIP handshake itself) a bounded number
// of times with exponential backoff: supplements spec.md §4.C for the
// "port not present yet" case original_source leaves to the caller.
func OpenSerial(device string, baud int, log *logrus.Entry) (*Session, error) {
	var conn *transport.Serial

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 2 * time.Second

	err := backoff.Retry(func() error {
		c, openErr := transport.NewSerial(device, baud)
		if openErr != nil {
			return openErr
		}
		conn = c
		return nil
	}, policy)
	if err != nil {
		return nil, newError(SerialOpenError, err.Error())
	}

	session, openErr := Open(conn, true, baud, log)
	if openErr != nil {
		conn.Close()
		return nil, openErr
	}
	return session, nil
}

// OpenTCP opens a TCP session to a sensor at host:port (port 0 selects
// the sensor's default port). TCP sessions skip the baud handshake
// entirely, per spec.md §4.C.
func OpenTCP(host string, port int, log *logrus.Entry) (*Session, error) {
	conn, err := transport.NewTCP(host, port)
	if err != nil {
		return nil, newError(EthernetOpenError, err.Error())
	}

	session, openErr := Open(conn, false, 0, log)
	if openErr != nil {
		conn.Close()
		return nil, openErr
	}
	return session, nil
}
