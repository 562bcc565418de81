package urg

import "fmt"

// ErrCode is a stable, numeric error taxonomy for Session calls.
//
// Values are part of the public API: callers may switch on Code without
// depending on the wrapped message text.
type ErrCode int

const (
	NoError ErrCode = iota
	NotConnected
	SerialOpenError
	EthernetOpenError
	SendError
	NoResponse
	InvalidResponse
	ChecksumError
	NotDetectBaudrateError
	InvalidParameter
	ReceiveError
	ScanningParameterError
	DataSizeParameterError
	UnknownError
)

var codeMessages = map[ErrCode]string{
	NoError:                "no error",
	NotConnected:           "not connected",
	SerialOpenError:        "failed to open serial device",
	EthernetOpenError:      "failed to open ethernet connection",
	SendError:              "failed to send command",
	NoResponse:             "no response from sensor",
	InvalidResponse:        "invalid response from sensor",
	ChecksumError:          "checksum error",
	NotDetectBaudrateError: "could not detect sensor baud rate",
	InvalidParameter:       "invalid parameter",
	ReceiveError:           "receive error",
	ScanningParameterError: "invalid scanning parameter",
	DataSizeParameterError: "invalid data size parameter",
	UnknownError:           "unknown error",
}

// Error is the concrete error type returned by Session methods.
type Error struct {
	Code ErrCode
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Msg)
}

// String implements fmt.Stringer so ErrCode values print as human text,
// mirroring urg_sensor_status()-style lookups in the C source.
func (c ErrCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "unrecognized error code"
}

func newError(code ErrCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf extracts the ErrCode from an error produced by this package.
// A nil error maps to NoError; any other error maps to UnknownError.
func CodeOf(err error) ErrCode {
	if err == nil {
		return NoError
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return UnknownError
}
