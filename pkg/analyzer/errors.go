package analyzer

import (
	"errors"
	"io"
	"net"
)

// Error taxonomy for the analyzer protocol. Callers classify with errors.Is.
var (
	// ErrConnection: the transport connection could not be established.
	ErrConnection = errors.New("analyzer: cannot establish connection")
	// ErrConnectionLost: the transport connection dropped mid-operation.
	ErrConnectionLost = errors.New("analyzer: connection lost")
	// ErrTransport: a request failed at the protocol level (timeout, exception
	// response, malformed or mismatched reply).
	ErrTransport = errors.New("analyzer: transport failure")
	// ErrIncomplete: raw register data does not match the register map layout.
	ErrIncomplete = errors.New("analyzer: incomplete register data")
	// ErrOutOfRange: a decoded value falls outside the device class limits.
	ErrOutOfRange = errors.New("analyzer: decoded value out of range")
)

// IsDecodeError reports whether err belongs to the decode family. Decode
// failures are transient analyzer glitches: the cycle is dropped and the next
// poll runs at the normal cadence, without reconnect or backoff.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrIncomplete) || errors.Is(err, ErrOutOfRange)
}

// classifyReadError maps a raw modbus library error to the taxonomy above.
// Network-level failures mean the connection is gone and must be reopened;
// everything else is a protocol failure on a live connection.
func classifyReadError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return wrapErr(ErrConnectionLost, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return wrapErr(ErrConnectionLost, err)
	}
	return wrapErr(ErrTransport, err)
}

func wrapErr(kind, cause error) error {
	return errors.Join(kind, cause)
}
