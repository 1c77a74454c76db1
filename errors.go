package dartdap

import (
	"fmt"

	"github.com/buzz3791/dartdap/proto"
)

// ConnError is a connection-manager error that never reached the wire as an
// LDAPResult: a local condition of the manager itself rather than a server
// response.
type ConnError string

// Error satisfies the error interface.
func (err ConnError) Error() string {
	return "dartdap: " + string(err)
}

// Error taxonomy for conditions local to the connection manager. Server
// response failures surface as *OperationFailed instead, carrying the full
// LDAPResult.
const (
	// ErrConnectionClosed is returned by operations submitted once Close or
	// Drain has begun, and completes operations still pending when Close
	// tears the connection down.
	ErrConnectionClosed ConnError = "connection closed"
	// ErrTimeout completes a pending operation whose context deadline
	// elapsed before a terminating response arrived.
	ErrTimeout ConnError = "operation timed out"
	// ErrAbandoned completes a pending operation that a caller abandoned
	// locally before a response arrived.
	ErrAbandoned ConnError = "operation abandoned"
	// ErrUnsolicitedResponse is the terminal error delivered to every
	// pending operation when an inbound message ID has no match and the
	// connection's UnsolicitedPolicy is UnsolicitedFatal.
	ErrUnsolicitedResponse ConnError = "unsolicited response"
	// ErrSocketError wraps a transport-level read or write failure.
	ErrSocketError ConnError = "socket error"
	// ErrProtocolViolation wraps a framing error in the inbound byte stream
	// or an inbound message whose LDAPMessage envelope cannot be decoded.
	ErrProtocolViolation ConnError = "protocol violation"
)

// OperationFailed wraps a non-success LDAPResult returned by the server for
// a single-response operation, carrying the matchedDN and diagnostic
// message through to the caller. Compare's compareTrue/compareFalse codes
// never reach this path; see Conn.Compare and (*proto.CompareResponse).Bool.
type OperationFailed struct {
	proto.LDAPResult
}

func (e *OperationFailed) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("operation failed: %s: %s", e.Result, e.Message)
	}
	return fmt.Sprintf("operation failed: %s", e.Result)
}

// IsOperationFailed reports whether err is an *OperationFailed carrying one
// of the given result codes. With no codes given it matches any
// *OperationFailed.
func IsOperationFailed(err error, results ...proto.Result) bool {
	e, ok := err.(*OperationFailed)
	if !ok {
		return false
	}
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if e.Result == r {
			return true
		}
	}
	return false
}
