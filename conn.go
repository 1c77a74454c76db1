// Package dartdap implements an asynchronous LDAPv3 (RFC 4511) connection
// manager: a single-threaded, cooperative state machine that owns one TCP
// or TLS socket, multiplexes concurrently submitted operations over it by
// message ID, and delivers each operation's response back to its caller
// independent of arrival order.
package dartdap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/buzz3791/dartdap/ber"
	"github.com/buzz3791/dartdap/control"
	"github.com/buzz3791/dartdap/proto"
)

// DefaultTimeout is the dial timeout used by Dial, DialTLS, and DialURL
// when no DialOption overrides the dialer.
var DefaultTimeout = 60 * time.Second

// watchdogInterval is the periodic re-check cadence for a graceful close's
// drain condition.
const watchdogInterval = 3 * time.Second

// State is a connection's lifecycle state.
type State int32

const (
	StateNew State = iota
	StateConnecting
	StateOpen
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateDraining:
		return "Draining"
	case StateClosed:
		return "Closed"
	}
	return "State(unknown)"
}

// pendingOp is the handle the loop goroutine keeps for one submitted
// operation between flush and terminating response.
type pendingOp struct {
	id      int64
	tag     proto.Application
	stream  bool
	result  chan opResult
	entries chan streamItem

	// stopped is closed to release the run goroutine from a blocked send
	// to entries once nothing is reading it any longer (the caller gave up
	// on the cursor, or the connection is shutting down), so a stalled
	// consumer can never wedge the run loop. Only meaningful for stream
	// ops; nil otherwise.
	stopped  chan struct{}
	stopOnce sync.Once
}

// stop releases any run-goroutine send blocked on op.entries. Safe to call
// more than once and on a non-streaming op.
func (op *pendingOp) stop() {
	if op.stopped == nil {
		return
	}
	op.stopOnce.Do(func() { close(op.stopped) })
}

// opResult is delivered to a single-response pendingOp exactly once.
type opResult struct {
	op       *ber.Packet
	controls []control.Control
	err      error
}

// streamItem is delivered to a streaming (search) pendingOp any number of
// times, terminated by exactly one item with done or err set.
type streamItem struct {
	entry *proto.Entry
	ref   *proto.SearchResultReference
	done  *proto.SearchResultDone
	err   error
}

// outboundItem is a fully encoded envelope waiting for the bind gate to
// clear before it can be written.
type outboundItem struct {
	id    int64
	tag   proto.Application
	bytes []byte
	op    *pendingOp
}

// Conn is an asynchronous LDAP connection manager. All exported methods are
// safe to call concurrently; the manager itself runs its protocol logic on
// a single internal goroutine, which owns the socket and all mutable state
// and never needs locks.
type Conn struct {
	id     string
	conn   net.Conn
	isTLS  bool
	logger logrus.FieldLogger
	stats  *Stats
	debug  debugging

	unsolicitedPolicy UnsolicitedPolicy

	cmdCh  chan interface{}
	closed chan struct{}

	// closing is closed by Close before cmdClose is even handed to
	// the run goroutine, so any stream send the run goroutine is currently
	// blocked on (a search whose consumer stopped reading) can be released
	// without the loop ever needing to reach its cmdCh select again.
	closing     chan struct{}
	closingOnce sync.Once
}

// newConn wraps an already-established net.Conn.
func newConn(c net.Conn, isTLS bool, dc *dialConfig) *Conn {
	id := uuid.Must(uuid.NewV7()).String()
	logger := dc.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cn := &Conn{
		id:                id,
		conn:              c,
		isTLS:             isTLS,
		logger:            logger.WithField("conn_id", id),
		stats:             &Stats{},
		unsolicitedPolicy: dc.unsolicitedPolicy,
		cmdCh:             make(chan interface{}, 16),
		closed:            make(chan struct{}),
		closing:           make(chan struct{}),
	}
	go cn.reader()
	go cn.run()
	return cn
}

// Dial connects to addr over network (normally "tcp") and returns a Conn
// for it.
func Dial(network, addr string, opts ...DialOption) (*Conn, error) {
	dc := newDialConfig()
	for _, opt := range opts {
		opt(dc)
	}
	c, err := dc.dialer.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dartdap: dial: %w", err)
	}
	return newConn(c, false, dc), nil
}

// DialTLS connects to addr over network and immediately performs a TLS
// handshake, honoring WithTLSConfig and WithInsecureCertPolicy.
func DialTLS(network, addr string, opts ...DialOption) (*Conn, error) {
	dc := newDialConfig()
	for _, opt := range opts {
		opt(dc)
	}
	rawConn, err := dc.dialer.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dartdap: dial: %w", err)
	}
	host, _, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		host = addr
	}
	cfg := buildTLSConfig(dc.tlsConfig, host, dc.insecureCertPolicy, dc.logger)
	tlsConn := tls.Client(rawConn, cfg)
	if err := tlsConn.HandshakeContext(context.Background()); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("dartdap: tls handshake: %w", err)
	}
	return newConn(tlsConn, true, dc), nil
}

// DialURL connects using the scheme, host, and port carried by addr.
// Supported schemes are ldap:// (plain TCP, default port 389) and ldaps://
// (TLS, default port 636).
func DialURL(addr string, opts ...DialOption) (*Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("dartdap: parsing %q: %w", addr, err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, port = u.Host, ""
	}
	switch u.Scheme {
	case "ldap":
		if port == "" {
			port = "389"
		}
		return Dial("tcp", net.JoinHostPort(host, port), opts...)
	case "ldaps":
		if port == "" {
			port = "636"
		}
		return DialTLS("tcp", net.JoinHostPort(host, port), opts...)
	default:
		return nil, fmt.Errorf("dartdap: unsupported scheme %q", u.Scheme)
	}
}

// ID returns the connection's correlation id (a UUIDv7), threaded into
// every structured log line this Conn emits.
func (c *Conn) ID() string { return c.id }

// Stats returns a point-in-time snapshot of the connection's operation
// counters.
func (c *Conn) Stats() *Stats { return c.stats.Clone() }

// SetDebug turns packet-dump debug logging on or off.
func (c *Conn) SetDebug(on bool) { c.debug.Enable(on) }

// --- internal command types exchanged with the loop goroutine ---

type cmdSubmit struct {
	tag   proto.Application
	build func(id int64) (*ber.Packet, error)
	op    *pendingOp
	ack   chan submitAck
}

type submitAck struct {
	id  int64
	err error
}

type cmdFrame struct {
	id       int64
	tag      proto.Application
	op       *ber.Packet
	controls []control.Control
}

type cmdSocketErr struct{ err error }

type cmdTimeout struct{ id int64 }

type cmdAbandon struct{ id int64 }

type cmdForget struct{ id int64 }

type cmdClose struct {
	immediate bool
	done      chan struct{}
}

// submit assigns req the next message ID, enqueues it for flushing, and
// returns a handle the caller can read a response (or stream of responses)
// from. If ctx carries a deadline, the op completes with ErrTimeout if no
// terminating response arrives in time, and an AbandonRequest is emitted
// for the id as a courtesy.
func (c *Conn) submit(ctx context.Context, tag proto.Application, stream bool, build func(id int64) (*ber.Packet, error)) (*pendingOp, error) {
	op := &pendingOp{tag: tag, stream: stream}
	if stream {
		op.entries = make(chan streamItem, 16)
		op.stopped = make(chan struct{})
	} else {
		op.result = make(chan opResult, 1)
	}
	ack := make(chan submitAck, 1)
	select {
	case c.cmdCh <- cmdSubmit{tag: tag, build: build, op: op, ack: ack}:
	case <-c.closed:
		return nil, ErrConnectionClosed
	}
	select {
	case a := <-ack:
		if a.err != nil {
			return nil, a.err
		}
		op.id = a.id
	case <-c.closed:
		return nil, ErrConnectionClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		go c.watchDeadline(op, time.Until(deadline))
	}
	return op, nil
}

func (c *Conn) watchDeadline(op *pendingOp, d time.Duration) {
	if d <= 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		select {
		case c.cmdCh <- cmdTimeout{id: op.id}:
		case <-c.closed:
		}
	case <-c.closed:
	}
}

// abandon asks the manager to emit an AbandonRequest for id and complete
// the corresponding pending operation locally with ErrAbandoned.
func (c *Conn) abandon(id int64) {
	select {
	case c.cmdCh <- cmdAbandon{id: id}:
	case <-c.closed:
	}
}

// forget removes id's pending entry without putting anything on the wire,
// for requests that carry no response of their own (UnbindRequest).
func (c *Conn) forget(id int64) {
	select {
	case c.cmdCh <- cmdForget{id: id}:
	case <-c.closed:
	}
}

// Close tears the connection down immediately: the socket is destroyed at
// once (unblocking any in-flight read or write the loop goroutine is
// waiting on) and every pending operation is completed with
// ErrConnectionClosed.
func (c *Conn) Close() error {
	c.closingOnce.Do(func() { close(c.closing) })
	c.conn.Close()
	done := make(chan struct{})
	select {
	case c.cmdCh <- cmdClose{immediate: true, done: done}:
	case <-c.closed:
		return nil
	}
	select {
	case <-done:
	case <-c.closed:
	}
	return nil
}

// Drain closes the connection gracefully: no further submissions are
// accepted, outstanding operations are allowed to finish, and the socket is
// destroyed once the outbound queue and pending map are both empty. Drain
// blocks until the drain completes or ctx is done.
func (c *Conn) Drain(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case c.cmdCh <- cmdClose{immediate: false, done: done}:
	case <-c.closed:
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return nil
	}
}

// reader feeds bytes read from the socket through an incremental BER framer
// and forwards every decoded LDAPMessage to the loop goroutine as a
// cmdFrame.
func (c *Conn) reader() {
	framer := ber.NewFramer()
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.stats.countReceived(n)
			packets, ferr := framer.Feed(buf[:n])
			for _, p := range packets {
				c.debug.dumpPacket(c.logger, p)
				id, op, controls, derr := proto.DecodeEnvelope(p)
				if derr != nil {
					c.sendCmd(cmdSocketErr{err: fmt.Errorf("%w: malformed LDAPMessage: %v", ErrProtocolViolation, derr)})
					return
				}
				c.sendCmd(cmdFrame{id: id, tag: proto.Application(op.Tag), op: op, controls: controls})
			}
			if ferr != nil {
				c.sendCmd(cmdSocketErr{err: fmt.Errorf("%w: %v", ErrProtocolViolation, ferr)})
				return
			}
		}
		if err != nil {
			select {
			case <-c.closed:
			case <-c.closing:
			default:
				c.sendCmd(cmdSocketErr{err: fmt.Errorf("%w: %v", ErrSocketError, err)})
			}
			return
		}
	}
}

func (c *Conn) sendCmd(cmd interface{}) {
	select {
	case c.cmdCh <- cmd:
	case <-c.closed:
	}
}
