package dartdap

import (
	"crypto/tls"
	"crypto/x509"
	"net"

	"github.com/sirupsen/logrus"
)

// UnsolicitedPolicy controls how the connection manager reacts to an inbound
// message ID with no matching pending operation (RFC 4511 section 4.4's
// unsolicited notification, or a plain protocol violation from a
// misbehaving server).
type UnsolicitedPolicy int

const (
	// UnsolicitedFatal tears the connection down, failing every pending
	// operation with ErrUnsolicitedResponse. This is the default.
	UnsolicitedFatal UnsolicitedPolicy = iota
	// UnsolicitedDropAndLog logs the unmatched frame at Warn level and
	// otherwise ignores it, leaving the connection open.
	UnsolicitedDropAndLog
)

// DialOption configures a Conn at dial time.
type DialOption func(*dialConfig)

type dialConfig struct {
	dialer             *net.Dialer
	tlsConfig          *tls.Config
	insecureCertPolicy func(*x509.Certificate) bool
	unsolicitedPolicy  UnsolicitedPolicy
	logger             logrus.FieldLogger
}

func newDialConfig() *dialConfig {
	return &dialConfig{
		dialer:            &net.Dialer{Timeout: DefaultTimeout},
		unsolicitedPolicy: UnsolicitedFatal,
		logger:            logrus.StandardLogger(),
	}
}

// WithDialer overrides the net.Dialer used by Dial, DialTLS and DialURL.
func WithDialer(d *net.Dialer) DialOption {
	return func(dc *dialConfig) { dc.dialer = d }
}

// WithTLSConfig sets the tls.Config used by DialTLS and by ldaps:// URLs
// passed to DialURL.
func WithTLSConfig(tc *tls.Config) DialOption {
	return func(dc *dialConfig) { dc.tlsConfig = tc }
}

// WithInsecureCertPolicy installs a predicate consulted only when a TLS
// handshake's standard certificate verification fails. If the predicate
// returns true the handshake proceeds anyway and a Warn-level log line is
// emitted; if accept is nil (the default), verification failures are
// fatal to the dial.
func WithInsecureCertPolicy(accept func(*x509.Certificate) bool) DialOption {
	return func(dc *dialConfig) { dc.insecureCertPolicy = accept }
}

// WithUnsolicitedPolicy overrides the default fatal handling of unsolicited
// responses.
func WithUnsolicitedPolicy(p UnsolicitedPolicy) DialOption {
	return func(dc *dialConfig) { dc.unsolicitedPolicy = p }
}

// WithLogger injects a logrus.FieldLogger used for every log line the
// connection manager emits. The default is logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) DialOption {
	return func(dc *dialConfig) { dc.logger = l }
}
