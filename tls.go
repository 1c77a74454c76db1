package dartdap

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// buildTLSConfig returns a tls.Config for host that performs standard
// certificate verification, falling back to accept's predicate only when
// that verification fails. TLS policy is strict by default; with accept
// nil, verification failures are fatal.
func buildTLSConfig(base *tls.Config, host string, accept func(*x509.Certificate) bool, logger logrus.FieldLogger) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if accept == nil {
		return cfg
	}
	roots := cfg.RootCAs
	serverName := cfg.ServerName
	cfg.InsecureSkipVerify = true
	cfg.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("dartdap: parsing peer certificate: %w", err)
			}
			certs = append(certs, cert)
		}
		if len(certs) == 0 {
			return fmt.Errorf("dartdap: no peer certificate presented")
		}
		intermediates := x509.NewCertPool()
		for _, c := range certs[1:] {
			intermediates.AddCert(c)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{
			DNSName:       serverName,
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   time.Now(),
		})
		if err == nil {
			return nil
		}
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		if accept(certs[0]) {
			logger.WithError(err).Warn("dartdap: accepting certificate rejected by standard verification via insecure cert policy")
			return nil
		}
		return err
	}
	return cfg
}
