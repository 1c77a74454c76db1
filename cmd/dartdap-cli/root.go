package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/buzz3791/dartdap"
)

// RootCmd provides the commandline parser root.
var RootCmd = &cobra.Command{
	Use:   "dartdap-cli",
	Short: "Exercise the dartdap LDAP connection manager from the command line",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(2)
	},
}

var (
	flagHost     string
	flagPort     int
	flagSSL      bool
	flagInsecure bool
	flagBindDN   string
	flagPassword string
	flagTimeout  time.Duration
	flagDebug    bool
)

func init() {
	RootCmd.PersistentFlags().StringVar(&flagHost, "host", "localhost", "LDAP server host")
	RootCmd.PersistentFlags().IntVar(&flagPort, "port", 389, "LDAP server port")
	RootCmd.PersistentFlags().BoolVar(&flagSSL, "ssl", false, "Connect over TLS")
	RootCmd.PersistentFlags().BoolVar(&flagInsecure, "insecure", false, "Accept any TLS certificate")
	RootCmd.PersistentFlags().StringVar(&flagBindDN, "bind-dn", "", "DN to bind as before the requested operation")
	RootCmd.PersistentFlags().StringVar(&flagPassword, "bind-password", "", "Password for --bind-dn")
	RootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "Per-operation deadline")
	RootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Dump every received packet")
}

// connect dials the server named by the persistent flags and, if --bind-dn
// was given, performs a simple bind before returning.
func connect(ctx context.Context) (*dartdap.Conn, error) {
	opts := []dartdap.DialOption{
		dartdap.WithLogger(logrus.StandardLogger()),
	}
	if flagInsecure {
		opts = append(opts, dartdap.WithInsecureCertPolicy(func(*x509.Certificate) bool { return true }))
	}
	addr := fmt.Sprintf("%s:%d", flagHost, flagPort)
	var conn *dartdap.Conn
	var err error
	if flagSSL {
		conn, err = dartdap.DialTLS("tcp", addr, opts...)
	} else {
		conn, err = dartdap.Dial("tcp", addr, opts...)
	}
	if err != nil {
		return nil, err
	}
	if flagDebug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	conn.SetDebug(flagDebug)
	if flagBindDN != "" {
		if err := conn.Bind(ctx, flagBindDN, flagPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bind: %w", err)
		}
	}
	return conn, nil
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
