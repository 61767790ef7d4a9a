package http

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
)

// bind opens the socket in OnStart so a taken port aborts startup.
func bind(addr string, opts ListenOptions) (net.Listener, error) {
	network := opts.ListenerNetwork
	if network == "" {
		network = "tcp4"
	}
	tlsConfig, err := opts.tlsConfig()
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		return net.Listen(network, addr)
	}
	return tls.Listen(network, addr, tlsConfig)
}

// tlsConfig is nil when no server certificate is configured. A client CA
// turns on mutual TLS for the gateway hop.
func (o ListenOptions) tlsConfig() (*tls.Config, error) {
	if o.CertFile == "" || o.CertKeyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(o.CertFile, o.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   max(o.TLSMinVersion, tls.VersionTLS12),
	}
	if o.CertClientFile == "" {
		return cfg, nil
	}
	bundle, err := os.ReadFile(o.CertClientFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA %s: %w", o.CertClientFile, err)
	}
	cas := x509.NewCertPool()
	if !cas.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("client CA %s holds no PEM certificates", o.CertClientFile)
	}
	cfg.ClientCAs = cas
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}
