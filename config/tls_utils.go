// config/tls_utils.go - Utilities for TLS certificate checks

package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// CheckTLSCertificates verifies the configured certificate can be parsed and
// warns when it expires within 30 days
func CheckTLSCertificates(config *Config, logger outbound.Logger) error {
	if !config.HTTP.TLS {
		return nil // TLS not enabled
	}

	if !certificatesExist(config.HTTP.CertFile, config.HTTP.KeyFile) {
		return fmt.Errorf("TLS certificate or key missing: %s, %s", config.HTTP.CertFile, config.HTTP.KeyFile)
	}

	cert, err := parseCertificate(config.HTTP.CertFile)
	if err != nil {
		return err
	}

	if time.Until(cert.NotAfter) < 30*24*time.Hour {
		logger.Warn("Certificate expires soon", "certFile", config.HTTP.CertFile, "expiry", cert.NotAfter)
	} else {
		logger.Info("Using TLS certificate", "certFile", config.HTTP.CertFile, "expiry", cert.NotAfter)
	}

	return nil
}

func parseCertificate(certPath string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM data in %s", certPath)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return cert, nil
}

// certificatesExist checks if both certificate and key files exist
func certificatesExist(certPath, keyPath string) bool {
	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		return false
	}
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return false
	}
	return true
}
