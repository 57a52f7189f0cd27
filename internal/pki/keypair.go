package pki

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadKeyPair reads a PEM encoded certificate chain and private key from
// disk and returns them ready for use in a tls.Config. Errors name the file
// which could not be used.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certData, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read cert file: %w", err)
	}
	if block, _ := pem.Decode(certData); block == nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode cert PEM in %s", certPath)
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read key file: %w", err)
	}
	if block, _ := pem.Decode(keyData); block == nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode key PEM in %s", keyPath)
	}

	return ParseKeyPair(certData, keyData)
}

// ParseKeyPair parses a PEM certificate chain and key, verifying that the
// leaf public key matches the private key.
func ParseKeyPair(certPEM, keyPEM []byte) (tls.Certificate, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("invalid TLS key pair: %w", err)
	}

	if cert.Leaf == nil {
		cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}

	return cert, nil
}

// TLSCertificate parses the pair into a tls.Certificate.
func (kp *KeyPair) TLSCertificate() (tls.Certificate, error) {
	return ParseKeyPair(kp.CertPEM, kp.KeyPEM)
}
