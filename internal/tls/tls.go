// Package tls builds the server TLS configuration for the introspection API.
package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/smallsh/internal/config"
)

const (
	tlsCaCrt = "tls_ca.crt"
	tlsCrt   = "tls.crt"
	tlsKey   = "tls.key"
)

var ErrNoCertificate = errors.New("tls enabled but no certificate configured")

// parseTLSVersion maps a configured version to its constant. Empty selects
// TLS 1.3.
func parseTLSVersion(ver string) (uint16, error) {
	switch strings.TrimPrefix(strings.ToLower(ver), "tls") {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	}
	return 0, fmt.Errorf("unsupported tls version %q", ver)
}

// safeReadFile reads p only when it lies within baseDir.
func safeReadFile(baseDir, p string) ([]byte, error) {
	clean := filepath.Clean(p)
	if baseDir != "" {
		absBase, _ := filepath.Abs(baseDir)
		absFile, _ := filepath.Abs(clean)
		if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) && absFile != absBase {
			return nil, errors.New("file path outside of allowed directory")
		}
	}
	return os.ReadFile(clean)
}

// certLoader re-reads the pair on every handshake so rotated certificates
// are picked up without a restart.
func certLoader(certFile, keyFile string) func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	baseDir := filepath.Dir(certFile)
	return func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
		certPEM, err := safeReadFile(baseDir, certFile)
		if err != nil {
			return nil, err
		}
		keyPEM, err := safeReadFile(filepath.Dir(keyFile), keyFile)
		if err != nil {
			return nil, err
		}
		cert, err := tls.X509KeyPair(certPEM, keyPEM)
		return &cert, err
	}
}

// Setup returns the server TLS configuration, or nil when TLS is disabled.
func Setup(c config.TLSConfig) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	minVer, err := parseTLSVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}

	certPath, keyPath := c.CertFile, c.KeyFile
	if certPath == "" || keyPath == "" {
		if c.Dir == "" {
			return nil, ErrNoCertificate
		}
		certPath = filepath.Join(c.Dir, tlsCrt)
		keyPath = filepath.Join(c.Dir, tlsKey)
		if !exists(certPath) || !exists(keyPath) {
			if !c.AutoGenerate {
				return nil, fmt.Errorf("%w: %s", ErrNoCertificate, c.Dir)
			}
			if err := GenerateSelfSigned(c.Dir, DefaultHosts, DefaultValidity); err != nil {
				return nil, fmt.Errorf("certificate generation failed: %w", err)
			}
		}
	}
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}

	// #nosec G402 TLS 1.2 is opt-in
	return &tls.Config{
		GetCertificate: certLoader(certPath, keyPath),
		MinVersion:     minVer,
	}, nil
}

// CAPath is the CA certificate written next to a generated pair in dir.
func CAPath(dir string) string { return filepath.Join(dir, tlsCaCrt) }

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
