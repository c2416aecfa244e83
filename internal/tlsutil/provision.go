// Package tlsutil bootstraps the server's TLS identity: it loads an
// existing key/certificate pair from disk, or generates a self-signed
// pair on first run.
package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"virtual-camera/internal/logger"
)

// Validity period for generated certificates.
const certValidity = 365 * 24 * time.Hour

const rsaKeyBits = 2048

// Identity is a private key and certificate pair bound to a hostname.
type Identity struct {
	CertFile    string
	KeyFile     string
	Certificate tls.Certificate
	Generated   bool // True if this call minted the pair
}

// Ensure loads the identity at the given paths, generating a
// self-signed pair first if either file is missing. Existing files are
// returned unchanged; their validity is not re-checked.
func Ensure(keyPath, certPath, hostname string) (*Identity, error) {
	if hostname == "" {
		hostname = "localhost"
	}

	generated := false
	if !fileExists(certPath) || !fileExists(keyPath) {
		logger.Info("TLS", "Generating self-signed SSL certificate...")
		if err := generateSelfSigned(keyPath, certPath, hostname); err != nil {
			return nil, fmt.Errorf("generate self-signed certificate: %w", err)
		}
		generated = true
		logger.Info("TLS", "Generated self-signed certificate: %s", certPath)
		logger.Info("TLS", "Generated private key: %s", keyPath)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	return &Identity{
		CertFile:    certPath,
		KeyFile:     keyPath,
		Certificate: cert,
		Generated:   generated,
	}, nil
}

func generateSelfSigned(keyPath, certPath, hostname string) error {
	for _, p := range []string{certPath, keyPath} {
		dir := filepath.Dir(p)
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create certificate directory: %w", err)
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	dnsNames := []string{hostname}
	if hostname != "localhost" {
		dnsNames = append(dnsNames, "localhost")
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Country:      []string{"US"},
			Province:     []string{"Virtual Camera"},
			Locality:     []string{"Local"},
			Organization: []string{"Virtual Security Camera"},
			CommonName:   hostname,
		},
		NotBefore:             now,
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
	}

	// Subject == issuer: the pair self-signs.
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}

	return nil
}

// ServerConfig builds a server-side TLS configuration from the
// identity, restricted to forward-secret AEAD cipher suites.
func ServerConfig(id *Identity) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.Certificate},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
