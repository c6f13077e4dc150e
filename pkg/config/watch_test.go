package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchCredentialsIsNoopOutsideCCM(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Commissioner.EnableCCM = false

	stop, err := WatchCredentials(cfg, func(*tls.Certificate, [][]byte, error) {})
	if err != nil {
		t.Fatal(err)
	}
	if err := stop(); err != nil {
		t.Fatal(err)
	}
}

func TestWatchCredentialsDetectsCertificateRewrite(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")
	anchorPath := filepath.Join(dir, "ca.pem")

	writeTestCertPair(t, certPath, keyPath)
	writeTestCA(t, anchorPath)

	cfg := GetDefaultConfig()
	cfg.Commissioner.EnableCCM = true
	cfg.Credentials.CertFile = certPath
	cfg.Credentials.KeyFile = keyPath
	cfg.Credentials.TrustAnchorFiles = []string{anchorPath}

	rotated := make(chan error, 1)
	stop, err := WatchCredentials(cfg, func(_ *tls.Certificate, _ [][]byte, rotateErr error) {
		rotated <- rotateErr
	})
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	writeTestCertPair(t, certPath, keyPath)

	select {
	case err := <-rotated:
		if err != nil {
			t.Fatalf("expected successful rotation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rotation was never observed")
	}
}

func writeTestCertPair(t *testing.T, certPath, keyPath string) {
	t.Helper()
	certPEM, keyPEM := generateSelfSignedCertPEM(t)
	if err := os.WriteFile(certPath, certPEM, 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		t.Fatal(err)
	}
}

func writeTestCA(t *testing.T, path string) {
	t.Helper()
	certPEM, _ := generateSelfSignedCertPEM(t)
	if err := os.WriteFile(path, certPEM, 0600); err != nil {
		t.Fatal(err)
	}
}

// generateSelfSignedCertPEM builds a throwaway ECDSA P-256 self-signed
// certificate, PEM-encoded alongside its private key, for exercising the
// credential watcher without a real CCM domain CA.
func generateSelfSignedCertPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-commissioner"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}
