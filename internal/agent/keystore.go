package agent

import (
	"crypto/rsa"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
)

const privateKeyFile = "device_key.pem"

// GenerateKeyPair creates a fresh device keypair, writes the private key to
// dir with owner-only permissions and returns the key with its PEM-encoded
// public half. The public half is what gets sent to the server at activation.
func GenerateKeyPair(dir string) (*rsa.PrivateKey, string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, "", err
	}

	priv, err := keycrypt.GenerateKeyPair()
	if err != nil {
		return nil, "", fmt.Errorf("key generation failed: %w", err)
	}

	privPEM, err := keycrypt.MarshalPrivateKey(priv)
	if err != nil {
		return nil, "", err
	}
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), []byte(privPEM), 0600); err != nil {
		return nil, "", fmt.Errorf("failed to write private key: %w", err)
	}

	pubPEM, err := keycrypt.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, "", err
	}

	return priv, pubPEM, nil
}

// LoadPrivateKey reads the device private key from dir.
func LoadPrivateKey(dir string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(filepath.Join(dir, privateKeyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return keycrypt.ParsePrivateKey(string(data))
}

// PrivateKeyPath returns where the device private key lives inside dir.
func PrivateKeyPath(dir string) string {
	return filepath.Join(dir, privateKeyFile)
}
