package agent

import (
	"os"
	"testing"

	"github.com/rmitchellscott/couchpilot/internal/keycrypt"
)

func TestKeystoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	priv, pubPEM, err := GenerateKeyPair(dir)
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	info, err := os.Stat(PrivateKeyPath(dir))
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadPrivateKey(dir)
	if err != nil {
		t.Fatalf("LoadPrivateKey: %v", err)
	}
	if !loaded.Equal(priv) {
		t.Error("loaded key differs from generated key")
	}

	// The returned public PEM must pair with the stored private key
	pub, err := keycrypt.ParsePublicKey(pubPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	ciphertext, err := keycrypt.Encrypt([]byte("hello"), pub)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plaintext, err := keycrypt.Decrypt(ciphertext, loaded)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plaintext) != "hello" {
		t.Errorf("round-trip = %q", plaintext)
	}
}

func TestLoadPrivateKeyMissing(t *testing.T) {
	if _, err := LoadPrivateKey(t.TempDir()); err == nil {
		t.Error("expected error for missing key file")
	}
}
