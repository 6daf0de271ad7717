package keycrypt

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"media action", []byte(`{"media":{"action":"play_pause"}}`)},
		{"volume with value", []byte(`{"volume":{"action":"set","value":50}}`)},
		{"volume without value", []byte(`{"volume":{"action":"mute"}}`)},
		{"brightness with value", []byte(`{"brightness":{"action":"set","value":80}}`)},
		{"brightness without value", []byte(`{"brightness":{"action":"increase"}}`)},
		{"empty", []byte{}},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := Encrypt(tt.plaintext, &priv.PublicKey)
			if err != nil {
				t.Fatalf("Encrypt: %v", err)
			}
			if strings.Contains(ciphertext, string(tt.plaintext)) && len(tt.plaintext) > 0 {
				t.Fatal("ciphertext contains plaintext")
			}

			got, err := Decrypt(ciphertext, priv)
			if err != nil {
				t.Fatalf("Decrypt: %v", err)
			}
			if !bytes.Equal(got, tt.plaintext) {
				t.Errorf("round trip mismatch: got %q, want %q", got, tt.plaintext)
			}
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	priv1, _ := GenerateKeyPair()
	priv2, _ := GenerateKeyPair()

	ciphertext, err := Encrypt([]byte(`{"media":{"action":"next"}}`), &priv1.PublicKey)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(ciphertext, priv2); !errors.Is(err, ErrDecryption) {
		t.Errorf("expected ErrDecryption with wrong key, got %v", err)
	}
}

func TestDecryptMalformedCiphertext(t *testing.T) {
	priv, _ := GenerateKeyPair()

	for _, input := range []string{"not base64!!!", "", "YWJjZGVm"} {
		if _, err := Decrypt(input, priv); !errors.Is(err, ErrDecryption) {
			t.Errorf("Decrypt(%q): expected ErrDecryption, got %v", input, err)
		}
	}
}

func TestEncryptPayloadTooLarge(t *testing.T) {
	priv, _ := GenerateKeyPair()

	big := bytes.Repeat([]byte("x"), 256)
	if _, err := Encrypt(big, &priv.PublicKey); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestPublicKeyPEMRoundTrip(t *testing.T) {
	priv, _ := GenerateKeyPair()

	pemStr, err := MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPublicKey: %v", err)
	}
	if !strings.Contains(pemStr, "BEGIN PUBLIC KEY") {
		t.Errorf("unexpected PEM header: %q", pemStr)
	}

	pub, err := ParsePublicKey(pemStr)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 {
		t.Error("parsed public key does not match original")
	}
}

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	priv, _ := GenerateKeyPair()

	pemStr, err := MarshalPrivateKey(priv)
	if err != nil {
		t.Fatalf("MarshalPrivateKey: %v", err)
	}

	parsed, err := ParsePrivateKey(pemStr)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if parsed.D.Cmp(priv.D) != 0 {
		t.Error("parsed private key does not match original")
	}
}

func TestParsePublicKeyGarbage(t *testing.T) {
	for _, input := range []string{"", "not pem", "-----BEGIN PUBLIC KEY-----\ngarbage\n-----END PUBLIC KEY-----"} {
		if _, err := ParsePublicKey(input); err == nil {
			t.Errorf("ParsePublicKey(%q): expected error", input)
		}
	}
}
