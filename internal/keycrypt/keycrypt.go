// Package keycrypt implements the asymmetric encryption boundary between the
// server and a device. Command payloads are encrypted under the device public
// key before they are persisted; only the device holds the private key.
package keycrypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
)

// KeyBits is the RSA modulus size used for device keypairs.
const KeyBits = 2048

var (
	// ErrDecryption is returned for malformed ciphertext or a key mismatch.
	ErrDecryption = errors.New("payload decryption failed")

	// ErrPayloadTooLarge is returned when a plaintext exceeds the OAEP
	// limit for the key size (k - 2*hLen - 2 bytes).
	ErrPayloadTooLarge = errors.New("payload too large for RSA-OAEP")
)

// GenerateKeyPair generates a new RSA keypair for a device.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, KeyBits)
}

// MarshalPublicKey encodes a public key as a PEM PUBLIC KEY block, the same
// form openssl -pubout emits.
func MarshalPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// ParsePublicKey decodes a PEM-encoded RSA public key. Both PKIX and PKCS1
// encodings are accepted.
func ParsePublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found in public key")
	}

	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not RSA")
		}
		return rsaPub, nil
	}

	return x509.ParsePKCS1PublicKey(block.Bytes)
}

// MarshalPrivateKey encodes a private key as a PEM PRIVATE KEY block (PKCS8).
func MarshalPrivateKey(priv *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// ParsePrivateKey decodes a PEM-encoded RSA private key. Both PKCS8 and PKCS1
// encodings are accepted.
func ParsePrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// Encrypt encrypts plaintext with RSA-OAEP-SHA256 under pub and returns the
// ciphertext base64-encoded for transport and storage.
func Encrypt(plaintext []byte, pub *rsa.PublicKey) (string, error) {
	hash := sha256.New()
	if len(plaintext) > pub.Size()-2*hash.Size()-2 {
		return "", ErrPayloadTooLarge
	}

	ciphertext, err := rsa.EncryptOAEP(hash, rand.Reader, pub, plaintext, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt with the device private key. Any failure, from bad
// base64 to a key mismatch, surfaces as ErrDecryption so callers don't leak
// padding details.
func Decrypt(encoded string, priv *rsa.PrivateKey) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
