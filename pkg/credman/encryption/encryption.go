// Package encryption seals vault records with AES-256-GCM under keys derived
// from one master key.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	sealPrefix = "wcv1"
	// KeySize is the length of master and derived keys.
	KeySize = 32
)

var (
	ErrCipherTextTooShort = errors.New("ciphertext too short")
	ErrUnknownFormat      = errors.New("ciphertext has an unknown format")
	ErrInvalidKeySize     = errors.New("key must be 32 bytes")
)

var randReader io.Reader = rand.Reader

// DeriveKey derives a KeySize subkey of master for purpose using HKDF-SHA256.
func DeriveKey(master []byte, purpose string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKeySize
	}
	key := make([]byte, KeySize)
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and binds it to aad. The output carries a format
// prefix and the nonce.
func Seal(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealPrefix)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealPrefix...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// Open reverses Seal. It fails if the key, aad or ciphertext differ.
func Open(ciphertext, key, aad []byte) ([]byte, error) {
	if len(ciphertext) < len(sealPrefix) || string(ciphertext[:len(sealPrefix)]) != sealPrefix {
		return nil, ErrUnknownFormat
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	rest := ciphertext[len(sealPrefix):]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrCipherTextTooShort
	}
	nonce, data := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, data, aad)
}
