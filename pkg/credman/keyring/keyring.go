// Package keyring stores the session vault master key in the operating
// system keyring, with a key file as fallback.
package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keySize = 32

var ErrInvalidKey = errors.New("invalid vault key")

// KeyStore holds one master key.
type KeyStore interface {
	GetKey() ([]byte, error)
	SetKey() ([]byte, error)
	DeleteKey() error
}

// Keyring keeps the key hex encoded under AppName/KeyField in the OS keyring.
type Keyring struct {
	AppName  string
	KeyField string
}

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
	randRead      = rand.Read
)

func NewKeyring() *Keyring {
	return &Keyring{
		AppName:  "warpcas",
		KeyField: "vault",
	}
}

// SetKey generates a fresh key and stores it, replacing any previous one.
func (k *Keyring) SetKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := randRead(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := keyringSet(k.AppName, k.KeyField, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("keyring set: %w", err)
	}
	return key, nil
}

func (k *Keyring) GetKey() ([]byte, error) {
	s, err := keyringGet(k.AppName, k.KeyField)
	if err != nil {
		return nil, err
	}
	return DecodeKey(s)
}

func (k *Keyring) DeleteKey() error {
	return keyringDelete(k.AppName, k.KeyField)
}

// DecodeKey parses a hex encoded 32 byte key.
func DecodeKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, keySize, len(key))
	}
	return key, nil
}

// LoadOrCreate returns the key held by the first store that has one. If no
// store has a key, a new one is created in the first store that accepts it.
func LoadOrCreate(stores ...KeyStore) ([]byte, error) {
	for _, s := range stores {
		if key, err := s.GetKey(); err == nil {
			return key, nil
		}
	}
	var errs []error
	for _, s := range stores {
		key, err := s.SetKey()
		if err == nil {
			return key, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no key store configured")
	}
	return nil, errors.Join(errs...)
}
