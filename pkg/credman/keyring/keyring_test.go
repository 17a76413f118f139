package keyring

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func stubKeyring(t *testing.T) map[string]string {
	t.Helper()
	origSet, origGet, origDelete, origRand := keyringSet, keyringGet, keyringDelete, randRead
	t.Cleanup(func() {
		keyringSet, keyringGet, keyringDelete, randRead = origSet, origGet, origDelete, origRand
	})
	stored := map[string]string{}
	keyringSet = func(app, key, value string) error {
		stored[app+"/"+key] = value
		return nil
	}
	keyringGet = func(app, key string) (string, error) {
		v, ok := stored[app+"/"+key]
		if !ok {
			return "", errors.New("secret not found in keyring")
		}
		return v, nil
	}
	keyringDelete = func(app, key string) error {
		delete(stored, app+"/"+key)
		return nil
	}
	return stored
}

func TestKeyringRoundTrip(t *testing.T) {
	stored := stubKeyring(t)
	randRead = func(b []byte) (int, error) {
		for i := range b {
			b[i] = byte(i)
		}
		return len(b), nil
	}

	kr := NewKeyring()
	key, err := kr.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if stored["warpcas/vault"] != hex.EncodeToString(key) {
		t.Fatalf("stored %q", stored["warpcas/vault"])
	}
	got, err := kr.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatalf("GetKey = %x, want %x", got, key)
	}
	if err := kr.DeleteKey(); err != nil {
		t.Fatal(err)
	}
	if _, err := kr.GetKey(); err == nil {
		t.Fatal("GetKey after DeleteKey succeeded")
	}
}

func TestKeyringErrors(t *testing.T) {
	stored := stubKeyring(t)
	kr := NewKeyring()

	randRead = func(b []byte) (int, error) { return 0, errors.New("rand fail") }
	if _, err := kr.SetKey(); err == nil {
		t.Error("expected rand error")
	}
	randRead = func(b []byte) (int, error) { return len(b), nil }
	keyringSet = func(string, string, string) error { return errors.New("set fail") }
	if _, err := kr.SetKey(); err == nil {
		t.Error("expected set error")
	}

	stored["warpcas/vault"] = "not-valid-hex!"
	if _, err := kr.GetKey(); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("invalid hex: %v", err)
	}
	stored["warpcas/vault"] = "aabbccdd"
	if _, err := kr.GetKey(); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: %v", err)
	}
}

type memStore struct {
	key    []byte
	setErr error
}

func (m *memStore) GetKey() ([]byte, error) {
	if m.key == nil {
		return nil, errors.New("no key")
	}
	return m.key, nil
}

func (m *memStore) SetKey() ([]byte, error) {
	if m.setErr != nil {
		return nil, m.setErr
	}
	m.key = bytes.Repeat([]byte{0x07}, keySize)
	return m.key, nil
}

func (m *memStore) DeleteKey() error { m.key = nil; return nil }

func TestLoadOrCreate(t *testing.T) {
	existing := bytes.Repeat([]byte{0x09}, keySize)
	primary := &memStore{setErr: errors.New("keyring unavailable")}
	fallback := &memStore{key: existing}
	key, err := LoadOrCreate(primary, fallback)
	if err != nil || !bytes.Equal(key, existing) {
		t.Fatalf("LoadOrCreate = %x, %v", key, err)
	}

	fallback = &memStore{}
	key, err = LoadOrCreate(primary, fallback)
	if err != nil || !bytes.Equal(key, fallback.key) {
		t.Fatalf("LoadOrCreate created %x, %v", key, err)
	}

	broken := &memStore{setErr: errors.New("read-only")}
	if _, err := LoadOrCreate(primary, broken); err == nil {
		t.Fatal("LoadOrCreate without a writable store succeeded")
	}
	if _, err := LoadOrCreate(); err == nil {
		t.Fatal("LoadOrCreate with no stores succeeded")
	}
}
