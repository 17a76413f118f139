package keyring

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	keyFileName = "vault.key"
	keyFileMode = 0o600
)

// FileKeyStore keeps the key hex encoded in <dir>/vault.key. It is the
// fallback for hosts without an OS keyring, e.g. headless servers.
type FileKeyStore struct {
	fs  afero.Fs
	dir string
}

func NewFileKeyStore(fs afero.Fs, dir string) *FileKeyStore {
	return &FileKeyStore{fs: fs, dir: dir}
}

func (f *FileKeyStore) path() string {
	return filepath.Join(f.dir, keyFileName)
}

// SetKey generates a key and replaces the key file atomically.
func (f *FileKeyStore) SetKey() ([]byte, error) {
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	key := make([]byte, keySize)
	if _, err := randRead(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := f.writeAtomic(hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

func (f *FileKeyStore) writeAtomic(data string) (err error) {
	tmp, err := afero.TempFile(f.fs, f.dir, ".vault.key.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer func() {
		if err != nil {
			f.fs.Remove(name)
		}
	}()
	if _, err = tmp.WriteString(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = f.fs.Chmod(name, keyFileMode); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err = f.fs.Rename(name, f.path()); err != nil {
		return fmt.Errorf("rename key file: %w", err)
	}
	return nil
}

func (f *FileKeyStore) GetKey() ([]byte, error) {
	data, err := afero.ReadFile(f.fs, f.path())
	if err != nil {
		return nil, err
	}
	return DecodeKey(strings.TrimSpace(string(data)))
}

func (f *FileKeyStore) DeleteKey() error {
	return f.fs.Remove(f.path())
}
