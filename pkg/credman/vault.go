// Package credman keeps authenticated sessions under opaque auth tokens so a
// trusted caller can skip the credential exchange on later logins.
package credman

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpcas/pkg/casauth"
	"github.com/warpdl/warpcas/pkg/credman/encryption"
)

const vaultPurpose = "warpcas session vault v1"

var (
	ErrTokenNotFound   = errors.New("auth token not found")
	ErrTokenExpired    = errors.New("auth token expired")
	ErrServiceMismatch = errors.New("auth token was issued for another service")
	ErrIDMismatch      = errors.New("auth token was issued to another id")
)

// record is the persisted form of one session. Data is the sealed JSON of a
// casauth.Session, bound to the token and service.
type record struct {
	ID      string
	Service string
	Expires time.Time
	Data    []byte
}

// TokenInfo describes an issued token without its session.
type TokenInfo struct {
	Token   string    `json:"token"`
	ID      string    `json:"id"`
	Service string    `json:"service"`
	Expires time.Time `json:"expires"`
}

// Vault maps auth tokens to encrypted sessions and persists them to a file.
// It implements casauth.SessionResolver.
type Vault struct {
	mu       sync.Mutex
	filePath string
	key      []byte
	ttl      time.Duration
	records  map[string]*record
	// now is replaced in tests.
	now func() time.Time
}

var _ casauth.SessionResolver = (*Vault)(nil)

// NewVault opens the vault stored at filePath, creating it on first save.
// master is a 32 byte key; the sealing key is derived from it. An empty
// filePath keeps the vault in memory only.
func NewVault(filePath string, master []byte, ttl time.Duration) (*Vault, error) {
	key, err := encryption.DeriveKey(master, vaultPurpose)
	if err != nil {
		return nil, err
	}
	v := &Vault{
		filePath: filePath,
		key:      key,
		ttl:      ttl,
		records:  make(map[string]*record),
		now:      time.Now,
	}
	if err := v.load(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) load() error {
	if v.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(v.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 { // don't decode empty data
		return nil
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v.records); err != nil {
		return fmt.Errorf("error: corrupt session vault %s: %w", v.filePath, err)
	}
	return nil
}

func (v *Vault) save() error {
	if v.filePath == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v.records); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(v.filePath), 0755); err != nil {
		return err
	}
	tmp := v.filePath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, v.filePath)
}

func aad(token, service string) []byte {
	return []byte(token + "\x00" + service)
}

// Put stores sess for service and returns a new token for it.
func (v *Vault) Put(id, service string, sess *casauth.Session) (string, error) {
	if sess == nil || sess.Cookies == nil {
		return "", errors.New("credman: nil session")
	}
	plain, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	sealed, err := encryption.Seal(plain, v.key, aad(token, service))
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.records[token] = &record{
		ID:      id,
		Service: service,
		Expires: v.now().Add(v.ttl),
		Data:    sealed,
	}
	if err := v.save(); err != nil {
		delete(v.records, token)
		return "", err
	}
	return token, nil
}

// Resolve returns the session stored under token. The token must have been
// issued to id for service and must not have expired.
func (v *Vault) Resolve(_ context.Context, token, id, service string) (*casauth.Session, error) {
	v.mu.Lock()
	rec, ok := v.records[token]
	if ok && !v.now().Before(rec.Expires) {
		delete(v.records, token)
		err := v.save()
		v.mu.Unlock()
		if err != nil {
			return nil, errors.Join(ErrTokenExpired, fmt.Errorf("error: cannot persist vault: %w", err))
		}
		return nil, ErrTokenExpired
	}
	v.mu.Unlock()
	if !ok {
		return nil, ErrTokenNotFound
	}
	if rec.ID != id {
		return nil, ErrIDMismatch
	}
	if rec.Service != service {
		return nil, ErrServiceMismatch
	}

	plain, err := encryption.Open(rec.Data, v.key, aad(token, service))
	if err != nil {
		return nil, fmt.Errorf("error: cannot open session for token: %w", err)
	}
	var sess casauth.Session
	if err := json.Unmarshal(plain, &sess); err != nil {
		return nil, err
	}
	if sess.Cookies == nil {
		sess.Cookies = casauth.NewCookieStore()
	}
	return &sess, nil
}

// Revoke deletes token.
func (v *Vault) Revoke(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.records[token]; !ok {
		return ErrTokenNotFound
	}
	delete(v.records, token)
	return v.save()
}

// Tokens lists the live tokens issued to id, or to everyone when id is empty.
func (v *Vault) Tokens(id string) []TokenInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	var out []TokenInfo
	for tok, rec := range v.records {
		if !now.Before(rec.Expires) || (id != "" && rec.ID != id) {
			continue
		}
		out = append(out, TokenInfo{Token: tok, ID: rec.ID, Service: rec.Service, Expires: rec.Expires})
	}
	return out
}

// Sweep drops expired tokens and returns how many were removed.
func (v *Vault) Sweep() (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.now()
	n := 0
	for tok, rec := range v.records {
		if !now.Before(rec.Expires) {
			delete(v.records, tok)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, v.save()
}

// Len returns the number of stored tokens, expired or not.
func (v *Vault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.records)
}

// Close flushes the vault to disk.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.save()
}
