package casauth

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// aesChars is the alphabet the identity provider's login page draws its
// random prefix and IV from. It must not change.
const aesChars = "ABCDEFGHJKMNPQRSTWXYZabcdefhijkmnprstwxyz2345678"

const (
	prefixLength = 64
	ivLength     = aes.BlockSize
)

var (
	// ErrInvalidCipherText is returned when a password ciphertext cannot be decoded.
	ErrInvalidCipherText = errors.New("invalid password ciphertext")
)

var randRead = rand.Read

// EncryptPassword encrypts a credential the way the identity provider's login
// page does: 64 random alphabet characters are prepended to plain, the UTF-8
// bytes of salt are used directly as the AES key, a 16 character IV is drawn
// from the same alphabet and the result of AES-CBC with PKCS7 padding is
// returned in standard Base64.
//
// Every call yields a different ciphertext for the same input.
func EncryptPassword(plain, salt string) string {
	block, err := aes.NewCipher(keyFromSalt(salt))
	if err != nil {
		// keyFromSalt only returns valid AES key sizes
		panic(err)
	}
	data := append([]byte(randomString(prefixLength)), plain...)
	data = pkcs7Pad(data, aes.BlockSize)
	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, []byte(randomString(ivLength))).CryptBlocks(out, data)
	return base64.StdEncoding.EncodeToString(out)
}

// DecryptPassword reverses EncryptPassword. The IV is not transmitted, so the
// first block decrypts to garbage; it lies entirely inside the random prefix
// which is discarded.
func DecryptPassword(cipherText, salt string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCipherText, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad length %d", ErrInvalidCipherText, len(raw))
	}
	block, err := aes.NewCipher(keyFromSalt(salt))
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, make([]byte, ivLength)).CryptBlocks(plain, raw)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	if len(plain) < prefixLength {
		return "", fmt.Errorf("%w: missing prefix", ErrInvalidCipherText)
	}
	return string(plain[prefixLength:]), nil
}

// keyFromSalt uses the salt bytes as key material. Providers always issue 16
// character salts; shorter or odd-sized salts are zero padded to the next AES
// key size and longer ones truncated to 32 bytes.
func keyFromSalt(salt string) []byte {
	key := []byte(salt)
	switch n := len(key); {
	case n == 16 || n == 24 || n == 32:
		return key
	case n < 16:
		return append(key, make([]byte, 16-n)...)
	case n < 24:
		return append(key, make([]byte, 24-n)...)
	case n < 32:
		return append(key, make([]byte, 32-n)...)
	default:
		return key[:32]
	}
}

// randomString draws n characters from aesChars using crypto/rand with
// rejection sampling so that every symbol is equally likely.
func randomString(n int) string {
	const limit = 256 - 256%len(aesChars)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := randRead(buf); err != nil {
			panic(fmt.Sprintf("casauth: reading random bytes: %v", err))
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, aesChars[int(b)%len(aesChars)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	pad := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCipherText)
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > blockSize || pad > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCipherText)
	}
	for _, c := range b[len(b)-pad:] {
		if int(c) != pad {
			return nil, fmt.Errorf("%w: bad padding", ErrInvalidCipherText)
		}
	}
	return b[:len(b)-pad], nil
}
