// Package cryptox implements the per-user file encryption: scrypt key
// derivation plus streaming AES-192-CBC cipher objects that accept chunks in
// arrival order and emit the PKCS#7 padding only when the logical stream ends.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	// FileKeySize is the AES-192 key length used for file content.
	FileKeySize = 24
	// IVSize is the AES block size; one fresh IV per file, never reused.
	IVSize = aes.BlockSize
)

var (
	ErrCipherFinalized = errors.New("cryptox: cipher already finalized")
	ErrBadCiphertext   = errors.New("cryptox: ciphertext is not a whole number of blocks")
	ErrBadPadding      = errors.New("cryptox: invalid padding")
)

// DeriveKey derives the AES key for a user's files from their stored
// credential hash. The salt is a fixed per-deployment value: the key must be
// re-derivable from the stored credential alone, so the salt cannot be random
// per call. That makes the salt's contribution weak; see DESIGN.md.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(secret, salt, 16384, 8, 1, FileKeySize)
	if err != nil {
		return nil, fmt.Errorf("derive file key: %w", err)
	}
	return key, nil
}

// HashPassword hashes a login password with a per-user random salt.
func HashPassword(password, salt []byte) (string, error) {
	hash, err := scrypt.Key(password, salt, 8192, 8, 10, 64)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hex.EncodeToString(hash), nil
}

// NewIV returns a fresh random IV, hex encoded for storage on the file record.
func NewIV() (string, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	return hex.EncodeToString(iv), nil
}

// NewSalt returns a random 32-byte salt, hex encoded.
func NewSalt() (string, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// Stream is a single-use chunked cipher transform. Chunks must be fed in
// arrival order; Final may be called exactly once and flushes the trailing
// block.
type Stream interface {
	Update(chunk []byte) ([]byte, error)
	Final() ([]byte, error)
}

// Encryptor encrypts one logical plaintext stream with AES-192-CBC.
type Encryptor struct {
	mode      cipher.BlockMode
	buf       []byte
	finalized bool
}

// Decryptor decrypts one logical ciphertext stream. It withholds the last
// block until Final so the padding can be stripped at the true stream end.
type Decryptor struct {
	mode      cipher.BlockMode
	buf       []byte
	finalized bool
}

// NewEncryptor builds a streaming encryptor bound to key and the hex iv.
func NewEncryptor(key []byte, ivHex string) (*Encryptor, error) {
	mode, err := newBlockMode(key, ivHex, true)
	if err != nil {
		return nil, err
	}
	return &Encryptor{mode: mode}, nil
}

// NewDecryptor builds a streaming decryptor bound to key and the hex iv.
func NewDecryptor(key []byte, ivHex string) (*Decryptor, error) {
	mode, err := newBlockMode(key, ivHex, false)
	if err != nil {
		return nil, err
	}
	return &Decryptor{mode: mode}, nil
}

func newBlockMode(key []byte, ivHex string, encrypt bool) (cipher.BlockMode, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("cryptox: invalid iv %q", ivHex)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: bad key: %w", err)
	}
	if encrypt {
		return cipher.NewCBCEncrypter(block, iv), nil
	}
	return cipher.NewCBCDecrypter(block, iv), nil
}

// Update encrypts every complete block accumulated so far and returns the
// ciphertext; a trailing partial block is held until more data or Final.
func (e *Encryptor) Update(chunk []byte) ([]byte, error) {
	if e.finalized {
		return nil, ErrCipherFinalized
	}
	e.buf = append(e.buf, chunk...)
	n := len(e.buf) - len(e.buf)%aes.BlockSize
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	e.mode.CryptBlocks(out, e.buf[:n])
	e.buf = append(e.buf[:0], e.buf[n:]...)
	return out, nil
}

// Final pads the remaining bytes (PKCS#7, always 1..16 bytes of padding) and
// returns the last ciphertext block.
func (e *Encryptor) Final() ([]byte, error) {
	if e.finalized {
		return nil, ErrCipherFinalized
	}
	e.finalized = true
	pad := aes.BlockSize - len(e.buf)%aes.BlockSize
	for i := 0; i < pad; i++ {
		e.buf = append(e.buf, byte(pad))
	}
	out := make([]byte, len(e.buf))
	e.mode.CryptBlocks(out, e.buf)
	e.buf = nil
	return out, nil
}

// Update decrypts the accumulated ciphertext except for the last complete
// block, which may carry the padding and is held for Final.
func (d *Decryptor) Update(chunk []byte) ([]byte, error) {
	if d.finalized {
		return nil, ErrCipherFinalized
	}
	d.buf = append(d.buf, chunk...)
	n := len(d.buf) - len(d.buf)%aes.BlockSize
	if len(d.buf)%aes.BlockSize == 0 {
		n -= aes.BlockSize
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]byte, n)
	d.mode.CryptBlocks(out, d.buf[:n])
	d.buf = append(d.buf[:0], d.buf[n:]...)
	return out, nil
}

// Final decrypts the withheld block and strips the padding.
func (d *Decryptor) Final() ([]byte, error) {
	if d.finalized {
		return nil, ErrCipherFinalized
	}
	d.finalized = true
	if len(d.buf) != aes.BlockSize {
		return nil, ErrBadCiphertext
	}
	out := make([]byte, aes.BlockSize)
	d.mode.CryptBlocks(out, d.buf)
	d.buf = nil
	pad := int(out[aes.BlockSize-1])
	if pad < 1 || pad > aes.BlockSize {
		return nil, ErrBadPadding
	}
	for _, b := range out[aes.BlockSize-pad:] {
		if int(b) != pad {
			return nil, ErrBadPadding
		}
	}
	return out[:aes.BlockSize-pad], nil
}
