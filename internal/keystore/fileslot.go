// File fallback backend: Argon2id + AES-256-GCM at-rest encryption,
// adapted from the teacher's internal/services/crypto/encryption.go.
// Used as the local slot when cmd/voicewallet is run with
// VOICEWALLET_KEYSTORE_DIR set (headless serve deployments, CI) and in
// tests, and as the backend for enableCloudSync's exported slot
// (spec.md §4.3).
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time    = 4
	argon2Memory  = 256 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
	aesNonceLen   = 12
	fileFormatVersion = 1
)

// FileBackend encrypts each entry with a password-derived key and stores
// it as one file per entry under dir.
type FileBackend struct {
	dir      string
	password []byte
}

// NewFileBackend creates a FileBackend rooted at dir, encrypting entries
// with password. The caller owns the lifetime of password and should
// clear it after constructing the backend if it was read from a
// transient source.
func NewFileBackend(dir string, password []byte) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keystore directory: %w", err)
	}
	owned := make([]byte, len(password))
	copy(owned, password)
	return &FileBackend{dir: dir, password: owned}, nil
}

func (b *FileBackend) path(name string) string {
	return filepath.Join(b.dir, name+".dat")
}

func (b *FileBackend) Save(name string, secretKey []byte) error {
	blob, err := encrypt(secretKey, b.password)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path(name), blob, 0o600)
}

func (b *FileBackend) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(b.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNotFound
		}
		return nil, err
	}
	return decrypt(data, b.password)
}

func (b *FileBackend) Delete(name string) error {
	err := os.Remove(b.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (b *FileBackend) Exists(name string) (bool, error) {
	_, err := os.Stat(b.path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// encrypt serializes [version:1][salt:16][nonce:12][ciphertext+tag] using
// an Argon2id-derived AES-256-GCM key, matching the teacher's
// SerializeEncryptedData layout (minus the Argon2 parameter fields, which
// this module fixes rather than storing per-blob).
func encrypt(plaintext, password []byte) ([]byte, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aesNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 1+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, fileFormatVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

func decrypt(blob, password []byte) ([]byte, error) {
	minSize := 1 + argon2SaltLen + aesNonceLen
	if len(blob) < minSize {
		return nil, errors.New("keystore: encrypted blob too short")
	}
	version := blob[0]
	if version != fileFormatVersion {
		return nil, fmt.Errorf("keystore: unsupported file format version %d", version)
	}
	offset := 1
	salt := blob[offset : offset+argon2SaltLen]
	offset += argon2SaltLen
	nonce := blob[offset : offset+aesNonceLen]
	offset += aesNonceLen
	ciphertext := blob[offset:]

	key := argon2.IDKey(password, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("keystore: authentication failed, wrong password or corrupted data")
	}
	return plaintext, nil
}
