package keystore

import (
	"errors"

	"github.com/99designs/keyring"
)

// OSBackend stores the key in the platform's real secret store (macOS
// Keychain, Windows Credential Manager, Linux Secret Service) via
// github.com/99designs/keyring, the C3 primary backend named in
// SPEC_FULL.md's domain stack table.
type OSBackend struct {
	ring keyring.Keyring
}

// NewOSBackend opens the OS keyring under serviceName (the
// Config.KeystoreNamespace value).
func NewOSBackend(serviceName string) (*OSBackend, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		KeychainTrustApplication: true,
		FileDir:                  "", // unused unless the file backend is selected by the library itself
	})
	if err != nil {
		return nil, err
	}
	return &OSBackend{ring: ring}, nil
}

func (b *OSBackend) Save(name string, secretKey []byte) error {
	return b.ring.Set(keyring.Item{
		Key:         name,
		Data:        secretKey,
		Label:       "voicewallet signing key",
		Description: "on-device EVM wallet key managed by voicewallet",
	})
}

func (b *OSBackend) Load(name string) ([]byte, error) {
	item, err := b.ring.Get(name)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, errNotFound
		}
		return nil, err
	}
	return item.Data, nil
}

func (b *OSBackend) Delete(name string) error {
	err := b.ring.Remove(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *OSBackend) Exists(name string) (bool, error) {
	_, err := b.ring.Get(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

var errNotFound = errors.New("keystore: entry not found")
