// Package keystore implements the Secure Keystore component: creation,
// cloud-first restore, hex export/import, a dual-slot cloud-sync
// backend, and deletion of the single secp256k1 signing key (spec.md
// §4.3).
//
// Grounded on the teacher's src/chainadapter/{keysource.go,signer.go}
// interfaces (KeySource/Signer abstractions that never leak key material
// across a boundary) and its KeySourceType enum shape, re-keyed to a
// single-key EVM wallet: there is exactly one managed key, not an
// arbitrary BIP44 tree of addresses.
package keystore

import (
	"crypto/rand"
	"errors"

	"github.com/arcpay/voicewallet/internal/cryptoprim"
	"github.com/arcpay/voicewallet/internal/walleterr"
)

// Backend persists and retrieves the raw 32-byte secret key. Two
// implementations exist: OSBackend (the OS secret store, via
// github.com/99designs/keyring) and FileBackend (Argon2id+AES-GCM file
// fallback), mirroring the teacher's KeySource abstraction that hides
// the storage mechanism behind an interface Sign/derive callers never
// see through.
type Backend interface {
	// Save persists secretKey under name, overwriting any existing entry.
	Save(name string, secretKey []byte) error
	// Load retrieves the secret key stored under name.
	Load(name string) ([]byte, error)
	// Delete removes the entry stored under name.
	Delete(name string) error
	// Exists reports whether an entry is stored under name.
	Exists(name string) (bool, error)
}

// Keystore manages the wallet's single signing key across two slots
// (spec.md §4.3): local, a this-device-only, non-exportable slot
// written by Create, and cloud, an optional device-portable slot
// enabled later via EnableCloudSync. Reads prefer cloud over local so a
// restore on a fresh device picks up a previously synced key; cloud is
// nil until a cloud backend is configured, in which case the wallet
// stays local-only for its whole lifetime.
type Keystore struct {
	local    Backend
	cloud    Backend
	slotName string
}

// New constructs a local-only Keystore persisting to slotName via
// local. Call SetCloudBackend to enable the cloud-sync slot.
func New(local Backend, slotName string) *Keystore {
	return &Keystore{local: local, slotName: slotName}
}

// SetCloudBackend wires the device-portable, cloud-synced slot. Without
// it, EnableCloudSync fails and reads never consult anything but local.
func (k *Keystore) SetCloudBackend(cloud Backend) {
	k.cloud = cloud
}

// existsAnywhere reports whether a key is provisioned in either slot,
// checking cloud first to match the precedence load() uses.
func (k *Keystore) existsAnywhere() (bool, error) {
	if k.cloud != nil {
		exists, err := k.cloud.Exists(k.slotName)
		if err != nil {
			return false, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query cloud-synced keystore", err)
		}
		if exists {
			return true, nil
		}
	}
	exists, err := k.local.Exists(k.slotName)
	if err != nil {
		return false, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query keystore", err)
	}
	return exists, nil
}

// Create generates a fresh secp256k1 key with crypto/rand, rejecting
// weak output the same way cryptoprim.DeriveAddress fails closed on k==0
// (spec.md §4.1, §4.3), and writes it to the local-only slot. Returns
// the derived address.
func (k *Keystore) Create() ([20]byte, error) {
	if exists, err := k.existsAnywhere(); err != nil {
		return [20]byte{}, err
	} else if exists {
		return [20]byte{}, walleterr.New(walleterr.CodeInvalidState, "a wallet already exists")
	}

	for attempt := 0; attempt < 8; attempt++ {
		candidate := make([]byte, cryptoprim.PrivateKeySize)
		if _, err := rand.Read(candidate); err != nil {
			return [20]byte{}, walleterr.Wrap(walleterr.CodeRNGFailed, "failed to read randomness", err)
		}
		addr, err := cryptoprim.DeriveAddress(candidate)
		if err != nil {
			continue
		}
		if err := k.local.Save(k.slotName, candidate); err != nil {
			return [20]byte{}, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to persist new key", err)
		}
		return addr, nil
	}
	return [20]byte{}, walleterr.New(walleterr.CodeRNGFailed, "failed to generate a valid key after repeated attempts")
}

// Restore overwrites the managed key from externally supplied bytes
// (used by ImportHex and ImportMnemonic), writing it to the local-only
// slot. Any stale cloud-synced copy from a previously provisioned key is
// cleared first, so a later read does not resurrect it ahead of the
// freshly restored key. Returns the derived address.
func (k *Keystore) Restore(secretKey []byte) ([20]byte, error) {
	addr, err := cryptoprim.DeriveAddress(secretKey)
	if err != nil {
		return [20]byte{}, err
	}
	if k.cloud != nil {
		if err := k.cloud.Delete(k.slotName); err != nil {
			return [20]byte{}, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to clear cloud-synced slot", err)
		}
	}
	if err := k.local.Save(k.slotName, secretKey); err != nil {
		return [20]byte{}, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to persist restored key", err)
	}
	return addr, nil
}

// EnableCloudSync moves the managed key from the local-only slot to the
// device-portable cloud-synced slot, deleting the local copy once the
// cloud write succeeds (spec.md §4.3). Idempotent: calling it again once
// the key is already cloud-synced is a no-op.
func (k *Keystore) EnableCloudSync() error {
	if k.cloud == nil {
		return walleterr.New(walleterr.CodeInvalidState, "no cloud-sync backend is configured")
	}

	synced, err := k.cloud.Exists(k.slotName)
	if err != nil {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query cloud-synced keystore", err)
	}
	if synced {
		return nil
	}

	localExists, err := k.local.Exists(k.slotName)
	if err != nil {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query local keystore", err)
	}
	if !localExists {
		return walleterr.New(walleterr.CodeNoWallet, "no wallet is provisioned")
	}

	secretKey, err := k.local.Load(k.slotName)
	if err != nil {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to load local key", err)
	}
	defer clearBytes(secretKey)

	if err := k.cloud.Save(k.slotName, secretKey); err != nil {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to persist cloud-synced key", err)
	}
	if err := k.local.Delete(k.slotName); err != nil {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to delete local key after cloud sync", err)
	}
	return nil
}

// Address returns the address controlled by the managed key without
// exposing key material, per the teacher's Signer.GetAddress contract.
func (k *Keystore) Address() ([20]byte, error) {
	secretKey, err := k.load()
	if err != nil {
		return [20]byte{}, err
	}
	return cryptoprim.DeriveAddress(secretKey)
}

// Sign signs hash with the managed key, matching the teacher's
// Signer.Sign contract: callers never see the key itself.
func (k *Keystore) Sign(hash []byte) (r, s [32]byte, recoveryID byte, err error) {
	secretKey, err := k.load()
	if err != nil {
		return r, s, 0, err
	}
	return cryptoprim.SignRecoverable(hash, secretKey)
}

// ExportHex returns the managed key as a 0x-prefixed hex string
// (spec.md §4.3). This is an explicit, user-initiated operation; callers
// must audit-log it (internal/audit.OpWalletExport).
func (k *Keystore) ExportHex() (string, error) {
	secretKey, err := k.load()
	if err != nil {
		return "", err
	}
	return hexEncodePrefixed(secretKey), nil
}

// ImportHex restores the managed key from a 0x-prefixed hex string.
func (k *Keystore) ImportHex(hexKey string) ([20]byte, error) {
	secretKey, err := hexDecodePrefixed(hexKey)
	if err != nil {
		return [20]byte{}, walleterr.Wrap(walleterr.CodeInvalidKey, "malformed hex private key", err)
	}
	return k.Restore(secretKey)
}

// Delete removes the managed key from both the local and cloud-synced
// slots (spec.md §4.3), joining errors from both attempts rather than
// stopping after the first.
func (k *Keystore) Delete() error {
	var errs []error
	if k.cloud != nil {
		if err := k.cloud.Delete(k.slotName); err != nil {
			errs = append(errs, err)
		}
	}
	if err := k.local.Delete(k.slotName); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to delete key", errors.Join(errs...))
	}
	return nil
}

// HasWallet reports whether a key is currently provisioned, in either
// slot.
func (k *Keystore) HasWallet() (bool, error) {
	return k.existsAnywhere()
}

// load reads the managed key, preferring the cloud-synced slot over the
// local-only one (spec.md §4.3: restore reads the cloud-synced slot
// first, falling back to local), so a device that never ran Create
// locally still finds a previously cloud-synced key.
func (k *Keystore) load() ([]byte, error) {
	if k.cloud != nil {
		exists, err := k.cloud.Exists(k.slotName)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query cloud-synced keystore", err)
		}
		if exists {
			secretKey, err := k.cloud.Load(k.slotName)
			if err != nil {
				return nil, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to load cloud-synced key", err)
			}
			return secretKey, nil
		}
	}

	exists, err := k.local.Exists(k.slotName)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to query keystore", err)
	}
	if !exists {
		return nil, walleterr.New(walleterr.CodeNoWallet, "no wallet is provisioned")
	}
	secretKey, err := k.local.Load(k.slotName)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeKeystoreIO, "failed to load key", err)
	}
	return secretKey, nil
}
