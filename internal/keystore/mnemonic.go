// Mnemonic backup/restore — a supplemented feature (SPEC_FULL.md) that
// is not part of spec.md's raw-hex export/import but does not change its
// semantics either. Grounded on the teacher's
// src/chainadapter/keysource_impl.go MnemonicKeySource, which derives an
// Ethereum key at a BIP44 path via go-bip39 + go-bip32 and converts it
// with go-ethereum's crypto.ToECDSA.
package keystore

import (
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/arcpay/voicewallet/internal/walleterr"
)

// ethereumDerivationPathIndices is the fixed BIP44 path for this wallet's
// single managed key: m/44'/60'/0'/0/0.
var ethereumDerivationPathIndices = []uint32{
	44 + bip32.FirstHardenedChild,
	60 + bip32.FirstHardenedChild,
	0 + bip32.FirstHardenedChild,
	0,
	0,
}

// NewMnemonic generates a fresh 12-word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeRNGFailed, "failed to generate entropy", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", walleterr.Wrap(walleterr.CodeRNGFailed, "failed to encode mnemonic", err)
	}
	return mnemonic, nil
}

// secretKeyFromMnemonic derives the secp256k1 scalar at
// m/44'/60'/0'/0/0 from a BIP-39 mnemonic and optional passphrase.
func secretKeyFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, walleterr.New(walleterr.CodeInvalidKey, "invalid BIP-39 mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)

	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeInvalidKey, "failed to derive master key", err)
	}
	for _, index := range ethereumDerivationPathIndices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.CodeInvalidKey, "failed to derive child key", err)
		}
	}
	return key.Key, nil
}

// ExportMnemonic is not implementable: a mnemonic is an alternate
// representation of entropy the wallet never stored (this keystore holds
// only the raw secp256k1 scalar, not the BIP-39 seed it might have come
// from). Wallets provisioned via CreateFromMnemonic or ImportMnemonic
// keep the phrase only where their owner wrote it down; this
// keystore intentionally does not attempt to reverse a scalar back into
// a mnemonic.

// ImportMnemonic restores the managed key from a BIP-39 mnemonic phrase,
// deriving the fixed Ethereum path m/44'/60'/0'/0/0. This supplements,
// and does not replace, ImportHex.
func (k *Keystore) ImportMnemonic(mnemonic, passphrase string) ([20]byte, error) {
	secretKey, err := secretKeyFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return [20]byte{}, err
	}
	defer clearBytes(secretKey)
	return k.Restore(secretKey)
}

// CreateFromMnemonic generates a fresh mnemonic, derives its key, and
// provisions the keystore with it, returning both the phrase (for the
// user to record) and the resulting address. The phrase is not retained
// by the keystore.
func (k *Keystore) CreateFromMnemonic(passphrase string) (mnemonic string, address [20]byte, err error) {
	if exists, existsErr := k.existsAnywhere(); existsErr != nil {
		return "", [20]byte{}, existsErr
	} else if exists {
		return "", [20]byte{}, walleterr.New(walleterr.CodeInvalidState, "a wallet already exists")
	}
	mnemonic, err = NewMnemonic()
	if err != nil {
		return "", [20]byte{}, err
	}
	address, err = k.ImportMnemonic(mnemonic, passphrase)
	if err != nil {
		return "", [20]byte{}, err
	}
	return mnemonic, address, nil
}
