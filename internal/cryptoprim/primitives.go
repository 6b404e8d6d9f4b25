// Package cryptoprim implements the three pure primitives the wallet
// engine is built on: Keccak-256, secp256k1 address derivation, and
// recoverable ECDSA signing (spec.md §4.1).
//
// Grounded on the teacher's src/chainadapter/ethereum/{signer,derive}.go,
// which wraps go-ethereum's crypto package rather than hand-rolling
// Keccak-f[1600] or the secp256k1 field arithmetic — go-ethereum's
// crypto.Keccak256 is the original Keccak (padding 0x01), not the NIST
// SHA3-256 variant, which is exactly the distinction spec.md §4.1 warns
// about.
package cryptoprim

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/arcpay/voicewallet/internal/walleterr"
)

// PrivateKeySize is the fixed size of a secp256k1 scalar in bytes.
const PrivateKeySize = 32

// AddressSize is the fixed size of an Ethereum-style address in bytes.
const AddressSize = 20

// Keccak256 returns the original (pre-standardization) Keccak-256 digest
// of data. This is the Ethereum hash, not SHA3-256.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// DeriveAddress derives the 20-byte address controlled by secretKey:
// uncompressed pubkey (65B) -> drop the 0x04 prefix -> keccak256 over the
// remaining 64 bytes -> last 20 bytes.
func DeriveAddress(secretKey []byte) ([20]byte, error) {
	priv, err := toECDSA(secretKey)
	if err != nil {
		return [20]byte{}, err
	}
	addr := crypto.PubkeyToAddress(priv.PublicKey)
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out, nil
}

// UncompressedPubkey returns the 65-byte 0x04||X||Y public key for
// secretKey.
func UncompressedPubkey(secretKey []byte) ([]byte, error) {
	priv, err := toECDSA(secretKey)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(&priv.PublicKey), nil
}

// SignRecoverable produces a recoverable ECDSA signature over hash (which
// must already be the 32-byte digest to sign — secp256k1 libraries that
// internally hash their input again are not suitable here, per spec.md
// §4.1). Returns r, s (each 32 bytes, big-endian) and a 0/1 recovery id.
func SignRecoverable(hash, secretKey []byte) (r, s [32]byte, recoveryID byte, err error) {
	if len(hash) != 32 {
		return r, s, 0, walleterr.New(walleterr.CodeSigningFailed, "hash must be 32 bytes")
	}
	priv, convErr := toECDSA(secretKey)
	if convErr != nil {
		return r, s, 0, convErr
	}
	sig, sigErr := crypto.Sign(hash, priv)
	if sigErr != nil {
		return r, s, 0, walleterr.Wrap(walleterr.CodeSigningFailed, "secp256k1 sign failed", sigErr)
	}
	// crypto.Sign returns 65 bytes: R(32) || S(32) || V(1), V in {0,1}.
	copy(r[:], sig[0:32])
	copy(s[:], sig[32:64])
	return r, s, sig[64], nil
}

// RecoverPubkey recovers the 65-byte uncompressed public key from a
// signature (r, s, recoveryID) over hash.
func RecoverPubkey(hash []byte, r, s [32]byte, recoveryID byte) ([]byte, error) {
	sig := make([]byte, 65)
	copy(sig[0:32], r[:])
	copy(sig[32:64], s[:])
	sig[64] = recoveryID
	pub, err := crypto.Ecrecover(hash, sig)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeSigningFailed, "public key recovery failed", err)
	}
	return pub, nil
}

// toECDSA validates and parses a 32-byte secret scalar, failing closed on
// k == 0 or k >= curve order per spec.md §4.1.
func toECDSA(secretKey []byte) (*ecdsa.PrivateKey, error) {
	if len(secretKey) != PrivateKeySize {
		return nil, walleterr.New(walleterr.CodeInvalidKey, "private key must be 32 bytes")
	}
	priv, err := crypto.ToECDSA(secretKey)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.CodeInvalidKey, "invalid secp256k1 scalar", err)
	}
	return priv, nil
}
