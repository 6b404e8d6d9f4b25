// Package txcodec implements the canonical RLP encoding of the legacy
// EIP-155 transaction (spec.md §3, §4.2). Rather than hand-rolling RLP's
// length-prefix and leading-zero-stripping rules, this wraps
// go-ethereum's rlp package the way the teacher's
// src/chainadapter/ethereum/builder.go wraps go-ethereum's types package
// for the rest of the transaction lifecycle — it is the same ecosystem
// codec go-ethereum's own types.LegacyTx uses internally, here applied
// directly to the 9-field signing and signed payloads spec.md describes.
package txcodec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Fields are the transaction fields that are identical between the
// pre-signing payload and the final signed transaction (spec.md §3).
type Fields struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
}

// signingPayload is the RLP list (nonce, gasPrice, gasLimit, to, value,
// data, chainId, 0, 0) signed before a signature exists (spec.md §3).
type signingPayload struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	R0       *big.Int
	S0       *big.Int
}

// signedTx is the final 9-tuple (nonce, gasPrice, gasLimit, to, value,
// data, v, r, s) broadcast to the network (spec.md §3, §4.6 step 7).
type signedTx struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	To       common.Address
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// EncodeSigningPayload produces the exact bytes that must be Keccak-256
// hashed and signed (spec.md §3, §4.6 steps 4-5). big.Int fields
// (gasPrice, value, and the trailing chainId/0/0) are encoded with
// go-ethereum's rlp package, which strips leading zero bytes and encodes
// zero as the empty string per canonical RLP — the "mandatory" rule in
// spec.md §4.2.
func EncodeSigningPayload(f Fields, chainID *big.Int) ([]byte, error) {
	return rlp.EncodeToBytes(&signingPayload{
		Nonce:    f.Nonce,
		GasPrice: f.GasPrice,
		GasLimit: f.GasLimit,
		To:       f.To,
		Value:    f.Value,
		Data:     f.Data,
		ChainID:  chainID,
		R0:       new(big.Int),
		S0:       new(big.Int),
	})
}

// EncodeSigned produces the final broadcastable RLP-encoded transaction
// given the recoverable signature's v, r, s (spec.md §4.6 step 7).
func EncodeSigned(f Fields, v, r, s *big.Int) ([]byte, error) {
	return rlp.EncodeToBytes(&signedTx{
		Nonce:    f.Nonce,
		GasPrice: f.GasPrice,
		GasLimit: f.GasLimit,
		To:       f.To,
		Value:    f.Value,
		Data:     f.Data,
		V:        v,
		R:        r,
		S:        s,
	})
}

// DecodeSigned parses a fully signed, RLP-encoded transaction back into
// its fields, used by the round-trip testable property in spec.md §8.
func DecodeSigned(raw []byte) (Fields, *big.Int, *big.Int, *big.Int, error) {
	var tx signedTx
	if err := rlp.DecodeBytes(raw, &tx); err != nil {
		return Fields{}, nil, nil, nil, err
	}
	return Fields{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
	}, tx.V, tx.R, tx.S, nil
}
