package cryptoprim

import (
	"crypto/rand"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	for {
		k := make([]byte, 32)
		_, err := rand.Read(k)
		require.NoError(t, err)
		if _, err := DeriveAddress(k); err == nil {
			return k
		}
	}
}

func TestDeriveAddress_MatchesReference(t *testing.T) {
	for i := 0; i < 1000; i++ {
		key := randomKey(t)

		got, err := DeriveAddress(key)
		require.NoError(t, err)

		priv, err := crypto.ToECDSA(key)
		require.NoError(t, err)
		want := crypto.PubkeyToAddress(priv.PublicKey)

		require.Equal(t, want.Bytes(), got[:])
	}
}

func TestSignRecoverable_RecoversSamePubkey(t *testing.T) {
	key := randomKey(t)
	hash := Keccak256([]byte("payment intent"))

	r, s, v, err := SignRecoverable(hash, key)
	require.NoError(t, err)

	pub, err := RecoverPubkey(hash, r, s, v)
	require.NoError(t, err)

	want, err := UncompressedPubkey(key)
	require.NoError(t, err)
	require.Equal(t, want, pub)
}

func TestSignRecoverable_RejectsShortHash(t *testing.T) {
	key := randomKey(t)
	_, _, _, err := SignRecoverable([]byte{1, 2, 3}, key)
	require.Error(t, err)
}

func TestDeriveAddress_RejectsZeroKey(t *testing.T) {
	_, err := DeriveAddress(make([]byte, 32))
	require.Error(t, err)
}

func TestDeriveAddress_RejectsWrongLength(t *testing.T) {
	_, err := DeriveAddress(make([]byte, 31))
	require.Error(t, err)
}

func TestKeccak256_IsNotSHA3(t *testing.T) {
	// The empty-input Keccak-256 (original padding) digest is a
	// well-known constant distinct from the NIST SHA3-256 empty digest.
	got := Keccak256([]byte{})
	const wantHex = "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
	require.Equal(t, wantHex[:64], hexEncode(got))
}

func hexEncode(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0x0f]
	}
	return string(out)
}
