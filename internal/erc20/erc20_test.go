package erc20

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEncodeTransfer_HasExpectedSelector(t *testing.T) {
	token := New(nil, common.HexToAddress("0x1"))
	data, err := token.EncodeTransfer(common.HexToAddress("0x2"), big.NewInt(1_000_000))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 4)
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, data[:4])
}

func TestEncodeApprove_HasExpectedSelector(t *testing.T) {
	token := New(nil, common.HexToAddress("0x1"))
	data, err := token.EncodeApprove(common.HexToAddress("0x2"), big.NewInt(1_000_000))
	require.NoError(t, err)
	require.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, data[:4])
}

func TestAddress_ReturnsBoundContract(t *testing.T) {
	contract := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	token := New(nil, contract)
	require.Equal(t, contract, token.Address())
}
