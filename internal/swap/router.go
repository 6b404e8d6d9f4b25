package swap

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// commandExactInputSingle is the single-byte Universal Router opcode
// this planner emits; spec.md §4.8 step 6 names only this one command
// (exact-input single-hop swap), never a multi-hop path.
const commandExactInputSingle byte = 0x10

const executeABI = `[
	{
		"inputs": [
			{"name": "commands", "type": "bytes"},
			{"name": "inputs", "type": "bytes[]"},
			{"name": "deadline", "type": "uint256"}
		],
		"name": "execute",
		"outputs": [],
		"type": "function"
	}
]`

// exactInputSingleInput is the tuple this planner encodes as the single
// element of Universal Router's inputs[] for the exact-input-single
// command: pool key, direction, exact amount in, minimum amount out,
// the swap's ultimate recipient, and an empty hook payload.
type exactInputSingleInput struct {
	PoolKey      PoolKey
	ZeroForOne   bool
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Recipient    common.Address
	HookData     []byte
}

var (
	parsedExecute                abi.ABI
	exactInputSingleInputArgument abi.Arguments
)

func init() {
	var err error
	parsedExecute, err = abi.JSON(strings.NewReader(executeABI))
	if err != nil {
		panic("swap: invalid execute ABI: " + err.Error())
	}

	inputType, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "currency0", Type: "address"},
			{Name: "currency1", Type: "address"},
			{Name: "fee", Type: "uint24"},
			{Name: "tickSpacing", Type: "int24"},
			{Name: "hooks", Type: "address"},
		}},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "amountOutMin", Type: "uint256"},
		{Name: "recipient", Type: "address"},
		{Name: "hookData", Type: "bytes"},
	})
	if err != nil {
		panic("swap: invalid exact-input-single input type: " + err.Error())
	}
	exactInputSingleInputArgument = abi.Arguments{{Type: inputType}}
}

// encodeExactInputSingleExecute builds the calldata for
// execute(commands, inputs, deadline): a single command byte plus its
// matching ABI-encoded input tuple (spec.md §4.8 step 6).
func encodeExactInputSingleExecute(key PoolKey, zeroForOne bool, amountIn, minAmountOut *big.Int, recipient common.Address, deadline *big.Int) ([]byte, error) {
	encodedInput, err := exactInputSingleInputArgument.Pack(exactInputSingleInput{
		PoolKey:      key,
		ZeroForOne:   zeroForOne,
		AmountIn:     amountIn,
		AmountOutMin: minAmountOut,
		Recipient:    recipient,
		HookData:     []byte{},
	})
	if err != nil {
		return nil, err
	}

	commands := []byte{commandExactInputSingle}
	inputs := [][]byte{encodedInput}

	return parsedExecute.Pack("execute", commands, inputs, deadline)
}
