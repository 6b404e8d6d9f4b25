package keystore

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arcpay/voicewallet/internal/cryptoprim"
)

func hexEncodePrefixed(secretKey []byte) string {
	return "0x" + hex.EncodeToString(secretKey)
}

func hexDecodePrefixed(hexKey string) ([]byte, error) {
	trimmed := strings.TrimPrefix(hexKey, "0x")
	trimmed = strings.TrimPrefix(trimmed, "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, err
	}
	if len(decoded) != cryptoprim.PrivateKeySize {
		return nil, fmt.Errorf("private key must decode to %d bytes, got %d", cryptoprim.PrivateKeySize, len(decoded))
	}
	return decoded, nil
}
