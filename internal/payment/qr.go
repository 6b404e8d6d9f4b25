package payment

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arcpay/voicewallet/internal/walleterr"
)

var bareAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// erc681AddressPattern matches ethereum:<address>@<chainId>?... ; the bespoke
// format omits the @<chainId> segment entirely, so the two are
// distinguished by presence of "@" before any "?".
var erc681AddressPattern = regexp.MustCompile(`^ethereum:(0x[a-fA-F0-9]{40})@(\d+)(\?.*)?$`)
var bespokeAddressPattern = regexp.MustCompile(`^ethereum:(0x[a-fA-F0-9]{40})(\?.*)?$`)

// qrPayload is what scanning a QR code yields: a merchant address and,
// optionally, an amount the merchant encoded directly.
type qrPayload struct {
	Address   common.Address
	AmountUSD *float64
}

// parseQRPayload accepts the union of QR formats actually seen in the
// field (spec.md §6, SPEC_FULL.md Open Question decision): a bare
// address, ERC-681, or a bespoke ethereum: URI missing the chain-id
// segment. The first pattern that matches wins, tried in that order.
// When both "amount" (USDC, decimal) and "value" (native wei) are
// present, "amount" takes precedence since the flow's unit of account
// is USDC.
func parseQRPayload(raw string) (qrPayload, error) {
	raw = strings.TrimSpace(raw)

	if bareAddressPattern.MatchString(raw) {
		return qrPayload{Address: common.HexToAddress(raw)}, nil
	}

	if m := erc681AddressPattern.FindStringSubmatch(raw); m != nil {
		return parseEthereumURIMatch(raw, m[1], m[3])
	}

	if m := bespokeAddressPattern.FindStringSubmatch(raw); m != nil {
		return parseEthereumURIMatch(raw, m[1], m[2])
	}

	return qrPayload{}, walleterr.New(walleterr.CodeInvalidAddress, "QR payload did not match any recognized format")
}

func parseEthereumURIMatch(raw, addressHex, queryPart string) (qrPayload, error) {
	payload := qrPayload{Address: common.HexToAddress(addressHex)}
	if queryPart == "" {
		return payload, nil
	}

	values, err := url.ParseQuery(strings.TrimPrefix(queryPart, "?"))
	if err != nil {
		return qrPayload{}, walleterr.Wrap(walleterr.CodeInvalidAddress, "malformed QR query string", err)
	}

	if amountStr := values.Get("amount"); amountStr != "" {
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			return qrPayload{}, walleterr.Wrap(walleterr.CodeInvalidAmount, "malformed amount in QR payload", err)
		}
		payload.AmountUSD = &amount
		return payload, nil
	}

	// "value" (native wei) is accepted but ignored: this flow's unit of
	// account is USDC, and no price oracle is wired to convert it here.
	return payload, nil
}
