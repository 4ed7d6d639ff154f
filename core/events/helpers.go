package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// formatAddress renders addresses lower-cased so indexers can match on the
// attribute value without checksum normalisation.
func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
