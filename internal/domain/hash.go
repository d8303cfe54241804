package domain

import (
	"fmt"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// TransferHash derives the reference hash recorded on a Transaction. It is a
// Keccak-256 digest over the canonical transfer fields, hex encoded with a
// 0x prefix, so identical inputs always produce the same reference.
func TransferHash(itemID, sellerID, buyerID int64, price decimal.Decimal, currency string, at time.Time) string {
	canonical := fmt.Sprintf("transfer|%d|%d|%d|%s|%s|%d",
		itemID, sellerID, buyerID, price.String(), currency, at.UTC().UnixNano())
	return ethcrypto.Keccak256Hash([]byte(canonical)).Hex()
}

// MintHash derives the simulated mint receipt hash of a new item.
func MintHash(creatorID int64, name string, at time.Time) string {
	canonical := fmt.Sprintf("mint|%d|%s|%d", creatorID, name, at.UTC().UnixNano())
	return ethcrypto.Keccak256Hash([]byte(canonical)).Hex()
}
