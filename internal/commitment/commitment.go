// Package commitment implements the hash commitment scheme used for sealed
// bids. A bidder commits to Keccak256("amount:nonce") before the bidding
// deadline and opens the commitment by disclosing (amount, nonce) during the
// reveal window.
//
// Verification is pure and deterministic: a mismatch is an ordinary false
// result, never an error.
package commitment

import (
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Compute returns the hex-encoded Keccak256 commitment for (amount, nonce).
// The amount is hashed in its canonical decimal string form, so 1.50 and 1.5
// produce the same commitment.
func Compute(amount decimal.Decimal, nonce string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(amount.String()))
	h.Write([]byte{':'})
	h.Write([]byte(nonce))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the commitment from (amount, nonce) and compares it to
// the stored commitment. The 0x prefix is optional and hex digits compare
// case-insensitively.
func Verify(stored string, amount decimal.Decimal, nonce string) bool {
	if stored == "" {
		return false
	}
	want := strings.TrimPrefix(Compute(amount, nonce), "0x")
	got := strings.TrimPrefix(strings.TrimPrefix(stored, "0x"), "0X")
	return strings.EqualFold(got, want)
}
