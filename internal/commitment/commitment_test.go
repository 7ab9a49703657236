package commitment_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lvr-auction-hook/auction-engine/internal/commitment"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestComputeIsDeterministic(t *testing.T) {
	a := commitment.Compute(d(1.5), "nonce-1")
	b := commitment.Compute(d(1.5), "nonce-1")
	if a != b {
		t.Errorf("same inputs produced different commitments: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "0x") || len(a) != 66 {
		t.Errorf("expected 0x-prefixed 32-byte hex digest, got %q", a)
	}
}

func TestComputeCanonicalAmount(t *testing.T) {
	// 1.50 and 1.5 are the same value and must commit identically.
	a, _ := decimal.NewFromString("1.50")
	b, _ := decimal.NewFromString("1.5")
	if commitment.Compute(a, "n") != commitment.Compute(b, "n") {
		t.Error("equal amounts with different representations produced different commitments")
	}
}

func TestVerifyMatch(t *testing.T) {
	c := commitment.Compute(d(0.25), "secret")
	if !commitment.Verify(c, d(0.25), "secret") {
		t.Error("valid opening rejected")
	}
}

func TestVerifyPrefixAndCase(t *testing.T) {
	c := commitment.Compute(d(0.25), "secret")
	bare := strings.TrimPrefix(c, "0x")

	if !commitment.Verify(bare, d(0.25), "secret") {
		t.Error("commitment without 0x prefix rejected")
	}
	if !commitment.Verify("0x"+strings.ToUpper(bare), d(0.25), "secret") {
		t.Error("upper-case hex commitment rejected")
	}
}

func TestVerifyMismatch(t *testing.T) {
	c := commitment.Compute(d(0.25), "secret")

	cases := []struct {
		name   string
		amount decimal.Decimal
		nonce  string
	}{
		{"wrong amount", d(0.26), "secret"},
		{"wrong nonce", d(0.25), "other"},
		{"both wrong", d(1), "other"},
	}
	for _, tc := range cases {
		if commitment.Verify(c, tc.amount, tc.nonce) {
			t.Errorf("%s: invalid opening accepted", tc.name)
		}
	}
}

func TestVerifyEmptyCommitment(t *testing.T) {
	if commitment.Verify("", d(1), "n") {
		t.Error("empty commitment must never verify")
	}
}
