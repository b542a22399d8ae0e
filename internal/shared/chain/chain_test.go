package chain

import (
	"strings"
	"testing"
)

func TestParseAddressAcceptsPrefixedAndBareHex(t *testing.T) {
	prefixed, err := ParseAddress("0x00000000000000000000000000000000000000ff")
	if err != nil {
		t.Fatalf("prefixed parse failed: %v", err)
	}
	bare, err := ParseAddress("00000000000000000000000000000000000000ff")
	if err != nil {
		t.Fatalf("bare parse failed: %v", err)
	}
	if prefixed != bare {
		t.Fatalf("prefixed and bare forms must parse identically")
	}
	if prefixed[AddressLen-1] != 0xff {
		t.Fatalf("unexpected byte content: %x", prefixed)
	}
}

func TestParseAddressRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"0x",
		"0xzz000000000000000000000000000000000000zz",
		"0x00ff", // too short
		"0x" + strings.Repeat("ab", 32), // digest width, not address width
	}
	for _, raw := range cases {
		if _, err := ParseAddress(raw); err != ErrInvalidAddress {
			t.Fatalf("input %q: expected ErrInvalidAddress, got %v", raw, err)
		}
	}
}

func TestParseDigestRejectsAddressWidth(t *testing.T) {
	if _, err := ParseDigest("0x" + strings.Repeat("ab", 20)); err != ErrInvalidDigest {
		t.Fatalf("expected ErrInvalidDigest, got %v", err)
	}
}

func TestDigestHexRoundTrip(t *testing.T) {
	var digest Digest
	digest[0] = 0xde
	digest[DigestLen-1] = 0x01

	parsed, err := ParseDigest(digest.Hex())
	if err != nil {
		t.Fatalf("round-trip parse failed: %v", err)
	}
	if parsed != digest {
		t.Fatalf("round trip changed the digest: %s vs %s", parsed.Hex(), digest.Hex())
	}
	if !strings.HasPrefix(digest.Hex(), "0x") {
		t.Fatalf("Hex must emit the 0x prefix")
	}
}

func TestAddressTextMarshalling(t *testing.T) {
	addr, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	text, err := addr.MarshalText()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded Address
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != addr {
		t.Fatalf("text round trip changed the address")
	}
}

func TestIsZero(t *testing.T) {
	var addr Address
	if !addr.IsZero() {
		t.Fatalf("zero address must report IsZero")
	}
	addr[0] = 1
	if addr.IsZero() {
		t.Fatalf("non-zero address must not report IsZero")
	}
}
