package chain

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Package chain holds the fixed-width identifier primitives shared by the
// commitment and settlement contexts. Align widths with the on-chain contract.

const (
	AddressLen = 20
	DigestLen  = 32
)

var (
	ErrInvalidAddress = errors.New("address must be 20 hex-encoded bytes")
	ErrInvalidDigest  = errors.New("digest must be 32 hex-encoded bytes")
)

// Address is a 20-byte account identifier.
type Address [AddressLen]byte

// Digest is a 32-byte hash value. The commitment root and every tree node
// are digests.
type Digest [DigestLen]byte

func ParseAddress(raw string) (Address, error) {
	var addr Address
	decoded, err := decodeHex(raw, AddressLen)
	if err != nil {
		return Address{}, ErrInvalidAddress
	}
	copy(addr[:], decoded)
	return addr, nil
}

func ParseDigest(raw string) (Digest, error) {
	var digest Digest
	decoded, err := decodeHex(raw, DigestLen)
	if err != nil {
		return Digest{}, ErrInvalidDigest
	}
	copy(digest[:], decoded)
	return digest, nil
}

func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func decodeHex(raw string, want int) ([]byte, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "0x")
	value = strings.TrimPrefix(value, "0X")
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != want {
		return nil, errors.New("unexpected identifier width")
	}
	return decoded, nil
}
