package merkle

import (
	"bytes"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/sha3"

	"merkledrop/internal/shared/chain"
)

// Package merkle builds the commitment tree over release leaves and verifies
// membership proofs against a root. Interior nodes hash the bytewise-sorted
// pair of their children, so a proof carries no left/right position data and
// verifies regardless of leaf insertion order.

var ErrNoLeaves = errors.New("merkle tree needs at least one leaf")

// Keccak256 hashes the concatenation of parts with legacy Keccak-256, the
// digest the settlement contract uses.
func Keccak256(parts ...[]byte) chain.Digest {
	hasher := sha3.NewLegacyKeccak256()
	for _, part := range parts {
		hasher.Write(part)
	}
	var digest chain.Digest
	hasher.Sum(digest[:0])
	return digest
}

// LeafHash encodes (account, amount, releaseTime) as a fixed-width byte
// string and hashes it. 20-byte account, 8-byte big-endian amount, 8-byte
// big-endian release time, no delimiters or length prefixes.
func LeafHash(account chain.Address, amount uint64, releaseTime uint64) chain.Digest {
	var buf [chain.AddressLen + 16]byte
	copy(buf[:chain.AddressLen], account[:])
	binary.BigEndian.PutUint64(buf[chain.AddressLen:chain.AddressLen+8], amount)
	binary.BigEndian.PutUint64(buf[chain.AddressLen+8:], releaseTime)
	return Keccak256(buf[:])
}

func combine(a chain.Digest, b chain.Digest) chain.Digest {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return Keccak256(a[:], b[:])
}

// BuildTree aggregates leaf digests into a root and returns one sibling path
// per leaf, indexed by leaf position. An unpaired node at the end of a level
// is promoted unchanged, so its proof gains no sibling at that level.
func BuildTree(leaves []chain.Digest) (chain.Digest, [][]chain.Digest, error) {
	if len(leaves) == 0 {
		return chain.Digest{}, nil, ErrNoLeaves
	}

	proofs := make([][]chain.Digest, len(leaves))
	level := append([]chain.Digest(nil), leaves...)
	// positions[i] tracks which node of the current level leaf i sits under.
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}

	for len(level) > 1 {
		next := make([]chain.Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		for leaf, pos := range positions {
			sibling := pos ^ 1
			if sibling < len(level) {
				proofs[leaf] = append(proofs[leaf], level[sibling])
			}
			positions[leaf] = pos / 2
		}
		level = next
	}
	return level[0], proofs, nil
}

// VerifyProof folds the sibling path over the leaf digest and compares the
// result against root.
func VerifyProof(leaf chain.Digest, proof []chain.Digest, root chain.Digest) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = combine(computed, sibling)
	}
	return computed == root
}
