package merkle

import (
	"testing"

	"merkledrop/internal/shared/chain"
)

func testAddress(b byte) chain.Address {
	var addr chain.Address
	addr[chain.AddressLen-1] = b
	return addr
}

func buildLeaves(n int) []chain.Digest {
	leaves := make([]chain.Digest, n)
	for i := range leaves {
		leaves[i] = LeafHash(testAddress(byte(i+1)), uint64(100*(i+1)), uint64(1700000000+i))
	}
	return leaves
}

func TestBuildTreeRejectsEmptyInput(t *testing.T) {
	_, _, err := BuildTree(nil)
	if err != ErrNoLeaves {
		t.Fatalf("expected ErrNoLeaves, got %v", err)
	}
}

func TestSingleLeafRootIsLeaf(t *testing.T) {
	leaves := buildLeaves(1)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if root != leaves[0] {
		t.Fatalf("single-leaf root must equal the leaf")
	}
	if len(proofs[0]) != 0 {
		t.Fatalf("single-leaf proof must be empty, got %d siblings", len(proofs[0]))
	}
	if !VerifyProof(leaves[0], proofs[0], root) {
		t.Fatalf("empty proof for single leaf must verify")
	}
}

func TestEveryLeafProofVerifies(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 8, 33} {
		leaves := buildLeaves(n)
		root, proofs, err := BuildTree(leaves)
		if err != nil {
			t.Fatalf("build with %d leaves failed: %v", n, err)
		}
		for i, leaf := range leaves {
			if !VerifyProof(leaf, proofs[i], root) {
				t.Fatalf("proof for leaf %d of %d did not verify", i, n)
			}
		}
	}
}

func TestBuildTreeIsDeterministic(t *testing.T) {
	leaves := buildLeaves(6)
	first, _, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, _, err := BuildTree(buildLeaves(6))
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if first != second {
		t.Fatalf("identical leaves must produce identical roots")
	}
}

func TestTamperedLeafFailsVerification(t *testing.T) {
	leaves := buildLeaves(4)
	root, proofs, err := BuildTree(leaves)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	forged := LeafHash(testAddress(1), 999999, 1700000000)
	if VerifyProof(forged, proofs[0], root) {
		t.Fatalf("forged amount must not verify")
	}

	wrongAccount := LeafHash(testAddress(9), 100, 1700000000)
	if VerifyProof(wrongAccount, proofs[0], root) {
		t.Fatalf("forged account must not verify")
	}
}

func TestProofAgainstForeignRootFails(t *testing.T) {
	leavesA := buildLeaves(4)
	rootA, proofsA, err := BuildTree(leavesA)
	if err != nil {
		t.Fatalf("build A failed: %v", err)
	}

	leavesB := buildLeaves(5)
	rootB, _, err := BuildTree(leavesB)
	if err != nil {
		t.Fatalf("build B failed: %v", err)
	}
	if rootA == rootB {
		t.Fatalf("distinct leaf sets must not collide")
	}
	if VerifyProof(leavesA[0], proofsA[0], rootB) {
		t.Fatalf("proof from tree A must not verify against root B")
	}
}

func TestCombineOrderIndependence(t *testing.T) {
	a := LeafHash(testAddress(1), 1, 1)
	b := LeafHash(testAddress(2), 2, 2)
	if combine(a, b) != combine(b, a) {
		t.Fatalf("interior hash must ignore operand order")
	}
}
