package consensus

import "testing"

func leafHash(b byte) [32]byte {
	return Hash([]byte{b})
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := leafHash(1)
	tree := BuildMerkleTree([][32]byte{leaf})
	want := leaf
	if tree.Root() != want {
		t.Fatalf("single-leaf root should be the leaf itself: one leaf needs no padding and no internal node")
	}
}

func TestMerkleRootTwoLeavesUsesAndCombine(t *testing.T) {
	a, b := leafHash(1), leafHash(2)
	tree := BuildMerkleTree([][32]byte{a, b})
	var anded [32]byte
	for i := range anded {
		anded[i] = a[i] & b[i]
	}
	want := Hash(anded[:])
	if tree.Root() != want {
		t.Fatalf("two-leaf root should AND-combine, not concatenate")
	}
}

func TestMerkleEmptyTreeRootIsZero(t *testing.T) {
	tree := BuildMerkleTree(nil)
	if tree.Root() != ([32]byte{}) {
		t.Fatalf("expected zero root for empty tree")
	}
}

func TestMerkleProofRoundTrip(t *testing.T) {
	leaves := [][32]byte{leafHash(1), leafHash(2), leafHash(3), leafHash(4), leafHash(5)}
	tree := BuildMerkleTree(leaves)
	root := tree.Root()
	for _, leaf := range leaves {
		proof, err := tree.GetProof(leaf)
		if err != nil {
			t.Fatalf("GetProof: %v", err)
		}
		if !VerifyProof(leaf, root, proof) {
			t.Fatalf("proof failed to verify for leaf %x", leaf)
		}
	}
}

func TestMerkleProofRejectsWrongLeaf(t *testing.T) {
	leaves := [][32]byte{leafHash(1), leafHash(2), leafHash(3)}
	tree := BuildMerkleTree(leaves)
	proof, err := tree.GetProof(leaves[0])
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}
	if VerifyProof(leafHash(99), tree.Root(), proof) {
		t.Fatalf("expected verification to fail for an unrelated leaf")
	}
}

func TestMerkleGetProofRejectsUnknownLeaf(t *testing.T) {
	tree := BuildMerkleTree([][32]byte{leafHash(1), leafHash(2)})
	if _, err := tree.GetProof(leafHash(99)); err == nil {
		t.Fatalf("expected error for leaf not in tree")
	}
}
