package consensus

import "testing"

func TestHashIsDeterministic(t *testing.T) {
	a := Hash([]byte("block"))
	b := Hash([]byte("block"))
	if a != b {
		t.Fatalf("hash not deterministic")
	}
}

func TestHashDiffersOnInput(t *testing.T) {
	a := Hash([]byte("block"))
	b := Hash([]byte("blocc"))
	if a == b {
		t.Fatalf("expected different hashes")
	}
}
