package keys

import (
	"path/filepath"
	"testing"

	"blockchaintree.dev/core/consensus"
)

func TestSealOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")

	if err := Seal(consensus.RootPrivateKey, "correct horse battery staple", path); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	kp, err := Open(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if kp.Address != consensus.RootPublicAddress {
		t.Fatalf("unexpected recovered address")
	}
}

func TestOpenRejectsWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	if err := Seal(consensus.RootPrivateKey, "correct", path); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(path, "wrong"); err == nil {
		t.Fatalf("expected error unwrapping with the wrong passphrase")
	}
}
