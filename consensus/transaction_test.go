package consensus

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func testKeyPair(t *testing.T, seed byte) (Address, []byte) {
	t.Helper()
	var sk [32]byte
	for i := range sk {
		sk[i] = seed
	}
	priv := secp256k1.PrivKeyFromBytes(sk[:])
	var addr Address
	copy(addr[:], priv.PubKey().SerializeCompressed())
	return addr, sk[:]
}

func TestNewTransactionVerifies(t *testing.T) {
	sender, senderKey := testKeyPair(t, 1)
	receiver, _ := testKeyPair(t, 2)

	tx, err := NewTransaction(sender, receiver, 1000, big.NewInt(500), senderKey, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	ok, err := tx.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature")
	}
}

func TestTransactionVerifyRejectsTamperedAmount(t *testing.T) {
	sender, senderKey := testKeyPair(t, 1)
	receiver, _ := testKeyPair(t, 2)

	tx, err := NewTransaction(sender, receiver, 1000, big.NewInt(500), senderKey, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Amount = big.NewInt(999999)
	ok, err := tx.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected tampered transaction to fail verification")
	}
}

func TestTransactionDumpParseRoundTrip(t *testing.T) {
	sender, senderKey := testKeyPair(t, 3)
	receiver, _ := testKeyPair(t, 4)

	tx, err := NewTransaction(sender, receiver, 42, big.NewInt(12345), senderKey, []byte("memo"))
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	dump, err := tx.Dump()
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	parsed, err := ParseTransaction(dump[1:])
	if err != nil {
		t.Fatalf("ParseTransaction: %v", err)
	}
	if parsed.Sender != tx.Sender || parsed.Receiver != tx.Receiver {
		t.Fatalf("address mismatch after round trip")
	}
	if parsed.Amount.Cmp(tx.Amount) != 0 {
		t.Fatalf("amount mismatch after round trip")
	}
	if !bytes.Equal(parsed.Data, tx.Data) {
		t.Fatalf("data mismatch after round trip")
	}
	if parsed.Hash() != tx.Hash() {
		t.Fatalf("hash mismatch after round trip")
	}
}

func TestTxLessOrdersByTimestampThenHash(t *testing.T) {
	sender, senderKey := testKeyPair(t, 5)
	receiver, _ := testKeyPair(t, 6)

	early, err := NewTransaction(sender, receiver, 10, big.NewInt(1), senderKey, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	late, err := NewTransaction(sender, receiver, 20, big.NewInt(1), senderKey, nil)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	if !TxLess(early, late) {
		t.Fatalf("expected earlier timestamp to have priority")
	}
	if TxLess(late, early) {
		t.Fatalf("expected later timestamp to not have priority")
	}
}
