package types

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

func testHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestGenericTxidRoundTrip(t *testing.T) {
	txid := TxidFromHash(testHash(0xAA))
	g := NewGenericTxidFromTxid(txid)
	if g.IsWtxid() {
		t.Fatal("expected txid-tagged GenericTxid")
	}
	if g.AsTxid() != txid {
		t.Fatal("AsTxid did not round-trip")
	}
	if g.Hash() != txid.Hash() {
		t.Fatal("Hash() should equal the wrapped hash regardless of tag")
	}

	wtxid := WtxidFromHash(testHash(0xBB))
	g2 := NewGenericTxidFromWtxid(wtxid)
	if !g2.IsWtxid() {
		t.Fatal("expected wtxid-tagged GenericTxid")
	}
	if g2.AsWtxid() != wtxid {
		t.Fatal("AsWtxid did not round-trip")
	}
}

func TestTransactionWeight(t *testing.T) {
	txid := TxidFromHash(testHash(0x01))
	tx := NewTransaction(txid, WtxidFromHash(txid.Hash()), 2, nil, nil, 100, 0)
	if w := tx.Weight(); w != 400 {
		t.Fatalf("expected weight 400, got %d", w)
	}
	if tx.HasWitness() {
		t.Fatal("txid == wtxid should mean no witness data")
	}

	wtxid := WtxidFromHash(testHash(0x02))
	wtx := NewTransaction(txid, wtxid, 2, nil, nil, 100, 40)
	if w := wtx.Weight(); w != 440 {
		t.Fatalf("expected weight 440, got %d", w)
	}
	if !wtx.HasWitness() {
		t.Fatal("distinct txid/wtxid should mean witness data present")
	}
}

func TestOutpointIsComparable(t *testing.T) {
	a := Outpoint{Hash: TxidFromHash(testHash(0x01)), Index: 0}
	b := Outpoint{Hash: TxidFromHash(testHash(0x01)), Index: 0}
	c := Outpoint{Hash: TxidFromHash(testHash(0x01)), Index: 1}

	set := map[Outpoint]bool{a: true}
	if !set[b] {
		t.Fatal("equal outpoints must compare equal as map keys")
	}
	if set[c] {
		t.Fatal("different output index must be a different key")
	}
}
