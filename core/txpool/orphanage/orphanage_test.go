package orphanage

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/core/types"
)

func h(b byte) (out chainhash.Hash) {
	out[0] = b
	return out
}

func tx(b byte, weight int64) *types.Transaction {
	txid := types.TxidFromHash(h(b))
	return types.NewTransaction(txid, types.WtxidFromHash(h(b)), 2, nil, []types.TxOut{{Value: 1}}, weight/4, 0)
}

func childSpending(parent *types.Transaction, outputIndex uint32, selfByte byte) *types.Transaction {
	txid := types.TxidFromHash(h(selfByte))
	wtxid := types.WtxidFromHash(h(selfByte))
	inputs := []types.Outpoint{{Hash: parent.Txid(), Index: outputIndex}}
	return types.NewTransaction(txid, wtxid, 2, inputs, []types.TxOut{{Value: 1}}, 100, 0)
}

func TestAddTxFirstAnnouncerVsAdditional(t *testing.T) {
	o := New(DefaultConfig())
	transaction := tx(0x01, 400)

	if !o.AddTx(transaction, 1) {
		t.Fatal("first announcer should report true")
	}
	if o.AddTx(transaction, 2) {
		t.Fatal("second announcer of the same wtxid should report false")
	}
	if o.AddTx(transaction, 1) {
		t.Fatal("re-adding the same (wtxid, peer) should report false")
	}
	if !o.HaveTxFromPeer(transaction.Wtxid(), 1) || !o.HaveTxFromPeer(transaction.Wtxid(), 2) {
		t.Fatal("both peers should be recorded as announcers")
	}
}

func TestAddTxRejectsOverweight(t *testing.T) {
	o := New(DefaultConfig())
	huge := tx(0x01, types.MaxStandardTxWeight+4)
	if o.AddTx(huge, 1) {
		t.Fatal("overweight transaction must be rejected")
	}
	if o.HaveTx(huge.Wtxid()) {
		t.Fatal("rejected transaction must not be stored")
	}
}

func TestAddAnnouncerRequiresExistingWtxid(t *testing.T) {
	o := New(DefaultConfig())
	w := types.WtxidFromHash(h(0x01))
	if o.AddAnnouncer(w, 1) {
		t.Fatal("add_announcer must fail when the wtxid has no existing announcement")
	}

	transaction := tx(0x01, 400)
	o.AddTx(transaction, 1)
	if !o.AddAnnouncer(transaction.Wtxid(), 2) {
		t.Fatal("add_announcer should succeed for a known wtxid and new peer")
	}
	if o.AddAnnouncer(transaction.Wtxid(), 2) {
		t.Fatal("add_announcer must be idempotent-false for an existing (wtxid, peer)")
	}
}

func TestEraseTxRemovesEveryAnnouncer(t *testing.T) {
	o := New(DefaultConfig())
	transaction := tx(0x01, 400)
	o.AddTx(transaction, 1)
	o.AddAnnouncer(transaction.Wtxid(), 2)

	if n := o.EraseTx(transaction.Wtxid()); n != 1 {
		t.Fatalf("expected 1 unique wtxid erased, got %d", n)
	}
	if o.HaveTx(transaction.Wtxid()) {
		t.Fatal("wtxid must be gone after erase_tx")
	}
	if o.EraseTx(transaction.Wtxid()) != 0 {
		t.Fatal("erasing an already-gone wtxid returns 0")
	}
}

func TestEraseForPeerOnlyTouchesThatPeer(t *testing.T) {
	o := New(DefaultConfig())
	shared := tx(0x01, 400)
	solo := tx(0x02, 400)
	o.AddTx(shared, 1)
	o.AddAnnouncer(shared.Wtxid(), 2)
	o.AddTx(solo, 1)

	o.EraseForPeer(1)

	if o.HaveTxFromPeer(shared.Wtxid(), 1) {
		t.Fatal("peer 1's announcement of the shared wtxid must be gone")
	}
	if !o.HaveTxFromPeer(shared.Wtxid(), 2) {
		t.Fatal("peer 2's announcement of the shared wtxid must survive")
	}
	if o.HaveTx(solo.Wtxid()) {
		t.Fatal("a wtxid whose only announcer disconnected must be fully removed")
	}
}

func TestEraseForBlockRemovesOrphansSpendingConsumedOutpoints(t *testing.T) {
	o := New(DefaultConfig())
	parent := tx(0xAA, 400)
	child := childSpending(parent, 0, 0xCC)
	o.AddTx(child, 1)

	n := o.EraseForBlock([]types.Outpoint{{Hash: parent.Txid(), Index: 0}})
	if n != 1 {
		t.Fatalf("expected 1 wtxid removed, got %d", n)
	}
	if o.HaveTx(child.Wtxid()) {
		t.Fatal("orphan spending a now-consumed outpoint must be erased")
	}
}

func TestReconsiderIsolation(t *testing.T) {
	o := New(DefaultConfig())
	parent := tx(0xAA, 400)
	child := childSpending(parent, 0, 0xCC)
	o.AddTx(child, 2)
	o.AddAnnouncer(child.Wtxid(), 3)

	// Deterministic source that always returns index 0 out of however many
	// candidates Intn is asked for, matching "RNG producing index 0".
	rnd := deterministicZero{}.asRand()

	o.AddChildrenToWorkSet(parent, rnd)

	winner := types.Peer(2)
	loser := types.Peer(3)
	if !o.HaveTxToReconsider(winner) && !o.HaveTxToReconsider(loser) {
		t.Fatal("exactly one of the two announcers should be marked reconsiderable")
	}
	if o.HaveTxToReconsider(winner) && o.HaveTxToReconsider(loser) {
		t.Fatal("only one announcer may be reconsiderable at a time")
	}
	if !o.HaveTxToReconsider(winner) {
		winner, loser = loser, winner
	}
	got, ok := o.GetTxToReconsider(winner)
	if !ok || got.Wtxid() != child.Wtxid() {
		t.Fatal("get_tx_to_reconsider should return the orphan")
	}
	if o.HaveTxToReconsider(winner) {
		t.Fatal("reconsider flag must be cleared once retrieved")
	}
	if o.HaveTxToReconsider(loser) {
		t.Fatal("the non-chosen announcer must never have been marked reconsiderable")
	}
}

// deterministicZero provides a rand.Source that always returns 0, so
// Intn(n) always selects index 0 regardless of n.
type deterministicZero struct{}

func (deterministicZero) Int63() int64 { return 0 }
func (deterministicZero) Seed(int64)   {}

func (deterministicZero) asRand() *rand.Rand { return rand.New(deterministicZero{}) }

func TestGetTxToReconsiderIsIdempotent(t *testing.T) {
	o := New(DefaultConfig())
	transaction := tx(0x01, 400)
	o.AddTx(transaction, 1)
	ann := o.byKey[key{transaction.Wtxid(), 1}]
	ann.Reconsider = true

	got1, ok1 := o.GetTxToReconsider(1)
	got2, ok2 := o.GetTxToReconsider(1)
	if !ok1 || got1.Wtxid() != transaction.Wtxid() {
		t.Fatal("first call should return the transaction")
	}
	if ok2 || got2 != nil {
		t.Fatal("second consecutive call must return nothing")
	}
}

func TestDoSFairEvictionProtectsWellBehavedPeer(t *testing.T) {
	cfg := Config{MaxGlobalAnnouncements: 100, ReservedPeerWeight: 404_000}
	o := New(cfg)

	// Peer 1: 10 orphans of weight 40,000 each (well within both limits).
	for i := byte(0); i < 10; i++ {
		o.AddTx(tx(i, 40_000), 1)
	}
	// Peers 2-10: flood 180 announcements collectively (20 each), well
	// beyond both the per-peer announcement share and the global cap.
	b := byte(10)
	for peer := types.Peer(2); peer <= 10; peer++ {
		for i := 0; i < 20; i++ {
			o.AddTx(tx(b, 1000), peer)
			b++
		}
	}

	o.LimitOrphans(10)

	for i := byte(0); i < 10; i++ {
		w := tx(i, 40_000).Wtxid()
		if !o.HaveTxFromPeer(w, 1) {
			t.Fatalf("well-behaved peer 1's orphan %d must survive eviction", i)
		}
	}
	if o.Size() > cfg.MaxGlobalAnnouncements {
		t.Fatalf("global announcement cap should be restored, got size %d", o.Size())
	}
}

func TestDoSFairEvictionSkipsReconsiderableAnnouncements(t *testing.T) {
	cfg := Config{MaxGlobalAnnouncements: 1, ReservedPeerWeight: 404_000}
	o := New(cfg)

	a := tx(0x01, 100)
	bTx := tx(0x02, 100)
	o.AddTx(a, 1)
	o.AddTx(bTx, 1)
	ann := o.byKey[key{a.Wtxid(), 1}]
	ann.Reconsider = true

	o.LimitOrphans(1)

	if !o.HaveTx(a.Wtxid()) {
		t.Fatal("a reconsiderable announcement must never be evicted")
	}
}

func TestSanityCheckPassesAfterArbitraryMutations(t *testing.T) {
	o := New(DefaultConfig())
	parent := tx(0xAA, 400)
	child := childSpending(parent, 0, 0xCC)

	o.AddTx(child, 1)
	o.AddAnnouncer(child.Wtxid(), 2)
	if err := o.SanityCheck(); err != nil {
		t.Fatalf("unexpected inconsistency after inserts: %v", err)
	}

	o.EraseForPeer(1)
	if err := o.SanityCheck(); err != nil {
		t.Fatalf("unexpected inconsistency after erase_for_peer: %v", err)
	}

	o.EraseTx(child.Wtxid())
	if err := o.SanityCheck(); err != nil {
		t.Fatalf("unexpected inconsistency after erase_tx: %v", err)
	}
}

func TestInsertEraseRoundTrip(t *testing.T) {
	o := New(DefaultConfig())
	before := o.UniqueOrphans()

	transaction := tx(0x01, 400)
	o.AddTx(transaction, 1)
	o.EraseTx(transaction.Wtxid())

	if o.UniqueOrphans() != before {
		t.Fatalf("round trip should restore unique orphan count, got %d want %d", o.UniqueOrphans(), before)
	}
}
