package fetcher

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/common/mclock"
	"github.com/txrelay/txdownload/core/types"
)

func hash(b byte) (h chainhash.Hash) {
	h[0] = b
	return h
}

func gtxid(b byte) types.GenericTxid {
	return types.NewGenericTxidFromTxid(types.TxidFromHash(hash(b)))
}

func newTestTracker() (*Tracker[types.GenericTxid], *mclock.Simulated) {
	clock := new(mclock.Simulated)
	limits := Limits{MaxPeerCandidates: 10, MaxPeerInFlight: 2}
	return NewTracker(clock, limits, types.GenericTxid.Hash), clock
}

func TestOfferIsIdempotentPerPeer(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	if !tr.Offer(1, gtxid(0x01), false, now, false) {
		t.Fatal("first offer should create a new invitation")
	}
	if tr.Offer(1, gtxid(0x01), true, now.Add(time.Second), false) {
		t.Fatal("re-announcing the same (peer, hash) must not create a second invitation")
	}
	if tr.Count(1) != 1 {
		t.Fatalf("expected 1 tracked invitation, got %d", tr.Count(1))
	}
}

func TestSameHashFromTwoPeersBothBecomeCandidates(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(2, gtxid(0x01), false, now, false)
	if tr.Size() != 2 {
		t.Fatalf("expected 2 invitations (one per peer), got %d", tr.Size())
	}
}

func TestPreferredPeerWinsOverNonPreferred(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(2, gtxid(0x01), true, now, false)

	ready1, _ := tr.Requestable(1, now)
	if len(ready1) != 0 {
		t.Fatalf("non-preferred peer must not win while a preferred candidate is ready, got %v", ready1)
	}
	ready2, _ := tr.Requestable(2, now)
	if len(ready2) != 1 {
		t.Fatalf("preferred peer should win the hash, got %v", ready2)
	}
}

func TestEarliestRequestTimeWinsOnTie(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now.Add(time.Second), false)
	tr.Offer(2, gtxid(0x01), false, now, false)

	later := now.Add(2 * time.Second)
	ready1, _ := tr.Requestable(1, later)
	if len(ready1) != 0 {
		t.Fatal("later-announcing peer must not win when both are ready")
	}
	ready2, _ := tr.Requestable(2, later)
	if len(ready2) != 1 {
		t.Fatal("earlier-announcing peer should win the tie")
	}
}

func TestOnceInFlightOtherPeerCannotAlsoRequest(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(2, gtxid(0x01), false, now, false)

	ready1, _ := tr.Requestable(1, now)
	if len(ready1) != 1 {
		t.Fatalf("expected peer 1 to win, got %v", ready1)
	}
	tr.Requested(1, gtxid(0x01), now.Add(time.Minute))

	ready2, _ := tr.Requestable(2, now)
	if len(ready2) != 0 {
		t.Fatal("a hash already in flight must not become requestable from another peer")
	}
}

func TestExpiryFreesHashForOtherPeers(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(2, gtxid(0x01), false, now, false)
	tr.Requestable(1, now)
	tr.Requested(1, gtxid(0x01), now.Add(time.Minute))

	later := now.Add(2 * time.Minute)
	_, expired := tr.Requestable(1, later)
	if len(expired) != 1 {
		t.Fatalf("expected peer 1's in-flight request to expire, got %v", expired)
	}

	ready2, _ := tr.Requestable(2, later)
	if len(ready2) != 1 {
		t.Fatal("hash should become requestable again from peer 2 once peer 1's request expires")
	}
}

func TestReceivedResponseCompletesAndForgetRemovesEverywhere(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(2, gtxid(0x01), false, now, false)
	tr.Requestable(1, now)
	tr.Requested(1, gtxid(0x01), now.Add(time.Minute))
	tr.ReceivedResponse(1, gtxid(0x01))

	if tr.CountInFlight(1) != 0 {
		t.Fatal("completing a request should clear the in-flight count")
	}
	// Completion only retires peer 1's invitation; peer 2's candidate stays
	// tracked until Forget, which is what the coordinator calls once the
	// transaction has actually been accepted/rejected.
	tr.Forget(gtxid(0x01))
	if tr.Size() != 0 {
		t.Fatalf("forget should remove every invitation for the hash, got size %d", tr.Size())
	}
}

func TestPeerInFlightCapBlocksFurtherRequests(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(1, gtxid(0x02), false, now, false)
	tr.Offer(1, gtxid(0x03), false, now, false)

	ready, _ := tr.Requestable(1, now)
	if len(ready) != 2 {
		t.Fatalf("peer's in-flight budget is 2, expected exactly 2 ready, got %d", len(ready))
	}
	for _, v := range ready {
		tr.Requested(1, v, now.Add(time.Minute))
	}
	ready2, _ := tr.Requestable(1, now)
	if len(ready2) != 0 {
		t.Fatal("peer at its in-flight cap must not get more requestable hashes")
	}
}

func TestCandidateCapDropsAnnouncementsWithoutRelayPermission(t *testing.T) {
	clock := new(mclock.Simulated)
	tr := NewTracker(clock, Limits{MaxPeerCandidates: 1, MaxPeerInFlight: 1}, types.GenericTxid.Hash)
	now := clock.Now()

	if !tr.Offer(1, gtxid(0x01), false, now, false) {
		t.Fatal("first announcement should be accepted")
	}
	if tr.Offer(1, gtxid(0x02), false, now, false) {
		t.Fatal("second announcement should be dropped: peer is at its candidate cap")
	}
	if !tr.Offer(1, gtxid(0x02), false, now, true) {
		t.Fatal("relay-permission peers are exempt from the candidate cap")
	}
}

func TestDisconnectedRemovesAllOfPeersInvitations(t *testing.T) {
	tr, clock := newTestTracker()
	now := clock.Now()

	tr.Offer(1, gtxid(0x01), false, now, false)
	tr.Offer(1, gtxid(0x02), false, now, false)
	tr.Offer(2, gtxid(0x01), false, now, false)

	tr.Disconnected(1)
	if tr.Count(1) != 0 {
		t.Fatal("disconnected peer should have no tracked invitations left")
	}
	if tr.Size() != 1 {
		t.Fatalf("peer 2's invitation for hash 0x01 must survive, size=%d", tr.Size())
	}
}

func TestTxTrackerForgetByRawHash(t *testing.T) {
	clock := new(mclock.Simulated)
	tt := DefaultTxTracker(clock)
	now := clock.Now()

	tt.ReceivedInv(1, gtxid(0x01), false, now, false)
	tt.Forget(hash(0x01))
	if tt.Size() != 0 {
		t.Fatal("forgetting by raw hash should remove the tagged invitation")
	}
}

func TestOrphanResolutionTrackerSingleInFlight(t *testing.T) {
	clock := new(mclock.Simulated)
	ort := NewOrphanResolutionTracker(clock, 10, 0)
	now := clock.Now()

	w1 := types.WtxidFromHash(hash(0x01))
	w2 := types.WtxidFromHash(hash(0x02))
	ort.NeedsResolution(1, w1, now)
	ort.NeedsResolution(1, w2, now)

	ready, _ := ort.GetRequestable(1, now)
	if len(ready) != 1 {
		t.Fatalf("orphan resolution allows exactly one in-flight request per peer, got %d", len(ready))
	}
	ort.Requested(1, ready[0], now)

	ready2, _ := ort.GetRequestable(1, now)
	if len(ready2) != 0 {
		t.Fatal("peer already has a resolution request in flight")
	}

	later := now.Add(DefaultOrphanAncestorGetdataInterval + time.Second)
	_, expired := ort.GetRequestable(1, later)
	if len(expired) != 1 {
		t.Fatal("resolution request should expire after the configured resolution interval")
	}
}
