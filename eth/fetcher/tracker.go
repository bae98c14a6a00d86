// Package fetcher implements the per-announcement request scheduler shared
// by spec.md's Request Tracker (§4.B) and Orphan Resolution Tracker (§4.D):
// both are the same Candidate→Requested→Completed state machine, applied to
// a different hash space and a different pair of per-peer limits.
package fetcher

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/common/mclock"
	"github.com/txrelay/txdownload/core/types"
	"github.com/txrelay/txdownload/log"
)

// state is the per-invitation lifecycle described in spec.md §4.B.
type state uint8

const (
	stateCandidate state = iota
	stateRequested
	stateCompleted
)

// Limits bounds what a single peer may have outstanding at once.
type Limits struct {
	MaxPeerCandidates int // MAX_PEER_TX_ANNOUNCEMENTS / the orphan-resolution equivalent
	MaxPeerInFlight   int // MAX_PEER_TX_REQUEST_IN_FLIGHT / the orphan-resolution equivalent
}

// Invitation is the (Peer, value, preferred, request_time, state) tuple from
// spec.md §3, generic over the value type the tracker schedules requests
// for (types.GenericTxid for the Request Tracker, types.Wtxid for the
// Orphan Resolution Tracker).
type Invitation[V any] struct {
	Peer        types.Peer
	Value       V
	Preferred   bool
	RequestTime mclock.AbsTime

	state    state
	deadline mclock.AbsTime
}

// State projections, exported for callers/tests that want to inspect an
// invitation without reaching into the tracker's internals.
func (inv *Invitation[V]) IsCandidate() bool { return inv.state == stateCandidate }
func (inv *Invitation[V]) IsRequested() bool { return inv.state == stateRequested }
func (inv *Invitation[V]) IsCompleted() bool { return inv.state == stateCompleted }
func (inv *Invitation[V]) Deadline() mclock.AbsTime { return inv.deadline }

type peerHashKey struct {
	peer types.Peer
	hash chainhash.Hash
}

// Tracker is the generic engine behind both spec.md §4.B and §4.D.
type Tracker[V any] struct {
	clock  mclock.Clock
	limits Limits
	hashOf func(V) chainhash.Hash
	log    log.Logger

	byKey  map[peerHashKey]*Invitation[V]
	byHash map[chainhash.Hash]map[types.Peer]*Invitation[V]

	peerCount    map[types.Peer]int
	peerInFlight map[types.Peer]int
}

// NewTracker builds a Tracker. hashOf extracts the dedup/scheduling key from
// a value (for the Request Tracker this discards the txid/wtxid tag, since
// the same underlying transaction must not be requested twice concurrently
// regardless of which identifier a peer announced it under).
func NewTracker[V any](clock mclock.Clock, limits Limits, hashOf func(V) chainhash.Hash) *Tracker[V] {
	return &Tracker[V]{
		clock:        clock,
		limits:       limits,
		hashOf:       hashOf,
		log:          log.New("module", "fetcher"),
		byKey:        make(map[peerHashKey]*Invitation[V]),
		byHash:       make(map[chainhash.Hash]map[types.Peer]*Invitation[V]),
		peerCount:    make(map[types.Peer]int),
		peerInFlight: make(map[types.Peer]int),
	}
}

// Offer records that peer has announced value (spec.md's received_inv).
// hasRelayPermission exempts the peer from the per-peer candidate cap. It
// reports whether a brand-new invitation was created.
func (t *Tracker[V]) Offer(peer types.Peer, value V, preferred bool, requestTime mclock.AbsTime, hasRelayPermission bool) bool {
	h := t.hashOf(value)
	key := peerHashKey{peer, h}

	if existing, ok := t.byKey[key]; ok {
		// Idempotent: keep the earlier time, and never resurrect a spent
		// invitation's preferred flag from a later, less-preferred re-announce.
		if requestTime < existing.RequestTime {
			existing.RequestTime = requestTime
		}
		return false
	}
	if t.peerCount[peer] >= t.limits.MaxPeerCandidates && !hasRelayPermission {
		t.log.Debug("dropping announcement, peer at candidate cap", "peer", peer, "hash", h)
		return false
	}

	inv := &Invitation[V]{
		Peer:        peer,
		Value:       value,
		Preferred:   preferred,
		RequestTime: requestTime,
		state:       stateCandidate,
	}
	t.byKey[key] = inv
	if t.byHash[h] == nil {
		t.byHash[h] = make(map[types.Peer]*Invitation[V])
	}
	t.byHash[h][peer] = inv
	t.peerCount[peer]++
	return true
}

// hasInFlight reports whether some peer currently holds a Requested
// invitation for hash.
func (t *Tracker[V]) hasInFlight(h chainhash.Hash) bool {
	for _, inv := range t.byHash[h] {
		if inv.state == stateRequested {
			return true
		}
	}
	return false
}

// better reports whether a should win over b: preferred peers first, then
// earliest request time, per spec.md §4.B's preference semantics.
func better[V any](a, b *Invitation[V]) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	return a.RequestTime < b.RequestTime
}

// winner returns the best ready candidate for hash across all peers.
func (t *Tracker[V]) winner(h chainhash.Hash, now mclock.AbsTime) *Invitation[V] {
	var best *Invitation[V]
	for _, inv := range t.byHash[h] {
		if inv.state != stateCandidate || inv.RequestTime > now {
			continue
		}
		if best == nil || better(inv, best) {
			best = inv
		}
	}
	return best
}

// Requestable implements spec.md §4.B's get_requestable(peer, now). It
// first reaps this peer's own timed-out in-flight requests (freeing their
// hashes for other peers), then returns the subset of peer's candidate
// invitations that are ready to send: past their request_time, not already
// in flight to anyone, the cross-peer winner for their hash, and within
// peer's in-flight budget.
func (t *Tracker[V]) Requestable(peer types.Peer, now mclock.AbsTime) (ready []V, expired []V) {
	for _, byPeer := range t.byHash {
		inv, ok := byPeer[peer]
		if !ok || inv.state != stateRequested {
			continue
		}
		if inv.deadline <= now {
			inv.state = stateCompleted
			t.peerInFlight[peer]--
			expired = append(expired, inv.Value)
		}
	}

	budget := t.limits.MaxPeerInFlight - t.peerInFlight[peer]
	if budget <= 0 {
		return ready, expired
	}
	for h, byPeer := range t.byHash {
		inv, ok := byPeer[peer]
		if !ok || inv.state != stateCandidate || inv.RequestTime > now {
			continue
		}
		if t.hasInFlight(h) {
			continue
		}
		if w := t.winner(h, now); w == nil || w.Peer != peer {
			continue
		}
		ready = append(ready, inv.Value)
		budget--
		if budget <= 0 {
			break
		}
	}
	return ready, expired
}

// Requested implements spec.md's "requested" transition: the caller has
// sent a wire request for value to peer and the invitation now becomes
// in-flight with the given deadline.
func (t *Tracker[V]) Requested(peer types.Peer, value V, deadline mclock.AbsTime) {
	h := t.hashOf(value)
	inv, ok := t.byHash[h][peer]
	if !ok || inv.state != stateCandidate {
		return
	}
	inv.state = stateRequested
	inv.deadline = deadline
	t.peerInFlight[peer]++
}

// ReceivedResponse implements spec.md's received_response: peer has
// delivered (or validly NOTFOUND'd) the data for value, so peer's invitation
// is marked completed whether it was in flight or still a candidate. Other
// peers' candidate invitations for the same hash stay in place and become
// eligible to win it.
func (t *Tracker[V]) ReceivedResponse(peer types.Peer, value V) {
	h := t.hashOf(value)
	inv, ok := t.byHash[h][peer]
	if !ok || inv.state == stateCompleted {
		return
	}
	if inv.state == stateRequested {
		t.peerInFlight[peer]--
	}
	inv.state = stateCompleted
}

// Forget removes every invitation for value's hash across all peers, the
// way mempool-acceptance/rejection or block-inclusion retires a hash from
// scheduling entirely.
func (t *Tracker[V]) Forget(value V) {
	h := t.hashOf(value)
	byPeer, ok := t.byHash[h]
	if !ok {
		return
	}
	for peer, inv := range byPeer {
		t.removeInvitation(peer, h, inv)
	}
	delete(t.byHash, h)
}

func (t *Tracker[V]) removeInvitation(peer types.Peer, h chainhash.Hash, inv *Invitation[V]) {
	delete(t.byKey, peerHashKey{peer, h})
	if inv.state == stateRequested {
		t.peerInFlight[peer]--
	}
	t.peerCount[peer]--
	if t.peerCount[peer] <= 0 {
		delete(t.peerCount, peer)
	}
}

// Disconnected removes every invitation belonging to peer, the tracker-side
// half of spec.md §4.E's disconnected_peer handler.
func (t *Tracker[V]) Disconnected(peer types.Peer) {
	delete(t.peerCount, peer)
	delete(t.peerInFlight, peer)
	for h, byPeer := range t.byHash {
		if _, ok := byPeer[peer]; !ok {
			continue
		}
		delete(t.byKey, peerHashKey{peer, h})
		delete(byPeer, peer)
		if len(byPeer) == 0 {
			delete(t.byHash, h)
		}
	}
}

// CandidatePeers returns every peer currently holding a Candidate invitation
// for hash, used by new_orphan_tx to register orphan-resolution candidates
// beyond the announcing peer itself.
func (t *Tracker[V]) CandidatePeers(h chainhash.Hash) []types.Peer {
	var peers []types.Peer
	for peer, inv := range t.byHash[h] {
		if inv.state == stateCandidate {
			peers = append(peers, peer)
		}
	}
	return peers
}

// Count returns the number of invitations (any state) currently tracked
// for peer.
func (t *Tracker[V]) Count(peer types.Peer) int { return t.peerCount[peer] }

// CountInFlight returns the number of Requested invitations for peer.
func (t *Tracker[V]) CountInFlight(peer types.Peer) int { return t.peerInFlight[peer] }

// Size returns the total number of invitations tracked, across all peers.
func (t *Tracker[V]) Size() int { return len(t.byKey) }

// TotalInFlight returns the number of Requested invitations across every
// peer, for metrics reporting.
func (t *Tracker[V]) TotalInFlight() int {
	var total int
	for _, n := range t.peerInFlight {
		total += n
	}
	return total
}
