package fetcher

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/common/mclock"
	"github.com/txrelay/txdownload/core/types"
)

// Default limits for the Request Tracker (spec.md §4.B).
const (
	DefaultMaxPeerTxAnnouncements  = 5000
	DefaultMaxPeerTxRequestInFlight = 100
)

// TxTracker is spec.md §4.B's Request Tracker: schedules GETDATA requests
// for announced transactions, one winner per underlying hash at a time,
// across all connected peers.
type TxTracker struct {
	inner *Tracker[types.GenericTxid]
}

// NewTxTracker builds a TxTracker with the given clock and limits.
func NewTxTracker(clock mclock.Clock, limits Limits) *TxTracker {
	return &TxTracker{
		inner: NewTracker(clock, limits, types.GenericTxid.Hash),
	}
}

// DefaultTxTracker builds a TxTracker with spec.md's default limits.
func DefaultTxTracker(clock mclock.Clock) *TxTracker {
	return NewTxTracker(clock, Limits{
		MaxPeerCandidates: DefaultMaxPeerTxAnnouncements,
		MaxPeerInFlight:   DefaultMaxPeerTxRequestInFlight,
	})
}

// ReceivedInv records that peer announced gtxid at requestTime, preferred
// or not, and whether peer is exempt from the per-peer announcement cap
// (e.g. it has relay permission).
func (t *TxTracker) ReceivedInv(peer types.Peer, gtxid types.GenericTxid, preferred bool, requestTime mclock.AbsTime, hasRelayPermission bool) bool {
	return t.inner.Offer(peer, gtxid, preferred, requestTime, hasRelayPermission)
}

// GetRequestable returns the GenericTxids peer should now request, plus any
// of peer's own in-flight requests that just expired.
func (t *TxTracker) GetRequestable(peer types.Peer, now mclock.AbsTime) (ready, expired []types.GenericTxid) {
	return t.inner.Requestable(peer, now)
}

// Requested marks gtxid as in flight to peer until deadline.
func (t *TxTracker) Requested(peer types.Peer, gtxid types.GenericTxid, deadline mclock.AbsTime) {
	t.inner.Requested(peer, gtxid, deadline)
}

// ReceivedResponse completes peer's invitation for gtxid (in flight or not),
// whether satisfied by TX or rejected as NOTFOUND (both retire the slot;
// NOTFOUND handling beyond that is the coordinator's concern).
func (t *TxTracker) ReceivedResponse(peer types.Peer, gtxid types.GenericTxid) {
	t.inner.ReceivedResponse(peer, gtxid)
}

// Forget removes every invitation for hash, across all peers. Accepts the
// raw hash since mempool-accept/reject and block-connect notify by hash,
// not by GenericTxid.
func (t *TxTracker) Forget(hash chainhash.Hash) {
	t.inner.Forget(types.NewGenericTxidFromTxid(types.TxidFromHash(hash)))
}

// CandidatePeers returns every peer currently holding a candidate
// announcement for hash.
func (t *TxTracker) CandidatePeers(hash chainhash.Hash) []types.Peer {
	return t.inner.CandidatePeers(hash)
}

// Count returns the number of announcements currently tracked for peer.
func (t *TxTracker) Count(peer types.Peer) int { return t.inner.Count(peer) }

// CountInFlight returns the number of outstanding requests to peer.
func (t *TxTracker) CountInFlight(peer types.Peer) int { return t.inner.CountInFlight(peer) }

// Size returns the total number of tracked announcements.
func (t *TxTracker) Size() int { return t.inner.Size() }

// TotalInFlight returns the number of outstanding requests across all peers.
func (t *TxTracker) TotalInFlight() int { return t.inner.TotalInFlight() }

// Disconnected drops every announcement from peer.
func (t *TxTracker) Disconnected(peer types.Peer) { t.inner.Disconnected(peer) }
