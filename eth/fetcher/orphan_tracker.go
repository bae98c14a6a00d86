package fetcher

import (
	"time"

	"github.com/txrelay/txdownload/common/mclock"
	"github.com/txrelay/txdownload/core/types"
)

// DefaultOrphanAncestorGetdataInterval is spec.md §4.D's fixed resolution
// deadline absent any caller-supplied override: a peer gets this long to
// answer a GETDATA for an orphan's missing ancestors before the request is
// abandoned and retried elsewhere.
const DefaultOrphanAncestorGetdataInterval = 60 * time.Second

// OrphanResolutionTracker is spec.md §4.D: identical state machine to the
// Request Tracker, but keyed on Wtxid (an orphan is requested by its full
// witness identity, since ancestor resolution cares about the exact
// transaction already sitting in the orphanage) and capped at exactly one
// in-flight resolution request per peer.
type OrphanResolutionTracker struct {
	inner           *Tracker[types.Wtxid]
	resolveInterval time.Duration
}

// NewOrphanResolutionTracker builds the tracker with the given clock, a
// per-peer candidate cap (how many distinct orphans a single peer may be
// the designated resolver for at once, in-flight is always capped at 1),
// and the resolution deadline to apply in Requested — spec.md §6's
// orphan_ancestor_getdata_interval. A zero resolveInterval falls back to
// DefaultOrphanAncestorGetdataInterval.
func NewOrphanResolutionTracker(clock mclock.Clock, maxPeerCandidates int, resolveInterval time.Duration) *OrphanResolutionTracker {
	if resolveInterval == 0 {
		resolveInterval = DefaultOrphanAncestorGetdataInterval
	}
	return &OrphanResolutionTracker{
		inner: NewTracker(clock, Limits{
			MaxPeerCandidates: maxPeerCandidates,
			MaxPeerInFlight:   1,
		}, types.Wtxid.Hash),
		resolveInterval: resolveInterval,
	}
}

// NeedsResolution registers peer as a candidate resolver for wtxid's missing
// ancestors, announced at requestTime.
func (t *OrphanResolutionTracker) NeedsResolution(peer types.Peer, wtxid types.Wtxid, requestTime mclock.AbsTime) bool {
	return t.inner.Offer(peer, wtxid, false, requestTime, false)
}

// GetRequestable returns the orphans peer should now send a resolution
// GETDATA for, plus any of peer's own resolution requests that just
// expired without a response.
func (t *OrphanResolutionTracker) GetRequestable(peer types.Peer, now mclock.AbsTime) (ready, expired []types.Wtxid) {
	return t.inner.Requestable(peer, now)
}

// Requested marks wtxid's ancestor resolution as in flight to peer, with a
// deadline fixed at the configured resolution interval from now.
func (t *OrphanResolutionTracker) Requested(peer types.Peer, wtxid types.Wtxid, now mclock.AbsTime) {
	t.inner.Requested(peer, wtxid, now.Add(t.resolveInterval))
}

// ReceivedResponse completes the in-flight resolution request for wtxid
// from peer.
func (t *OrphanResolutionTracker) ReceivedResponse(peer types.Peer, wtxid types.Wtxid) {
	t.inner.ReceivedResponse(peer, wtxid)
}

// Forget removes every resolution invitation for wtxid, across all peers —
// called once the orphan itself leaves the orphanage.
func (t *OrphanResolutionTracker) Forget(wtxid types.Wtxid) {
	t.inner.Forget(wtxid)
}

// CountInFlight reports whether peer currently has a resolution request
// outstanding (0 or 1, given the fixed in-flight cap).
func (t *OrphanResolutionTracker) CountInFlight(peer types.Peer) int {
	return t.inner.CountInFlight(peer)
}

// Size returns the total number of tracked resolution candidates.
func (t *OrphanResolutionTracker) Size() int { return t.inner.Size() }

// Disconnected drops every resolution invitation involving peer.
func (t *OrphanResolutionTracker) Disconnected(peer types.Peer) { t.inner.Disconnected(peer) }
