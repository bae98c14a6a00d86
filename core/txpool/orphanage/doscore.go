package orphanage

import (
	"github.com/txrelay/txdownload/common"
	"github.com/txrelay/txdownload/internal/dbgassert"

	"github.com/txrelay/txdownload/core/types"
)

// peerScore is the (peer, dos_score) pair from spec.md §4.C's eviction
// algorithm. ratio is max(announcements/max_peer_announcements,
// weight/max_peer_weight); denominator is whichever of the two limits
// produced the winning ratio, used only to break exact ties.
type peerScore struct {
	peer        types.Peer
	ratio       float64
	denominator float64
}

// CompareTo orders peerScores so that a common.Heap (a min-heap) pops the
// *worst* peer first: highest ratio first, and on an exact tie, the
// smaller denominator first (spec.md's announcement-spammer-before-weight-
// spammer bias).
func (s peerScore) CompareTo(other peerScore) int {
	switch {
	case s.ratio > other.ratio:
		return -1
	case s.ratio < other.ratio:
		return 1
	case s.denominator < other.denominator:
		return -1
	case s.denominator > other.denominator:
		return 1
	default:
		return 0
	}
}

// maxPeerAnnouncements / maxPeerWeight implement spec.md §4.C's dynamic
// per-peer allowances.
func (o *Orphanage) maxPeerAnnouncements(activePeers int) int {
	if activePeers < 1 {
		activePeers = 1
	}
	return o.cfg.MaxGlobalAnnouncements / activePeers
}

func (o *Orphanage) maxPeerWeight() int64 {
	return o.cfg.ReservedPeerWeight
}

func (o *Orphanage) maxGlobalWeight(activePeers int) int64 {
	if activePeers < 1 {
		activePeers = 1
	}
	return o.cfg.ReservedPeerWeight * int64(activePeers)
}

func (o *Orphanage) scoreOf(peer types.Peer, maxAnn int, maxWeight int64) peerScore {
	agg := o.peerAgg[peer]
	annRatio := float64(agg.announcements) / float64(maxAnn)
	weightRatio := float64(agg.weight) / float64(maxWeight)
	if annRatio >= weightRatio {
		return peerScore{peer: peer, ratio: annRatio, denominator: float64(maxAnn)}
	}
	return peerScore{peer: peer, ratio: weightRatio, denominator: float64(maxWeight)}
}

// totalWeight sums every peer's weight aggregate; used only to decide
// whether the global weight limit is currently exceeded.
func (o *Orphanage) totalWeight() int64 {
	var total int64
	for _, agg := range o.peerAgg {
		total += agg.weight
	}
	return total
}

// exceedsLimits reports whether either global limit is currently violated.
func (o *Orphanage) exceedsLimits(activePeers int) bool {
	return o.Size() > o.cfg.MaxGlobalAnnouncements || o.totalWeight() > o.maxGlobalWeight(activePeers)
}

// evictOldestNonReconsider removes the lowest-sequence, non-reconsiderable
// announcement belonging to peer. It is the unit of work spec.md §4.C's
// eviction loop performs once per iteration.
func (o *Orphanage) evictOldestNonReconsider(peer types.Peer) bool {
	var victim *Announcement
	for _, ann := range o.peerAnnouncements[peer] {
		if ann.Reconsider {
			continue
		}
		if victim == nil || ann.Sequence < victim.Sequence {
			victim = ann
		}
	}
	if victim == nil {
		return false
	}
	tx := o.txs[victim.Wtxid]
	o.removeAnnouncement(victim, tx)
	o.removeWtxidIfOrphaned(victim.Wtxid)
	return true
}

// LimitOrphans implements spec.md §4.C's limit_orphans: the DoS-fair
// eviction routine, invoked with the caller's current count of active
// (connected) peers. It is a no-op when within bounds.
func (o *Orphanage) LimitOrphans(activePeers int) {
	if !o.exceedsLimits(activePeers) {
		return
	}
	maxAnn := o.maxPeerAnnouncements(activePeers)
	maxWeight := o.maxPeerWeight()

	h := common.NewHeap[peerScore]()
	for peer := range o.peerAgg {
		h.Push(o.scoreOf(peer, maxAnn, maxWeight))
	}

	for o.exceedsLimits(activePeers) && h.Len() > 0 {
		worst := h.Pop()
		dbgassert.Assert(worst.ratio > 1, "limit_orphans: popped a peer within its allowance while a global limit is exceeded")

		if !o.evictOldestNonReconsider(worst.peer) {
			// Every one of this peer's announcements is reconsiderable;
			// per spec.md's protection invariant they cannot be evicted.
			// Move on to the next-worst peer instead of looping forever.
			continue
		}
		if _, stillPresent := o.peerAgg[worst.peer]; stillPresent {
			h.Push(o.scoreOf(worst.peer, maxAnn, maxWeight))
		}
	}
}
