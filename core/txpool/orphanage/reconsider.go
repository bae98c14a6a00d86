package orphanage

import (
	"math/rand"
	"sort"

	"github.com/txrelay/txdownload/core/types"
)

// AddChildrenToWorkSet implements spec.md's add_children_to_work_set: for
// every output of parent, finds orphans that spend it and marks exactly one
// of their announcers (chosen uniformly at random) reconsiderable. rnd is
// caller-supplied so tests can drive this deterministically; there is no
// package-global source.
func (o *Orphanage) AddChildrenToWorkSet(parent *types.Transaction, rnd *rand.Rand) {
	parentTxid := parent.Txid()
	for i := range parent.Outputs {
		op := types.Outpoint{Hash: parentTxid, Index: uint32(i)}
		wtxids := o.outpoints[op]
		for wtxid := range wtxids {
			o.markRandomAnnouncerReconsiderable(wtxid, rnd)
		}
	}
}

func (o *Orphanage) markRandomAnnouncerReconsiderable(wtxid types.Wtxid, rnd *rand.Rand) {
	byPeer := o.byWtxid[wtxid]
	if len(byPeer) == 0 {
		return
	}
	peers := make([]types.Peer, 0, len(byPeer))
	for peer := range byPeer {
		peers = append(peers, peer)
	}
	// Sort first so the random index picks a peer deterministically given
	// rnd's stream, independent of Go's randomized map iteration order.
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	chosen := peers[rnd.Intn(len(peers))]
	byPeer[chosen].Reconsider = true
}

// GetTxToReconsider implements spec.md's get_tx_to_reconsider: finds the
// lowest-sequence reconsiderable announcement for peer, flips it back to
// false, and returns its transaction.
func (o *Orphanage) GetTxToReconsider(peer types.Peer) (*types.Transaction, bool) {
	ann := o.lowestSequenceReconsiderable(peer)
	if ann == nil {
		return nil, false
	}
	ann.Reconsider = false
	return o.txs[ann.Wtxid], true
}

// HaveTxToReconsider reports whether peer has any reconsiderable
// announcement pending.
func (o *Orphanage) HaveTxToReconsider(peer types.Peer) bool {
	return o.lowestSequenceReconsiderable(peer) != nil
}

func (o *Orphanage) lowestSequenceReconsiderable(peer types.Peer) *Announcement {
	var best *Announcement
	for _, ann := range o.peerAnnouncements[peer] {
		if !ann.Reconsider {
			continue
		}
		if best == nil || ann.Sequence < best.Sequence {
			best = ann
		}
	}
	return best
}

// GetChildrenFromSamePeer implements spec.md's get_children_from_same_peer:
// for each output of parent, finds orphans spending it where peer is among
// the announcers, returned most-recent-first and deduplicated.
func (o *Orphanage) GetChildrenFromSamePeer(parent *types.Transaction, peer types.Peer) []*types.Transaction {
	parentTxid := parent.Txid()
	seen := make(map[types.Wtxid]struct{})
	var matches []*Announcement

	for i := range parent.Outputs {
		op := types.Outpoint{Hash: parentTxid, Index: uint32(i)}
		for wtxid := range o.outpoints[op] {
			if _, dup := seen[wtxid]; dup {
				continue
			}
			ann, ok := o.byWtxid[wtxid][peer]
			if !ok {
				continue
			}
			seen[wtxid] = struct{}{}
			matches = append(matches, ann)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Sequence > matches[j].Sequence })

	out := make([]*types.Transaction, len(matches))
	for i, ann := range matches {
		out[i] = o.txs[ann.Wtxid]
	}
	return out
}
