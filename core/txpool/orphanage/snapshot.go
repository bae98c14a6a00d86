package orphanage

import (
	"fmt"

	"github.com/txrelay/txdownload/core/types"
)

// Snapshot returns every wtxid currently held, mirroring the original
// implementation's GetOrphanTransactions()-style enumeration hook for
// introspection and tests.
func (o *Orphanage) Snapshot() []types.Wtxid {
	out := make([]types.Wtxid, 0, len(o.txs))
	for wtxid := range o.txs {
		out = append(out, wtxid)
	}
	return out
}

// SanityCheck recomputes every invariant and aggregate from scratch by
// walking the primary, secondary, and outpoint indices, and reports the
// first inconsistency found. It mirrors TxOrphanage::SanityCheck in the
// original implementation and exists for tests to use as a round-trip law
// checker after arbitrary sequences of mutations.
func (o *Orphanage) SanityCheck() error {
	if err := o.checkByKeyMatchesByWtxid(); err != nil {
		return err
	}
	if err := o.checkPeerAggregates(); err != nil {
		return err
	}
	if err := o.checkOutpointIndex(); err != nil {
		return err
	}
	if err := o.checkPeerAnnouncementsMatchByKey(); err != nil {
		return err
	}
	return nil
}

func (o *Orphanage) checkByKeyMatchesByWtxid() error {
	count := 0
	for wtxid, byPeer := range o.byWtxid {
		if len(byPeer) == 0 {
			return fmt.Errorf("sanity: wtxid %s has an empty announcer map", wtxid)
		}
		if _, ok := o.txs[wtxid]; !ok {
			return fmt.Errorf("sanity: wtxid %s has announcers but no stored transaction", wtxid)
		}
		for peer, ann := range byPeer {
			if ann.Peer != peer || ann.Wtxid != wtxid {
				return fmt.Errorf("sanity: announcement %+v stored under mismatched key (wtxid=%s, peer=%d)", ann, wtxid, peer)
			}
			found, ok := o.byKey[key{wtxid, peer}]
			if !ok || found != ann {
				return fmt.Errorf("sanity: byKey missing or mismatched entry for (wtxid=%s, peer=%d)", wtxid, peer)
			}
			count++
		}
	}
	if count != len(o.byKey) {
		return fmt.Errorf("sanity: byKey has %d entries, byWtxid reaches %d", len(o.byKey), count)
	}
	return nil
}

func (o *Orphanage) checkPeerAggregates() error {
	want := make(map[types.Peer]peerAggregate)
	for _, ann := range o.byKey {
		tx := o.txs[ann.Wtxid]
		agg := want[ann.Peer]
		agg.announcements++
		agg.weight += tx.Weight()
		want[ann.Peer] = agg
	}
	if len(want) != len(o.peerAgg) {
		return fmt.Errorf("sanity: peerAgg tracks %d peers, recomputed %d", len(o.peerAgg), len(want))
	}
	for peer, agg := range want {
		have, ok := o.peerAgg[peer]
		if !ok || have != agg {
			return fmt.Errorf("sanity: peer %d aggregate mismatch: have %+v, want %+v", peer, have, agg)
		}
	}
	return nil
}

func (o *Orphanage) checkOutpointIndex() error {
	want := make(map[types.Outpoint]map[types.Wtxid]struct{})
	for wtxid, tx := range o.txs {
		for _, in := range tx.Inputs {
			if want[in] == nil {
				want[in] = make(map[types.Wtxid]struct{})
			}
			want[in][wtxid] = struct{}{}
		}
	}
	if len(want) != len(o.outpoints) {
		return fmt.Errorf("sanity: outpoint index tracks %d outpoints, recomputed %d", len(o.outpoints), len(want))
	}
	for op, wtxids := range want {
		have, ok := o.outpoints[op]
		if !ok || len(have) != len(wtxids) {
			return fmt.Errorf("sanity: outpoint %+v index mismatch", op)
		}
		for wtxid := range wtxids {
			if _, ok := have[wtxid]; !ok {
				return fmt.Errorf("sanity: outpoint %+v missing wtxid %s", op, wtxid)
			}
		}
	}
	return nil
}

func (o *Orphanage) checkPeerAnnouncementsMatchByKey() error {
	for peer, anns := range o.peerAnnouncements {
		seenSeq := make(map[uint64]struct{}, len(anns))
		for _, ann := range anns {
			if ann.Peer != peer {
				return fmt.Errorf("sanity: peerAnnouncements[%d] contains an announcement for peer %d", peer, ann.Peer)
			}
			if _, dup := seenSeq[ann.Sequence]; dup {
				return fmt.Errorf("sanity: peer %d has duplicate sequence %d", peer, ann.Sequence)
			}
			seenSeq[ann.Sequence] = struct{}{}
			if found, ok := o.byKey[key{ann.Wtxid, peer}]; !ok || found != ann {
				return fmt.Errorf("sanity: peerAnnouncements entry not mirrored in byKey for (wtxid=%s, peer=%d)", ann.Wtxid, peer)
			}
		}
	}
	return nil
}
