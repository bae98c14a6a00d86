// Package orphanage implements the Orphan Store from spec.md §4.C: a
// bounded, multi-indexed container of transactions whose parents are not
// yet known, tracking which peers announced each one and evicting by a
// per-peer DoS score rather than plain recency.
package orphanage

import (
	"github.com/txrelay/txdownload/core/types"
)

// Announcement is the (Wtxid, Peer, sequence, reconsider) tuple from
// spec.md §3.
type Announcement struct {
	Wtxid      types.Wtxid
	Peer       types.Peer
	Sequence   uint64
	Reconsider bool
}

type key struct {
	wtxid types.Wtxid
	peer  types.Peer
}

type peerAggregate struct {
	announcements int
	weight        int64
}

// Config bounds the store's global size, per spec.md §4.C's DoS-fair
// eviction parameters.
type Config struct {
	// MaxGlobalAnnouncements caps the total number of announcement rows.
	MaxGlobalAnnouncements int
	// ReservedPeerWeight is the weight budget reserved for each active peer
	// slot when computing MaxGlobalWeight.
	ReservedPeerWeight int64
}

// DefaultConfig matches spec.md §4.C's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxGlobalAnnouncements: 100,
		ReservedPeerWeight:     404_000,
	}
}

// Orphanage is the Orphan Store. It is not internally synchronized: the
// download coordinator serializes all access behind its single mutex
// (spec.md §5), the same way every other subordinate component here does.
type Orphanage struct {
	cfg Config
	seq uint64

	byKey   map[key]*Announcement
	byWtxid map[types.Wtxid]map[types.Peer]*Announcement
	txs     map[types.Wtxid]*types.Transaction

	peerAnnouncements map[types.Peer][]*Announcement
	peerAgg           map[types.Peer]peerAggregate

	outpoints map[types.Outpoint]map[types.Wtxid]struct{}
}

// New builds an empty Orphanage.
func New(cfg Config) *Orphanage {
	return &Orphanage{
		cfg:               cfg,
		byKey:             make(map[key]*Announcement),
		byWtxid:           make(map[types.Wtxid]map[types.Peer]*Announcement),
		txs:               make(map[types.Wtxid]*types.Transaction),
		peerAnnouncements: make(map[types.Peer][]*Announcement),
		peerAgg:           make(map[types.Peer]peerAggregate),
		outpoints:         make(map[types.Outpoint]map[types.Wtxid]struct{}),
	}
}

func (o *Orphanage) nextSequence() uint64 {
	o.seq++
	return o.seq
}

// AddTx implements spec.md's add_tx: records peer as an announcer of tx.
// Returns false if (wtxid, peer) is already present or tx exceeds the
// standard weight limit; otherwise true iff this is the transaction's
// first announcer.
func (o *Orphanage) AddTx(tx *types.Transaction, peer types.Peer) bool {
	wtxid := tx.Wtxid()
	k := key{wtxid, peer}
	if _, exists := o.byKey[k]; exists {
		return false
	}
	if tx.Weight() > types.MaxStandardTxWeight {
		return false
	}
	isFirstAnnouncer := len(o.byWtxid[wtxid]) == 0

	ann := &Announcement{Wtxid: wtxid, Peer: peer, Sequence: o.nextSequence()}
	o.insert(ann, tx)
	return isFirstAnnouncer
}

// AddAnnouncer implements spec.md's add_announcer: adds peer as an
// additional announcer of an already-known wtxid. Returns false if no
// announcement for wtxid exists yet, or (wtxid, peer) is already present.
func (o *Orphanage) AddAnnouncer(wtxid types.Wtxid, peer types.Peer) bool {
	if len(o.byWtxid[wtxid]) == 0 {
		return false
	}
	k := key{wtxid, peer}
	if _, exists := o.byKey[k]; exists {
		return false
	}
	tx := o.txs[wtxid]
	ann := &Announcement{Wtxid: wtxid, Peer: peer, Sequence: o.nextSequence()}
	o.insert(ann, tx)
	return true
}

func (o *Orphanage) insert(ann *Announcement, tx *types.Transaction) {
	o.byKey[key{ann.Wtxid, ann.Peer}] = ann
	if o.byWtxid[ann.Wtxid] == nil {
		o.byWtxid[ann.Wtxid] = make(map[types.Peer]*Announcement)
		o.txs[ann.Wtxid] = tx
		o.indexOutpoints(tx, ann.Wtxid)
	}
	o.byWtxid[ann.Wtxid][ann.Peer] = ann
	o.peerAnnouncements[ann.Peer] = append(o.peerAnnouncements[ann.Peer], ann)

	agg := o.peerAgg[ann.Peer]
	agg.announcements++
	agg.weight += tx.Weight()
	o.peerAgg[ann.Peer] = agg
}

func (o *Orphanage) indexOutpoints(tx *types.Transaction, wtxid types.Wtxid) {
	for _, in := range tx.Inputs {
		if o.outpoints[in] == nil {
			o.outpoints[in] = make(map[types.Wtxid]struct{})
		}
		o.outpoints[in][wtxid] = struct{}{}
	}
}

func (o *Orphanage) unindexOutpoints(tx *types.Transaction, wtxid types.Wtxid) {
	for _, in := range tx.Inputs {
		delete(o.outpoints[in], wtxid)
		if len(o.outpoints[in]) == 0 {
			delete(o.outpoints, in)
		}
	}
}

// removeAnnouncement drops a single (wtxid, peer) announcement and adjusts
// every index and aggregate that refers to it. It does not remove the
// wtxid's entry even if it was the last announcer — callers that need that
// check it via len(o.byWtxid[wtxid]) afterward.
func (o *Orphanage) removeAnnouncement(ann *Announcement, tx *types.Transaction) {
	delete(o.byKey, key{ann.Wtxid, ann.Peer})
	delete(o.byWtxid[ann.Wtxid], ann.Peer)

	peerAnns := o.peerAnnouncements[ann.Peer]
	for i, a := range peerAnns {
		if a == ann {
			o.peerAnnouncements[ann.Peer] = append(peerAnns[:i], peerAnns[i+1:]...)
			break
		}
	}
	if len(o.peerAnnouncements[ann.Peer]) == 0 {
		delete(o.peerAnnouncements, ann.Peer)
	}

	agg := o.peerAgg[ann.Peer]
	agg.announcements--
	agg.weight -= tx.Weight()
	if agg.announcements <= 0 {
		delete(o.peerAgg, ann.Peer)
	} else {
		o.peerAgg[ann.Peer] = agg
	}
}

// removeWtxidIfOrphaned deletes wtxid's tx record and outpoint-index
// entries once it has no announcers left.
func (o *Orphanage) removeWtxidIfOrphaned(wtxid types.Wtxid) {
	if len(o.byWtxid[wtxid]) > 0 {
		return
	}
	delete(o.byWtxid, wtxid)
	if tx, ok := o.txs[wtxid]; ok {
		o.unindexOutpoints(tx, wtxid)
	}
	delete(o.txs, wtxid)
}

// EraseTx implements spec.md's erase_tx: removes every announcement for
// wtxid. Returns 1 if wtxid was present, 0 otherwise.
func (o *Orphanage) EraseTx(wtxid types.Wtxid) uint32 {
	byPeer, ok := o.byWtxid[wtxid]
	if !ok {
		return 0
	}
	tx := o.txs[wtxid]
	for _, ann := range byPeer {
		o.removeAnnouncement(ann, tx)
	}
	o.removeWtxidIfOrphaned(wtxid)
	return 1
}

// EraseForPeer implements spec.md's erase_for_peer: removes every
// announcement made by peer, fully dropping any wtxid that loses its last
// announcer.
func (o *Orphanage) EraseForPeer(peer types.Peer) {
	anns := append([]*Announcement(nil), o.peerAnnouncements[peer]...)
	for _, ann := range anns {
		tx := o.txs[ann.Wtxid]
		o.removeAnnouncement(ann, tx)
		o.removeWtxidIfOrphaned(ann.Wtxid)
	}
}

// EraseForBlock implements spec.md's erase_for_block: for every outpoint
// spent by the block, removes every orphan that spends it (now invalid or
// redundant). Returns the number of unique wtxids removed.
func (o *Orphanage) EraseForBlock(spentOutpoints []types.Outpoint) uint32 {
	toErase := make(map[types.Wtxid]struct{})
	for _, op := range spentOutpoints {
		for wtxid := range o.outpoints[op] {
			toErase[wtxid] = struct{}{}
		}
	}
	var n uint32
	for wtxid := range toErase {
		n += o.EraseTx(wtxid)
	}
	return n
}

// HaveTx reports whether any announcement exists for wtxid.
func (o *Orphanage) HaveTx(wtxid types.Wtxid) bool {
	return len(o.byWtxid[wtxid]) > 0
}

// HaveTxFromPeer reports whether peer has announced wtxid.
func (o *Orphanage) HaveTxFromPeer(wtxid types.Wtxid, peer types.Peer) bool {
	_, ok := o.byKey[key{wtxid, peer}]
	return ok
}

// GetTx returns the stored transaction for wtxid, if any.
func (o *Orphanage) GetTx(wtxid types.Wtxid) (*types.Transaction, bool) {
	tx, ok := o.txs[wtxid]
	return tx, ok
}

// Size returns the total number of announcement rows currently stored.
func (o *Orphanage) Size() int { return len(o.byKey) }

// UniqueOrphans returns the number of distinct wtxids stored.
func (o *Orphanage) UniqueOrphans() int { return len(o.txs) }

// UniqueOrphanWeight returns the summed weight of every distinct transaction
// held, counted once regardless of announcer count, for metrics reporting.
func (o *Orphanage) UniqueOrphanWeight() int64 {
	var total int64
	for _, tx := range o.txs {
		total += tx.Weight()
	}
	return total
}
