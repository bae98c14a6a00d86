// Package txdownload implements the Download Coordinator from spec.md §4.E:
// the top-level state machine that routes peer announcements, transaction
// arrivals, validation outcomes, and block events through the rolling
// filters, request tracker, orphan store, and orphan-resolution tracker.
package txdownload

import (
	"math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/common/bloom"
	"github.com/txrelay/txdownload/common/mclock"
	"github.com/txrelay/txdownload/core/txpool/orphanage"
	"github.com/txrelay/txdownload/core/types"
	"github.com/txrelay/txdownload/eth/fetcher"
	"github.com/txrelay/txdownload/log"

	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator is the Download Coordinator from spec.md §4.E. It serializes
// every operation under a single mutex ("the download mutex", spec.md §5).
// The only external call made while it is held is the Mempool.Exists query;
// the coordinator never calls a Validator or Networking.
type Coordinator struct {
	mu sync.Mutex

	cfg     Config
	clock   mclock.Clock
	log     log.Logger
	metrics *Metrics

	peers    map[types.Peer]PeerInfo
	counters peerCounters

	reqTracker   *fetcher.TxTracker
	orphanTrack  *fetcher.OrphanResolutionTracker
	orphans      *orphanage.Orphanage
	recentReject *bloom.Filter
	recentConfrm *bloom.Filter
	reconsider   *reconsiderableRejects
	rnd          *rand.Rand

	lastTip chainhash.Hash

	mempool Mempool
}

// New builds a Coordinator. reg may be nil to disable metrics.
func New(cfg Config, mempool Mempool, clock mclock.Clock, reg *prometheus.Registry) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		clock:   clock,
		log:     log.New("module", "txdownload"),
		metrics: newMetrics(reg),
		peers:   make(map[types.Peer]PeerInfo),
		reqTracker: fetcher.NewTxTracker(clock, fetcher.Limits{
			MaxPeerCandidates: cfg.MaxPeerAnnouncements,
			MaxPeerInFlight:   cfg.MaxPeerInFlight,
		}),
		orphanTrack: fetcher.NewOrphanResolutionTracker(clock, cfg.MaxPeerAnnouncements, cfg.OrphanAncestorGetdataInterval),
		orphans: orphanage.New(orphanage.Config{
			MaxGlobalAnnouncements: cfg.MaxOrphanTxs,
			ReservedPeerWeight:     cfg.ReservedPeerWeight,
		}),
		recentReject: bloom.New(cfg.RecentRejectsN, cfg.RecentRejectsP),
		recentConfrm: bloom.New(cfg.RecentConfirmedN, cfg.RecentConfirmedP),
		reconsider:   newReconsiderableRejects(cfg.MaxReconsiderableRejects),
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
		mempool:      mempool,
	}
}

func (c *Coordinator) activePeers() int { return len(c.peers) }

func (c *Coordinator) updateMetrics() {
	if c.metrics == nil {
		return
	}
	c.metrics.setOrphanStoreSize(c.orphans.Size())
	c.metrics.setUniqueOrphanWeight(c.orphans.UniqueOrphanWeight())
	c.metrics.setRequestTrackerSize(c.reqTracker.Size())
	c.metrics.setResolutionTrackerSize(c.orphanTrack.Size())
	c.metrics.setInFlightRequests(c.reqTracker.TotalInFlight())
}

// ConnectedPeer implements spec.md's connected_peer: insert peer info and
// adjust the wtxid-relay peer counter.
func (c *Coordinator) ConnectedPeer(peer types.Peer, info PeerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.peers[peer] = info
	c.counters.add(info)
}

// DisconnectedPeer implements spec.md's disconnected_peer: every trace of
// peer is removed from the orphan store and both trackers, then its
// connection info.
func (c *Coordinator) DisconnectedPeer(peer types.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orphans.EraseForPeer(peer)
	c.reqTracker.Disconnected(peer)
	c.orphanTrack.Disconnected(peer)

	if info, ok := c.peers[peer]; ok {
		c.counters.remove(info)
		delete(c.peers, peer)
	}
	c.updateMetrics()
}

// alreadyHave implements spec.md §3's "orphan OR recent-confirmed OR
// recent-rejected OR in mempool" lifecycle predicate.
func (c *Coordinator) alreadyHave(gtxid types.GenericTxid) bool {
	if c.orphans.HaveTx(types.WtxidFromHash(gtxid.Hash())) {
		return true
	}
	h := gtxid.Hash()
	if c.recentConfrm.Contains(h) || c.recentReject.Contains(h) {
		return true
	}
	return c.mempool != nil && c.mempool.Exists(gtxid)
}

// requestDelay computes spec.md §4.B's standard delay stack for an
// announcement of gtxid from peer: non-preferred +2s, txid-typed while
// wtxid-relay peers exist +2s, overloaded (≥max in-flight, no relay
// permission) +2s.
func (c *Coordinator) requestDelay(peer types.Peer, info PeerInfo, gtxid types.GenericTxid) mclock.AbsTime {
	var delay mclock.AbsTime
	if !info.Preferred {
		delay += mclock.AbsTime(c.cfg.NonPreferredDelay)
	}
	if !gtxid.IsWtxid() && c.counters.numWtxidRelayPeers > 0 {
		delay += mclock.AbsTime(c.cfg.TxidRelayDelay)
	}
	if c.reqTracker.CountInFlight(peer) >= c.cfg.MaxPeerInFlight && !info.RelayPermissions {
		delay += mclock.AbsTime(c.cfg.OverloadedDelay)
	}
	return delay
}

// ReceivedInv implements spec.md's received_inv(peer, gtxid, now).
func (c *Coordinator) ReceivedInv(peer types.Peer, gtxid types.GenericTxid, now mclock.AbsTime) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, known := c.peers[peer]
	if !known {
		return
	}

	wtxid := types.WtxidFromHash(gtxid.Hash())
	if c.orphans.HaveTx(wtxid) {
		c.orphans.AddAnnouncer(wtxid, peer)
		delay := c.requestDelay(peer, info, gtxid)
		c.orphanTrack.NeedsResolution(peer, wtxid, now+delay)
		return
	}

	if c.alreadyHave(gtxid) {
		return
	}

	delay := c.requestDelay(peer, info, gtxid)
	c.reqTracker.ReceivedInv(peer, gtxid, info.Preferred, now+delay, info.RelayPermissions)
}

// GetRequestsToSend implements spec.md's get_requests_to_send(peer, now):
// drains orphan-resolution requestables first, then normal fetches, marking
// each in-flight with a 60s deadline.
func (c *Coordinator) GetRequestsToSend(peer types.Peer, now mclock.AbsTime) []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, known := c.peers[peer]
	if !known {
		return nil
	}

	var out []Request

	// Expired requests are left as completed inside the trackers, so other
	// peers' candidates for the same hash can win it on their next poll.
	ready, _ := c.orphanTrack.GetRequestable(peer, now)
	for _, wtxid := range ready {
		c.orphanTrack.Requested(peer, wtxid, now)
		if info.PackageRelay {
			out = append(out, Request{Kind: RequestAncestorPackageInfo, Orphan: wtxid})
			continue
		}
		tx, ok := c.orphans.GetTx(wtxid)
		if !ok {
			continue
		}
		for _, in := range tx.Inputs {
			out = append(out, Request{Kind: RequestParentTxid, Parent: in.Hash})
		}
	}

	txReady, _ := c.reqTracker.GetRequestable(peer, now)
	deadline := now + mclock.AbsTime(c.cfg.GetdataTxInterval)
	for _, gtxid := range txReady {
		c.reqTracker.Requested(peer, gtxid, deadline)
		out = append(out, Request{Kind: RequestGetData, Tx: gtxid})
	}

	c.updateMetrics()
	return out
}

// ReceivedTx implements spec.md's received_tx(peer, tx) → already_have.
func (c *Coordinator) ReceivedTx(peer types.Peer, tx *types.Transaction) (alreadyHave bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reqTracker.ReceivedResponse(peer, types.NewGenericTxidFromTxid(tx.Txid()))
	c.reqTracker.ReceivedResponse(peer, types.NewGenericTxidFromWtxid(tx.Wtxid()))
	c.orphanTrack.ReceivedResponse(peer, tx.Wtxid())

	return c.alreadyHave(types.NewGenericTxidFromWtxid(tx.Wtxid()))
}

// ReceivedNotfound implements spec.md's received_notfound(peer, requests).
func (c *Coordinator) ReceivedNotfound(peer types.Peer, requests []Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, req := range requests {
		switch req.Kind {
		case RequestGetData:
			c.reqTracker.ReceivedResponse(peer, req.Tx)
		case RequestAncestorPackageInfo:
			c.orphanTrack.ReceivedResponse(peer, req.Orphan)
		case RequestParentTxid:
			// Individual parent-txid requests aren't tracked by either
			// tracker; the orphan simply remains unresolved until another
			// peer's resolution attempt succeeds or it is evicted.
		}
	}
}

// MempoolAcceptedTx implements spec.md's mempool_accepted_tx(tx).
func (c *Coordinator) MempoolAcceptedTx(tx *types.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orphans.AddChildrenToWorkSet(tx, c.rnd)
	c.reqTracker.Forget(tx.Txid().Hash())
	c.reqTracker.Forget(tx.Wtxid().Hash())
	c.orphans.EraseTx(tx.Wtxid())
	c.orphanTrack.Forget(tx.Wtxid())

	c.updateMetrics()
}

// MempoolRejectedTx implements spec.md's mempool_rejected_tx(tx, result) →
// shouldBecomeOrphan. Dispatches on the §7 result taxonomy.
func (c *Coordinator) MempoolRejectedTx(tx *types.Transaction, result ValidationResult) (shouldBecomeOrphan bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wtxid := tx.Wtxid()
	txid := tx.Txid()

	switch result {
	case ResultMissingInputs:
		for _, in := range tx.Inputs {
			if c.recentReject.Contains(in.Hash.Hash()) {
				c.recentReject.Insert(txid.Hash())
				c.recentReject.Insert(wtxid.Hash())
				c.reqTracker.Forget(wtxid.Hash())
				c.orphans.EraseTx(wtxid)
				c.metrics.incReject("missing_inputs_ancestor_rejected")
				return false
			}
		}
		return true

	case ResultWitnessStripped:
		return false

	case ResultInputsNotStandard:
		c.recentReject.Insert(txid.Hash())
		c.reqTracker.Forget(wtxid.Hash())
		c.orphans.EraseTx(wtxid)
		c.metrics.incReject("inputs_not_standard")
		return false

	case ResultSingleFailure:
		c.reconsider.Add(wtxid)
		c.reqTracker.Forget(wtxid.Hash())
		c.orphans.EraseTx(wtxid)
		c.metrics.incReject("single_failure")
		return false

	case ResultConsensus, ResultRecentConsensusChange, ResultNotStandard,
		ResultPrematureSpend, ResultWitnessMutated, ResultConflict, ResultMempoolPolicy:
		c.recentReject.Insert(wtxid.Hash())
		c.reqTracker.Forget(wtxid.Hash())
		c.orphans.EraseTx(wtxid)
		c.metrics.incReject("rejected")
		return false

	case ResultUnknown:
		c.reqTracker.Forget(wtxid.Hash())
		c.orphans.EraseTx(wtxid)
		return false

	default: // ResultUnset, ResultNoMempool, ResultAccepted (shouldn't reach here)
		c.log.Error("mempool_rejected_tx called with a non-rejecting result", "result", result)
		c.reqTracker.Forget(wtxid.Hash())
		c.orphans.EraseTx(wtxid)
		return false
	}
}

// BlockConnected implements spec.md's block_connected(block, new_tip).
func (c *Coordinator) BlockConnected(block *types.Block, newTip chainhash.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orphans.EraseForBlock(block.SpentOutpoints())
	for _, tx := range block.Txs {
		c.reqTracker.Forget(tx.Txid().Hash())
		c.reqTracker.Forget(tx.Wtxid().Hash())
		c.recentConfrm.Insert(tx.Txid().Hash())
		c.recentConfrm.Insert(tx.Wtxid().Hash())
		c.orphanTrack.Forget(tx.Wtxid())
	}

	if newTip != c.lastTip {
		c.recentReject.Reset()
	}
	c.lastTip = newTip
	c.updateMetrics()
}

// BlockDisconnected implements spec.md's block_disconnected(): only the
// recent-confirmed filter is reset; recent-rejects is preserved to avoid
// re-requesting transactions still invalid after the reorg.
func (c *Coordinator) BlockDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recentConfrm.Reset()
}

// NewOrphanTx implements spec.md's new_orphan_tx(tx, peer, now).
func (c *Coordinator) NewOrphanTx(tx *types.Transaction, peer types.Peer, now mclock.AbsTime) (newlyAdded bool, uniqueParentTxids []types.Txid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[types.Txid]struct{})
	for _, in := range tx.Inputs {
		if _, dup := seen[in.Hash]; dup {
			continue
		}
		if c.mempool != nil && c.mempool.Exists(types.NewGenericTxidFromTxid(in.Hash)) {
			continue
		}
		seen[in.Hash] = struct{}{}
		uniqueParentTxids = append(uniqueParentTxids, in.Hash)
	}

	newlyAdded = c.orphans.AddTx(tx, peer)
	sizeBeforeLimit := c.orphans.Size()
	c.orphans.LimitOrphans(c.activePeers())
	if evicted := sizeBeforeLimit - c.orphans.Size(); evicted > 0 {
		c.metrics.incOrphanEvictions(evicted)
	}

	wtxid := tx.Wtxid()
	if !c.orphans.HaveTxFromPeer(wtxid, peer) {
		// Evicted immediately by limit_orphans; nothing further to schedule.
		c.updateMetrics()
		return newlyAdded, uniqueParentTxids
	}

	info := c.peers[peer]
	delay := c.requestDelay(peer, info, types.NewGenericTxidFromWtxid(wtxid))
	c.orphanTrack.NeedsResolution(peer, wtxid, now+delay)

	candidates := make(map[types.Peer]struct{})
	for _, p := range c.reqTracker.CandidatePeers(tx.Txid().Hash()) {
		candidates[p] = struct{}{}
	}
	for _, p := range c.reqTracker.CandidatePeers(tx.Wtxid().Hash()) {
		candidates[p] = struct{}{}
	}
	for candidate := range candidates {
		if candidate == peer {
			continue
		}
		candInfo, known := c.peers[candidate]
		if !known {
			continue
		}
		candDelay := c.requestDelay(candidate, candInfo, types.NewGenericTxidFromWtxid(wtxid))
		c.orphanTrack.NeedsResolution(candidate, wtxid, now+candDelay)
	}

	c.updateMetrics()
	return newlyAdded, uniqueParentTxids
}
