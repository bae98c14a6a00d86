// Package types defines the transaction and identifier model shared by the
// orphanage, request trackers, and download coordinator.
package types

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/txrelay/txdownload/internal/dbgassert"
)

// Txid identifies a transaction by a hash that excludes witness data.
type Txid struct{ h chainhash.Hash }

// Wtxid identifies a transaction by a hash that includes witness data. For
// transactions without witness data, Wtxid and Txid coincide.
type Wtxid struct{ h chainhash.Hash }

// TxidFromHash wraps a raw hash as a Txid.
func TxidFromHash(h chainhash.Hash) Txid { return Txid{h} }

// WtxidFromHash wraps a raw hash as a Wtxid.
func WtxidFromHash(h chainhash.Hash) Wtxid { return Wtxid{h} }

// Hash returns the underlying 32-byte hash.
func (t Txid) Hash() chainhash.Hash { return t.h }

// Hash returns the underlying 32-byte hash.
func (w Wtxid) Hash() chainhash.Hash { return w.h }

func (t Txid) String() string  { return t.h.String() }
func (w Wtxid) String() string { return w.h.String() }

// IsZero reports whether the identifier is the zero value.
func (t Txid) IsZero() bool  { return t.h == chainhash.Hash{} }
func (w Wtxid) IsZero() bool { return w.h == chainhash.Hash{} }

// GenericTxid is the tagged variant {Txid(h) | Wtxid(h)} from spec.md §3: an
// announcement references a hash without the peer having told us yet whether
// it is committing to the txid or the wtxid.
type GenericTxid struct {
	hash    chainhash.Hash
	isWtxid bool
}

// NewGenericTxidFromTxid builds a GenericTxid tagged as a plain txid.
func NewGenericTxidFromTxid(t Txid) GenericTxid {
	return GenericTxid{hash: t.h, isWtxid: false}
}

// NewGenericTxidFromWtxid builds a GenericTxid tagged as a wtxid.
func NewGenericTxidFromWtxid(w Wtxid) GenericTxid {
	return GenericTxid{hash: w.h, isWtxid: true}
}

// IsWtxid reports whether this GenericTxid is tagged as a wtxid.
func (g GenericTxid) IsWtxid() bool { return g.isWtxid }

// Hash returns the underlying hash, regardless of tag. It is the correct key
// to use for tracker/bloom-filter lookups, which index by hash only.
func (g GenericTxid) Hash() chainhash.Hash { return g.hash }

// AsTxid returns the Txid view of this identifier. It asserts (debug builds
// only) that the identifier was indeed tagged as a txid.
func (g GenericTxid) AsTxid() Txid {
	dbgassert.Assert(!g.isWtxid, "AsTxid called on a wtxid-tagged GenericTxid")
	return Txid{g.hash}
}

// AsWtxid returns the Wtxid view of this identifier. It asserts (debug
// builds only) that the identifier was indeed tagged as a wtxid.
func (g GenericTxid) AsWtxid() Wtxid {
	dbgassert.Assert(g.isWtxid, "AsWtxid called on a txid-tagged GenericTxid")
	return Wtxid{g.hash}
}

func (g GenericTxid) String() string {
	if g.isWtxid {
		return fmt.Sprintf("wtxid:%s", g.hash)
	}
	return fmt.Sprintf("txid:%s", g.hash)
}

// Peer is an opaque identifier for a connected network peer.
type Peer uint64
