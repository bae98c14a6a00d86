package txdownload

import "github.com/txrelay/txdownload/core/types"

// RequestKind distinguishes the three shapes of outbound request
// GetRequestsToSend can produce.
type RequestKind int

const (
	// RequestGetData is a normal transaction fetch, by whichever
	// identifier the announcing peer used.
	RequestGetData RequestKind = iota
	// RequestAncestorPackageInfo asks a package-relay peer for ancestor
	// package information about an orphan, identified by its wtxid.
	RequestAncestorPackageInfo
	// RequestParentTxid asks a non-package-relay peer to supply a single
	// missing parent transaction, by txid.
	RequestParentTxid
)

// Request is one entry of what GetRequestsToSend returns: the networking
// layer is responsible for actually framing and sending it.
type Request struct {
	Kind RequestKind

	Tx     types.GenericTxid // valid when Kind == RequestGetData
	Orphan types.Wtxid       // valid when Kind == RequestAncestorPackageInfo
	Parent types.Txid        // valid when Kind == RequestParentTxid
}
