package txdownload

import "github.com/txrelay/txdownload/core/types"

// Mempool is the external collaborator that actually holds accepted
// transactions. The coordinator only ever queries it; submission and
// acceptance happen on the caller's side, which reports the outcome back
// via MempoolAcceptedTx/MempoolRejectedTx.
type Mempool interface {
	// Exists reports whether id is already known to the mempool, by
	// either of its identifiers.
	Exists(id types.GenericTxid) bool
	// GetConflictTx returns the mempool transaction currently spending op,
	// if any (for RBF-style conflict detection by external callers).
	GetConflictTx(op types.Outpoint) (*types.Transaction, bool)
}

// ValidationResult is the outcome taxonomy from spec.md §7, produced by an
// external Validator and reported back to the coordinator.
type ValidationResult int

const (
	ResultAccepted ValidationResult = iota
	ResultMissingInputs
	ResultWitnessStripped
	ResultInputsNotStandard
	ResultSingleFailure
	ResultConsensus
	ResultRecentConsensusChange
	ResultNotStandard
	ResultPrematureSpend
	ResultWitnessMutated
	ResultConflict
	ResultMempoolPolicy
	ResultUnknown
	ResultUnset
	ResultNoMempool
)

// Validator is the external collaborator that performs transaction
// validation and mempool admission. It is never called by the coordinator:
// the coordinator is instead the callee of MempoolAcceptedTx/
// MempoolRejectedTx once a Validator has already produced a result. It is
// documented here as a Go interface purely to pin down the contract external
// code must satisfy.
type Validator interface {
	Validate(tx *types.Transaction) ValidationResult
}

// Networking is the external collaborator driving the coordinator: it
// delivers inv/tx/notfound/connect/disconnect/block events and polls
// GetRequestsToSend on its own cadence. Like Validator, it is documented
// here as the contract the coordinator is called through, not a type the
// coordinator holds or calls into.
type Networking interface {
	// SendGetData is how a Request selected by GetRequestsToSend is
	// actually put on the wire; ownership of framing belongs entirely to
	// this external collaborator.
	SendGetData(peer types.Peer, requests []Request)
}
