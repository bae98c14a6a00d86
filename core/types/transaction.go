package types

// MaxStandardTxWeight is the largest weight (spec.md §3 invariant 5) the
// orphanage will hold for any single transaction.
const MaxStandardTxWeight = 400_000

// Outpoint identifies a specific output of a specific transaction. It is a
// plain value (not a pointer) so it can key Go maps directly, matching
// spec.md §9's "no cyclic ownership" requirement: orphans reference parents
// by value.
type Outpoint struct {
	Hash  Txid
	Index uint32
}

// TxOut is a transaction output. Script contents aren't interpreted by this
// core (validation is an external collaborator's job); only the script
// length contributes to weight accounting.
type TxOut struct {
	Value       int64
	PkScriptLen int
}

// Transaction is the immutable record described in spec.md §3.
type Transaction struct {
	txid    Txid
	wtxid   Wtxid
	Version int32
	Inputs  []Outpoint
	Outputs []TxOut

	nonWitnessBytes int64
	witnessBytes    int64
}

// NewTransaction builds a Transaction. txid and wtxid coincide for
// transactions without witness data; nonWitnessBytes/witnessBytes split the
// serialized size the way BIP 141 weight accounting requires.
func NewTransaction(txid Txid, wtxid Wtxid, version int32, inputs []Outpoint, outputs []TxOut, nonWitnessBytes, witnessBytes int64) *Transaction {
	return &Transaction{
		txid:            txid,
		wtxid:           wtxid,
		Version:         version,
		Inputs:          inputs,
		Outputs:         outputs,
		nonWitnessBytes: nonWitnessBytes,
		witnessBytes:    witnessBytes,
	}
}

// Txid returns the transaction's non-witness identifier.
func (tx *Transaction) Txid() Txid { return tx.txid }

// Wtxid returns the transaction's witness identifier.
func (tx *Transaction) Wtxid() Wtxid { return tx.wtxid }

// HasWitness reports whether txid and wtxid differ.
func (tx *Transaction) HasWitness() bool { return tx.txid.h != tx.wtxid.h }

// Weight returns the BIP 141-style weight: four times the non-witness bytes
// plus the witness bytes, matching spec.md §3's definition.
func (tx *Transaction) Weight() int64 {
	return 4*tx.nonWitnessBytes + tx.witnessBytes
}
