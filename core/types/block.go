package types

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Block is the minimal view of a connected/disconnected block the
// download coordinator and orphan store need: which transactions it
// contains and which tip hash it represents.
type Block struct {
	Txs []*Transaction
	Tip chainhash.Hash
}

// SpentOutpoints returns every outpoint consumed by any transaction in the
// block, used to find orphans made redundant or invalid by confirmation.
func (b *Block) SpentOutpoints() []Outpoint {
	var out []Outpoint
	for _, tx := range b.Txs {
		out = append(out, tx.Inputs...)
	}
	return out
}
