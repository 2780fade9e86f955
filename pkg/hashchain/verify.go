package hashchain

import "fmt"

// VerifyChain checks every block after genesis: the stored hash must match
// the hash recomputed from the block's own fields, and the previous-hash
// link must equal the prior block's stored hash. The chain slice must be
// ordered by index ascending. Returns the first problem found, or nil.
func VerifyChain(chain []*Block) error {
	for i, b := range chain {
		if i == 0 {
			continue
		}
		if got := ComputeHash(b); got != b.Hash {
			return fmt.Errorf("block %d: stored hash %s does not match computed %s",
				b.Index, b.Hash, got)
		}
		prev := chain[i-1]
		if b.PreviousHash != prev.Hash {
			return fmt.Errorf("block %d: previous hash %s does not link to block %d hash %s",
				b.Index, b.PreviousHash, prev.Index, prev.Hash)
		}
		if b.Index != prev.Index+1 {
			return fmt.Errorf("block %d: index does not follow block %d", b.Index, prev.Index)
		}
	}
	return nil
}
