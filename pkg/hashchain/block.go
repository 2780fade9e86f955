// Package hashchain implements the proof-of-work hash chain backing the
// audit ledger. It is storage-agnostic: blocks carry an opaque payload and
// the caller decides how chains are persisted and serialized.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// GenesisPreviousHash is the previous-hash marker of the genesis block
const GenesisPreviousHash = "0"

// Block is one element of the chain. Once mined it must never change;
// VerifyChain detects any mutation.
type Block struct {
	Index        uint64
	TimestampMs  int64
	Payload      []byte
	PreviousHash string
	Nonce        uint64
	Hash         string
}

// ComputeHash returns the SHA-256 hex digest over the block's hashed fields.
// The hash input is index, previous hash, timestamp, raw payload bytes and
// nonce, separated so field boundaries cannot be confused.
func ComputeHash(b *Block) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%d|%s|%d",
		b.Index, b.PreviousHash, b.TimestampMs, b.Payload, b.Nonce)
	return hex.EncodeToString(h.Sum(nil))
}

// MeetsDifficulty reports whether hash carries the required number of
// leading zero hex characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}

// Mine builds the block following prev with the given payload and searches
// for a nonce satisfying difficulty. The search is synchronous and
// CPU-bound; callers must serialize mining against a shared chain tail.
func Mine(prev *Block, payload []byte, difficulty int, now time.Time) *Block {
	b := &Block{
		Index:        prev.Index + 1,
		TimestampMs:  now.UnixMilli(),
		Payload:      payload,
		PreviousHash: prev.Hash,
		Nonce:        0,
	}
	for {
		b.Hash = ComputeHash(b)
		if MeetsDifficulty(b.Hash, difficulty) {
			return b
		}
		b.Nonce++
	}
}

// NewGenesis builds the fixed first block of a chain. The genesis block is
// not mined; its hash is computed directly.
func NewGenesis(payload []byte, now time.Time) *Block {
	b := &Block{
		Index:        0,
		TimestampMs:  now.UnixMilli(),
		Payload:      payload,
		PreviousHash: GenesisPreviousHash,
		Nonce:        0,
	}
	b.Hash = ComputeHash(b)
	return b
}
