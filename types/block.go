package types

import (
	"sync"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// DefaultBaseID is the opaque parent-pointer field every packed block
// carries. The original implementation hard-codes this value and never
// assigns it a semantic role (genesis marker, parent pointer, or otherwise);
// this repository preserves that as an intentionally opaque field rather
// than inventing a meaning for it.
const DefaultBaseID = uint64(0xDEADBEEF)

// BlockHeader carries a block's identity and four timestamp fields:
// proposed (packed), distributed, committed (quorum reached and merged),
// and received. SetCommitted stamps CommitTS and RecvTS with the same
// value; a block committed through a peer's commit broadcast keeps the
// sender's values. DistTS is carried on the wire but no path in this
// repository sets it.
type BlockHeader struct {
	ID     uint64 `json:"id"`
	BaseID uint64 `json:"base_id"`

	ProposalTS int64 `json:"proposal_ts"` // ms since epoch, set by the packer
	DistTS     int64 `json:"dist_ts"`     // ms since epoch, never set (stays 0)
	CommitTS   int64 `json:"commit_ts"`   // ms since epoch, set on quorum/merge
	RecvTS     int64 `json:"recv_ts"`     // ms since epoch, set with CommitTS
}

// Block is a sealed batch of transactions with a header, per-voter share
// accumulation, and (once committed) an aggregated threshold signature.
// Votes and TssSig are filled in over the block's lifetime under mu, which
// is the single serialization point for all per-block mutation described
// in the concurrency model: inserting a vote, writing TssSig, and updating
// header timestamps all happen while mu is held. mu is unexported so that
// encoding/gob (package wire) skips it.
type Block struct {
	mu sync.Mutex

	Header BlockHeader          `json:"header"`
	TxVec  Txs                  `json:"tx_vec"`
	Votes  map[uint64]BlockVote `json:"votes"`
	TssSig tmbytes.HexBytes     `json:"tss_sig"`
}

// NewBlock creates an empty pending block with the given ID and base ID.
// The packer is the only caller that mints fresh blocks; peers only ever
// receive blocks already constructed by the packer and mirror them as-is.
func NewBlock(id, baseID uint64, proposalTS int64) *Block {
	return &Block{
		Header: BlockHeader{ID: id, BaseID: baseID, ProposalTS: proposalTS},
		TxVec:  Txs{},
		Votes:  make(map[uint64]BlockVote),
	}
}

// AddVote inserts v into the block's vote map if VoterID is not already
// present, and reports whether the vote count reached quorum against
// threshold. Re-insertion with an existing VoterID is a no-op and returns
// false for added regardless of the current count, matching the "at most
// once per voter" invariant.
func (b *Block) AddVote(v BlockVote, threshold int) (added bool, quorum bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.Votes[v.VoterID]; exists {
		return false, len(b.Votes) >= threshold
	}
	b.Votes[v.VoterID] = v
	return true, len(b.Votes) >= threshold
}

// VoteCount returns the number of votes currently recorded, taking the
// block's mutex so callers never race with a concurrent AddVote.
func (b *Block) VoteCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Votes)
}

// VoteShares returns a snapshot of the currently accumulated signature
// shares, safe to hand to a ShareSet builder.
func (b *Block) VoteShares() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	shares := make([][]byte, 0, len(b.Votes))
	for _, v := range b.Votes {
		shares = append(shares, v.SigShare)
	}
	return shares
}

// SetCommitted installs the aggregated signature and stamps CommitTS/RecvTS.
// Per the "TssSig is set at most once" invariant, calling this twice is
// harmless (idempotent overwrite with the same deterministically-aggregated
// value) but callers should only reach this once per block in the normal
// local-quorum path.
func (b *Block) SetCommitted(sig []byte, nowMS int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.TssSig = tmbytes.HexBytes(sig)
	b.Header.CommitTS = nowMS
	b.Header.RecvTS = nowMS
}

// IsCommitted reports whether an aggregated signature has been installed.
func (b *Block) IsCommitted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.TssSig) > 0
}
