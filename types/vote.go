package types

import (
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// BlockVote is one client's BLS signature share over a block ID. There is
// exactly one BlockVote per (BlockID, VoterID) pair stored in a Block's
// Votes map; re-submission with the same VoterID is a no-op at intake.
type BlockVote struct {
	BlockID  uint64           `json:"block_id"`
	VoterID  uint64           `json:"voter_id"`
	SigShare tmbytes.HexBytes `json:"sig_share"`
}

// NewBlockVote builds a vote for blockID signed by voterID with sigShare,
// the raw threshold-BLS signature share produced by crypto/tbls.SignShare.
func NewBlockVote(blockID, voterID uint64, sigShare []byte) BlockVote {
	return BlockVote{BlockID: blockID, VoterID: voterID, SigShare: tmbytes.HexBytes(sigShare)}
}
