package peer

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"github.com/tomchain/tomchain/types"
	"github.com/tomchain/tomchain/wire"
)

// ResultStatus is the response shape shared by every peer RPC in this
// package -- each call either fully succeeds (Ok true) or reports a
// terse reason why not; none of these operations have a richer result
// to return.
type ResultStatus struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func ok() *ResultStatus { return &ResultStatus{Ok: true} }

func failed(reason string) *ResultStatus {
	return &ResultStatus{Ok: false, Reason: reason}
}

// SPHeartbeat marks the caller as alive. The caller (not this handler)
// uses the reply's success/failure to update its own peer_status table
// for the sender; on this side, a heartbeat never fails.
func SPHeartbeat(ctx *rpctypes.Context, id uint64) (*ResultStatus, error) {
	env.Logger.Debug("heartbeat", "from", id)
	env.SetPeerStatus(id, true)
	return ok(), nil
}

// RelayVote runs the vote-intake pipeline (engine.IntakeVote) for every
// vote in votes, each a wire-encoded types.BlockVote.
func RelayVote(ctx *rpctypes.Context, id uint64, votes [][]byte) (*ResultStatus, error) {
	for _, raw := range votes {
		var vote types.BlockVote
		if err := wire.Unmarshal(raw, &vote); err != nil {
			env.Logger.Error("decoding relayed vote", "from", id, "err", err)
			continue
		}
		env.Engine.IntakeVote(vote, false)
	}
	return ok(), nil
}

// RelayBlock inserts every wire-encoded block into pending, replacing any
// existing entry with the same ID.
func RelayBlock(ctx *rpctypes.Context, id uint64, blocks [][]byte) (*ResultStatus, error) {
	for _, raw := range blocks {
		var blk types.Block
		if err := wire.Unmarshal(raw, &blk); err != nil {
			env.Logger.Error("decoding relayed block", "from", id, "err", err)
			continue
		}
		env.Pool.PutPending(&blk)
	}
	return ok(), nil
}

// SPBcastCommit runs the peer commit-broadcast path for every wire-encoded
// (already-signed) block in blocks.
func SPBcastCommit(ctx *rpctypes.Context, id uint64, timestamp int64, blocks [][]byte) (*ResultStatus, error) {
	decoded := make([]*types.Block, 0, len(blocks))
	for _, raw := range blocks {
		var blk types.Block
		if err := wire.Unmarshal(raw, &blk); err != nil {
			env.Logger.Error("decoding broadcast commit", "from", id, "err", err)
			continue
		}
		decoded = append(decoded, &blk)
	}

	if err := env.Engine.HandleCommitBroadcast(decoded); err != nil {
		return failed(err.Error()), nil
	}
	return ok(), nil
}

// RelayBlockSync inserts blockID into the sync-labels set.
func RelayBlockSync(ctx *rpctypes.Context, id uint64, blockID uint64) (*ResultStatus, error) {
	env.Pool.MarkSynced(blockID)
	return ok(), nil
}
