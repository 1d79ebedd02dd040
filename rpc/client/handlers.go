package client

import (
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"github.com/tomchain/tomchain/types"
	"github.com/tomchain/tomchain/wire"
)

// ResultRegister carries the registering client's pre-generated TSS
// private share back to it -- the one time that secret crosses the wire,
// matching spec.md §4.5's "respond with the client's pre-generated TSS
// private share (serialized) and its ID".
type ResultRegister struct {
	ID       uint64 `json:"id"`
	TssShare []byte `json:"tss_share"`
}

// ResultAck is the empty-payload acknowledgement Heartbeat and
// VoteBlocks return.
type ResultAck struct {
	Ok bool `json:"ok"`
}

// ResultHeaders carries wire-encoded BlockHeaders back to PullPendingBlocks.
type ResultHeaders struct {
	Headers [][]byte `json:"headers"`
}

// ResultBlocks carries wire-encoded full Blocks back to GetBlocks.
type ResultBlocks struct {
	Blocks [][]byte `json:"blocks"`
}

// Register stores id's ECC public key and returns its pre-generated TSS
// private share.
func Register(ctx *rpctypes.Context, id uint64, eccPub []byte) (*ResultRegister, error) {
	profile, err := env.Registry.Register(id, eccPub)
	if err != nil {
		return nil, err
	}

	shareBytes, err := wire.Marshal(profile.TssPrivShare)
	if err != nil {
		return nil, err
	}

	return &ResultRegister{ID: id, TssShare: shareBytes}, nil
}

// Heartbeat always acknowledges -- there is no client liveness table to
// update, unlike the peer layer's SPHeartbeat.
func Heartbeat(ctx *rpctypes.Context, id uint64) (*ResultAck, error) {
	return &ResultAck{Ok: true}, nil
}

// PullPendingBlocks returns the wire-encoded header of every block in one
// point-in-time snapshot of pending (pool.SnapshotPending). A block that
// leaves pending after the snapshot is still listed; a header that fails
// to encode is logged and skipped.
func PullPendingBlocks(ctx *rpctypes.Context) (*ResultHeaders, error) {
	blocks := env.Pool.SnapshotPending()

	headers := make([][]byte, 0, len(blocks))
	for _, b := range blocks {
		data, err := wire.Marshal(b.Header)
		if err != nil {
			env.Logger.Error("encoding pending header", "block_id", b.Header.ID, "err", err)
			continue
		}
		headers = append(headers, data)
	}
	return &ResultHeaders{Headers: headers}, nil
}

// GetBlocks decodes each requested wire-encoded BlockHeader and returns
// the full serialized block for any still present in pending. Missing
// blocks are simply omitted, matching spec.md §4.5.
func GetBlocks(ctx *rpctypes.Context, headers [][]byte) (*ResultBlocks, error) {
	out := make([][]byte, 0, len(headers))
	for _, raw := range headers {
		var hdr types.BlockHeader
		if err := wire.Unmarshal(raw, &hdr); err != nil {
			env.Logger.Error("decoding requested header", "err", err)
			continue
		}

		blk, ok := env.Pool.GetPending(hdr.ID)
		if !ok {
			continue
		}

		data, err := wire.Marshal(blk)
		if err != nil {
			env.Logger.Error("encoding requested block", "block_id", hdr.ID, "err", err)
			continue
		}
		out = append(out, data)
	}
	return &ResultBlocks{Blocks: out}, nil
}

// VoteBlocks extracts id's vote out of each wire-encoded block and feeds
// it into the vote-intake pipeline. Per spec.md §4.5 the caller submits
// full blocks it has locally re-signed; only the single vote authored by
// id is extracted from each.
func VoteBlocks(ctx *rpctypes.Context, id uint64, votedBlocks [][]byte) (*ResultAck, error) {
	for _, raw := range votedBlocks {
		var blk types.Block
		if err := wire.Unmarshal(raw, &blk); err != nil {
			env.Logger.Error("decoding voted block", "from", id, "err", err)
			continue
		}
		vote, ok := blk.Votes[id]
		if !ok {
			env.Logger.Error("voted block missing caller's own vote", "from", id, "block_id", blk.Header.ID)
			continue
		}
		env.Engine.IntakeVote(vote, true)
	}
	return &ResultAck{Ok: true}, nil
}
