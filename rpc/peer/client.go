package peer

import (
	"context"

	rpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"

	"github.com/tomchain/tomchain/wire"
)

// Client is a thin wrapper over tendermint's jsonrpc client, one per
// configured peer, used by the scheduler to drain this server's outbound
// queues toward that peer. Every call blocks until the peer responds or
// ctx's deadline fires, matching spec.md §4.4/§5's blocking-call model.
type Client struct {
	id     uint64
	remote rpcclient.Caller
}

// Dial opens a jsonrpc client to a peer's peer-facing listen address.
func Dial(id uint64, addr string) (*Client, error) {
	c, err := rpcclient.New(addr)
	if err != nil {
		return nil, err
	}
	return &Client{id: id, remote: c}, nil
}

// ID is the dialed peer's server ID.
func (c *Client) ID() uint64 { return c.id }

func (c *Client) call(ctx context.Context, method string, params map[string]interface{}) (*ResultStatus, error) {
	result := new(ResultStatus)
	if _, err := c.remote.Call(ctx, method, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Heartbeat calls SPHeartbeat carrying selfID.
func (c *Client) Heartbeat(ctx context.Context, selfID uint64) (*ResultStatus, error) {
	return c.call(ctx, "sp_heartbeat", map[string]interface{}{"id": selfID})
}

// RelayVotes wire-encodes each vote and calls RelayVote.
func (c *Client) RelayVotes(ctx context.Context, selfID uint64, votes []interface{}) (*ResultStatus, error) {
	encoded, err := encodeAll(votes)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "relay_vote", map[string]interface{}{"id": selfID, "votes": encoded})
}

// RelayBlocks wire-encodes each block and calls RelayBlock.
func (c *Client) RelayBlocks(ctx context.Context, selfID uint64, blocks []interface{}) (*ResultStatus, error) {
	encoded, err := encodeAll(blocks)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "relay_block", map[string]interface{}{"id": selfID, "blocks": encoded})
}

// BcastCommit wire-encodes each block and calls SPBcastCommit.
func (c *Client) BcastCommit(ctx context.Context, selfID uint64, timestamp int64, blocks []interface{}) (*ResultStatus, error) {
	encoded, err := encodeAll(blocks)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, "sp_bcast_commit", map[string]interface{}{"id": selfID, "timestamp": timestamp, "blocks": encoded})
}

// RelayBlockSync calls RelayBlockSync for a single blockID.
func (c *Client) RelayBlockSync(ctx context.Context, selfID, blockID uint64) (*ResultStatus, error) {
	return c.call(ctx, "relay_block_sync", map[string]interface{}{"id": selfID, "block_id": blockID})
}

func encodeAll(vals []interface{}) ([][]byte, error) {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		data, err := wire.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = data
	}
	return out, nil
}
