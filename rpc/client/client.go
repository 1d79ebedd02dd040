package client

import (
	"context"

	rpcclient "github.com/tendermint/tendermint/rpc/jsonrpc/client"
)

// Client is the calling side of this package's RPC surface, used by
// cmd/tc-client to drive a server's client-facing listener.
type Client struct {
	remote rpcclient.Caller
}

// Dial opens a jsonrpc client to a server's client-facing listen address.
func Dial(addr string) (*Client, error) {
	c, err := rpcclient.New(addr)
	if err != nil {
		return nil, err
	}
	return &Client{remote: c}, nil
}

// Register calls Register with id and eccPub, returning the server's
// reply.
func (c *Client) Register(ctx context.Context, id uint64, eccPub []byte) (*ResultRegister, error) {
	result := new(ResultRegister)
	if _, err := c.remote.Call(ctx, "register", map[string]interface{}{"id": id, "ecc_pub": eccPub}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Heartbeat calls Heartbeat with id.
func (c *Client) Heartbeat(ctx context.Context, id uint64) (*ResultAck, error) {
	result := new(ResultAck)
	if _, err := c.remote.Call(ctx, "heartbeat", map[string]interface{}{"id": id}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// PullPendingBlocks calls PullPendingBlocks.
func (c *Client) PullPendingBlocks(ctx context.Context) (*ResultHeaders, error) {
	result := new(ResultHeaders)
	if _, err := c.remote.Call(ctx, "pull_pending_blocks", map[string]interface{}{}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetBlocks calls GetBlocks for the given wire-encoded headers.
func (c *Client) GetBlocks(ctx context.Context, headers [][]byte) (*ResultBlocks, error) {
	result := new(ResultBlocks)
	if _, err := c.remote.Call(ctx, "get_blocks", map[string]interface{}{"headers": headers}, result); err != nil {
		return nil, err
	}
	return result, nil
}

// VoteBlocks submits id's voted (wire-encoded, re-signed) blocks.
func (c *Client) VoteBlocks(ctx context.Context, id uint64, votedBlocks [][]byte) (*ResultAck, error) {
	result := new(ResultAck)
	if _, err := c.remote.Call(ctx, "vote_blocks", map[string]interface{}{"id": id, "voted_blocks": votedBlocks}, result); err != nil {
		return nil, err
	}
	return result, nil
}
