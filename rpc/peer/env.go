// Package peer implements the peer RPC layer: the four request/response
// operations servers exchange with each other (heartbeat, relay-vote,
// relay-block, broadcast-commit) plus the relay-block-sync signal.
//
// Grounded on the teacher's rpc package (rpc/env.go, rpc/routes.go):
// the same package-level Environment + SetEnvironment + Routes map
// shape, built on tendermint's rpc/jsonrpc/server RPCFunc table. Unlike
// the teacher, this server runs on its own listen address
// (grpc-peer-listen-addr) distinct from the client-facing one in
// rpc/client, since a TomChain process is simultaneously a server to its
// peers and a server to its clients.
package peer

import (
	"sync"

	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

	"github.com/tomchain/tomchain/engine"
	"github.com/tomchain/tomchain/pool"
)

var env *Environment

// SetEnvironment installs the Environment every handler in this package
// reads from, mirroring the teacher's rpc.SetEnvironment.
func SetEnvironment(e *Environment) {
	env = e
}

// Environment bundles the dependencies the peer RPC handlers need.
type Environment struct {
	Pool   *pool.Pool
	Engine *engine.Engine
	Logger log.Logger

	statusMu   sync.Mutex
	peerStatus map[uint64]bool // peer id -> last heartbeat outcome (sent or received)
}

// NewEnvironment builds an Environment with an empty peer-status table.
func NewEnvironment(p *pool.Pool, e *engine.Engine, logger log.Logger) *Environment {
	return &Environment{Pool: p, Engine: e, Logger: logger, peerStatus: make(map[uint64]bool)}
}

// SetPeerStatus records peerID's liveness: whether the most recent
// SPHeartbeat call to it succeeded, or true when a heartbeat from it has
// been received. PeerStatus reads it back; the scheduler drains every
// peer's outboxes whatever the recorded status.
func (e *Environment) SetPeerStatus(peerID uint64, ok bool) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.peerStatus[peerID] = ok
}

// SetPeerStatus records ok against the installed Environment's
// peer-status table. It lets the scheduler update peer status without
// holding its own *Environment reference -- it already imports this
// package for *Client, and the package-level env is the same pattern
// rpc/client uses for its handlers.
func SetPeerStatus(peerID uint64, ok bool) {
	if env != nil {
		env.SetPeerStatus(peerID, ok)
	}
}

// PeerStatus reports the last recorded heartbeat outcome for peerID.
// Unknown peers report true (optimistic default, matching the teacher's
// p2p.Switch's "assume connected until told otherwise" default).
func (e *Environment) PeerStatus(peerID uint64) bool {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	ok, known := e.peerStatus[peerID]
	return !known || ok
}

// Routes is the RPCFunc table served on grpc-peer-listen-addr.
var Routes = map[string]*rpcserver.RPCFunc{
	"sp_heartbeat":      rpcserver.NewRPCFunc(SPHeartbeat, "id"),
	"relay_vote":        rpcserver.NewRPCFunc(RelayVote, "id,votes"),
	"relay_block":       rpcserver.NewRPCFunc(RelayBlock, "id,blocks"),
	"sp_bcast_commit":   rpcserver.NewRPCFunc(SPBcastCommit, "id,timestamp,blocks"),
	"relay_block_sync":  rpcserver.NewRPCFunc(RelayBlockSync, "id,block_id"),
}
