// Package client implements the client RPC layer: register, heartbeat,
// pull-pending-headers, get-blocks, and vote-blocks, served over the
// same tendermint rpc/jsonrpc/server transport as the peer layer but on
// the client-facing listen address (grpc-listen-addr).
package client

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

	"github.com/tomchain/tomchain/engine"
	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/types"
)

var env *Environment

// SetEnvironment installs the Environment every handler in this package
// reads from.
func SetEnvironment(e *Environment) {
	env = e
}

// Registry holds every client's profile, created once at startup by
// node.buildClientRegistry and looked up (and partially filled in, on
// Register) for the lifetime of the process.
type Registry struct {
	mu       sync.RWMutex
	profiles map[uint64]*types.ClientProfile
}

// NewRegistry wraps a pre-built set of profiles, one per client ID.
func NewRegistry(profiles []*types.ClientProfile) *Registry {
	r := &Registry{profiles: make(map[uint64]*types.ClientProfile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

// Get returns the profile for id, or nil if id was never provisioned a
// share.
func (r *Registry) Get(id uint64) *types.ClientProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[id]
}

// Register installs pubKeyBytes as id's ECC identity key, if id has a
// provisioned profile.
func (r *Registry) Register(id uint64, pubKeyBytes []byte) (*types.ClientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, errors.Errorf("client %d has no provisioned tss share", id)
	}
	p.EccPubKey = ed25519PubKey(pubKeyBytes)
	return p, nil
}

// Environment bundles the dependencies the client RPC handlers need.
type Environment struct {
	Pool     *pool.Pool
	Engine   *engine.Engine
	Registry *Registry
	Logger   log.Logger
}

// NewEnvironment builds an Environment.
func NewEnvironment(p *pool.Pool, e *engine.Engine, reg *Registry, logger log.Logger) *Environment {
	return &Environment{Pool: p, Engine: e, Registry: reg, Logger: logger}
}

// Routes is the RPCFunc table served on grpc-listen-addr.
var Routes = map[string]*rpcserver.RPCFunc{
	"register":             rpcserver.NewRPCFunc(Register, "id,ecc_pub"),
	"heartbeat":            rpcserver.NewRPCFunc(Heartbeat, "id"),
	"pull_pending_blocks":  rpcserver.NewRPCFunc(PullPendingBlocks, ""),
	"get_blocks":           rpcserver.NewRPCFunc(GetBlocks, "headers"),
	"vote_blocks":          rpcserver.NewRPCFunc(VoteBlocks, "id,voted_blocks"),
}
