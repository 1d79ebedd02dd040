// Package node wires every TomChain component together into one running
// server process: the KV store, the pool, the vote aggregation engine, the
// two RPC listeners (peer-facing and client-facing), the scheduler, and
// (on the designated packer) the packer loop.
//
// Grounded on the teacher's node/node.go: the same service.BaseService
// lifecycle (OnStart/OnStop) wrapping a struct of already-constructed
// subsystems, swapping the teacher's p2p.Switch/MultiplexTransport for two
// tendermint rpc/jsonrpc/server HTTP listeners, since TomChain servers
// talk to each other and to clients over blocking RPC rather than a
// gossip-style reactor mesh.
package node

import (
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"

	"github.com/tomchain/tomchain/config"
	"github.com/tomchain/tomchain/crypto/tbls"
	"github.com/tomchain/tomchain/engine"
	"github.com/tomchain/tomchain/packer"
	"github.com/tomchain/tomchain/pool"
	clientrpc "github.com/tomchain/tomchain/rpc/client"
	peerrpc "github.com/tomchain/tomchain/rpc/peer"
	"github.com/tomchain/tomchain/scheduler"
	"github.com/tomchain/tomchain/store"
	"github.com/tomchain/tomchain/types"
)

// Node bundles one server instance's full set of live subsystems.
type Node struct {
	service.BaseService

	config *config.Config

	store  *store.KVStore
	pool   *pool.Pool
	engine *engine.Engine

	peerClients []*peerrpc.Client
	scheduler   *scheduler.Scheduler
	packer      *packer.Packer // nil on a non-packer server

	peerListener   net.Listener
	clientListener net.Listener
	rpcCfg         *rpcserver.Config
}

// New constructs a Node from cfg, opening the KV store, running the
// trusted-dealer TSS share split, and dialing every configured peer. It
// does not start anything; call Start (inherited from service.BaseService)
// to bring the process up.
func New(cfg *config.Config, logger log.Logger) (*Node, error) {
	kv, err := store.NewKVStore("tomchain", "./data", logger)
	if err != nil {
		return nil, errors.Wrap(err, "opening kv store")
	}

	peerIDs := cfg.PeerIDs()
	p := pool.New(int(cfg.PbPoolLimit)*2, int(cfg.PbPoolLimit)*2, peerIDs)

	suite := tbls.Suite()
	shares, err := tbls.GenerateShares(suite, int(cfg.ClientCount), int(cfg.ClientCount))
	if err != nil {
		return nil, errors.Wrap(err, "generating client tss shares")
	}

	eng := engine.New(logger, p, kv, suite, shares[0].Public, int(cfg.ClientCount), int(cfg.ClientCount), cfg.BlockDieThresholdMS)

	registry := buildClientRegistry(cfg.ClientCount, shares)

	peerrpc.SetEnvironment(peerrpc.NewEnvironment(p, eng, logger.With("module", "rpc-peer")))
	clientrpc.SetEnvironment(clientrpc.NewEnvironment(p, eng, registry, logger.With("module", "rpc-client")))

	peerClients := make([]*peerrpc.Client, 0, len(peerIDs))
	for _, id := range peerIDs {
		addr, err := cfg.PeerAddr(id)
		if err != nil {
			return nil, err
		}
		c, err := peerrpc.Dial(id, addr)
		if err != nil {
			return nil, errors.Wrapf(err, "dialing peer %d", id)
		}
		peerClients = append(peerClients, c)
	}

	sched := scheduler.New(
		scheduler.Config{SchedulerFreq: cfg.SchedulerFreq(), PackFreq: cfg.PackFreq(), CountFreq: cfg.CountFreq()},
		cfg.ServerID, p, eng, peerClients, logger.With("module", "scheduler"),
	)

	var pk *packer.Packer
	if cfg.IsPacker() {
		pk = packer.New(packer.Config{
			Freq:           cfg.PackFreq(),
			GenerateTxRate: cfg.GenerateTxRate,
			TxPerBlock:     cfg.TxPerBlock,
			PbPoolLimit:    cfg.PbPoolLimit,
			AccountCount:   cfg.AccountCount,
		}, cfg.ServerID, p, logger.With("module", "packer"), int64(cfg.ServerID))
	}

	n := &Node{
		config:      cfg,
		store:       kv,
		pool:        p,
		engine:      eng,
		peerClients: peerClients,
		scheduler:   sched,
		packer:      pk,
		rpcCfg:      rpcserver.DefaultConfig(),
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// buildClientRegistry wraps the key shares New generated at startup into
// client profiles, client ID i+1 holding shares[i], grounded on spec.md
// §4.5's "client's pre-generated TSS private share".
func buildClientRegistry(clientCount uint64, shares []*tbls.KeyShare) *clientrpc.Registry {
	profiles := make([]*types.ClientProfile, clientCount)
	for i := uint64(0); i < clientCount; i++ {
		profiles[i] = types.NewClientProfile(i+1, shares[i].Private, shares[i].Public)
	}
	return clientrpc.NewRegistry(profiles)
}

// OnStart opens both RPC listeners and launches the scheduler and (if
// applicable) the packer loop.
func (n *Node) OnStart() error {
	peerLn, err := rpcserver.Listen(n.config.GrpcPeerListenAddr, n.rpcCfg)
	if err != nil {
		return errors.Wrap(err, "listening on grpc-peer-listen-addr")
	}
	n.peerListener = peerLn
	peerMux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(peerMux, peerrpc.Routes, n.Logger.With("listener", "peer"))
	go func() {
		if err := rpcserver.Serve(peerLn, peerMux, n.Logger.With("listener", "peer"), n.rpcCfg); err != nil {
			n.Logger.Error("peer rpc server stopped", "err", err)
		}
	}()

	clientLn, err := rpcserver.Listen(n.config.GrpcListenAddr, n.rpcCfg)
	if err != nil {
		return errors.Wrap(err, "listening on grpc-listen-addr")
	}
	n.clientListener = clientLn
	clientMux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(clientMux, clientrpc.Routes, n.Logger.With("listener", "client"))
	if n.config.ProfilerEnable && n.config.ProfilerListen {
		registerPprof(clientMux)
		n.Logger.Info("profiler endpoints mounted", "path", "/debug/pprof/")
	}
	go func() {
		if err := rpcserver.Serve(clientLn, clientMux, n.Logger.With("listener", "client"), n.rpcCfg); err != nil {
			n.Logger.Error("client rpc server stopped", "err", err)
		}
	}()

	n.scheduler.Start()
	if n.packer != nil {
		n.packer.Start()
	}
	return nil
}

// registerPprof mounts stdlib net/http/pprof's handlers on mux directly,
// since pprof's own init() only wires http.DefaultServeMux. This is the
// one component built on the standard library rather than a pack
// dependency: spec.md §1 names "logging and profiling" as an external
// collaborator whose interface (the profiler-enable/profiler-listen
// config keys) is specified but whose implementation is out of scope,
// and no example repo in the pack carries a profiling library of its
// own to ground an alternative on.
func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}

// OnStop tears down the packer, scheduler, both listeners, and the KV
// store, in roughly reverse startup order.
func (n *Node) OnStop() {
	if n.packer != nil {
		n.packer.Stop()
	}
	n.scheduler.Stop()

	if n.peerListener != nil {
		_ = n.peerListener.Close()
	}
	if n.clientListener != nil {
		_ = n.clientListener.Close()
	}

	if err := n.store.Close(); err != nil {
		n.Logger.Error("closing kv store", "err", err)
	}
}
