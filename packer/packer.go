// Package packer implements the block-packing loop run by exactly one
// server in a deployment: the one whose server_id equals server_count.
// Every other server only ever receives blocks via peer relay.
//
// Grounded on the teacher's mempool reactor loop shape (mempool/reactor.go):
// a single background goroutine driven by its own ticker, reading and
// writing pool-owned containers without any locking of its own -- the pool
// already provides the synchronization every accessor needs.
package packer

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/types"
)

// Config carries every packer-tunable from spec.md §6.
type Config struct {
	Freq           time.Duration
	GenerateTxRate uint64
	TxPerBlock     uint64
	PbPoolLimit    uint64
	AccountCount   uint64
}

// Packer mints fresh transactions and drains them into blocks on a single
// background goroutine. nextBlockID is the packer's monotonic ID counter,
// seeded serverID * 10^6 per spec.md §3's global-uniqueness invariant.
type Packer struct {
	cfg    Config
	pool   *pool.Pool
	logger log.Logger

	nextBlockID uint64 // atomic
	nextTxID    uint64 // atomic

	rng *rand.Rand

	quit chan struct{}
}

// New builds a Packer for serverID. Only call Start on the server for
// which config.IsPacker() is true.
func New(cfg Config, serverID uint64, p *pool.Pool, logger log.Logger, seed int64) *Packer {
	return &Packer{
		cfg:         cfg,
		pool:        p,
		logger:      logger,
		nextBlockID: serverID * 1_000_000,
		rng:         rand.New(rand.NewSource(seed)),
		quit:        make(chan struct{}),
	}
}

// Start launches the packer's ticker loop.
func (pk *Packer) Start() {
	go pk.run()
}

// Stop signals the loop to exit at its next tick boundary.
func (pk *Packer) Stop() {
	close(pk.quit)
}

func (pk *Packer) run() {
	ticker := time.NewTicker(pk.cfg.Freq)
	defer ticker.Stop()

	for {
		select {
		case <-pk.quit:
			return
		case <-ticker.C:
			pk.Tick()
		}
	}
}

// Tick runs the packer's two interleaved steps once: generate transactions
// if pending blocks are below the backpressure limit, then drain as many
// full blocks as the pending-tx pool currently allows. Exported so tests
// can drive it synchronously without waiting on the ticker.
func (pk *Packer) Tick() {
	if uint64(pk.pool.PendingCount()) < pk.cfg.PbPoolLimit {
		pk.generateTxs()
	}

	for uint64(pk.pool.PendingTxCount()) >= pk.cfg.TxPerBlock {
		pk.packBlock()
	}
}

// generateTxs appends generate_tx_rate random transactions to the
// pending-tx pool. Account IDs are drawn uniformly from [0, account_count);
// there is no balance or nonce semantics to respect, per spec.md §3.
func (pk *Packer) generateTxs() {
	txs := make([]types.Transaction, pk.cfg.GenerateTxRate)
	for i := range txs {
		id := atomic.AddUint64(&pk.nextTxID, 1)
		sender := pk.rng.Uint64() % pk.cfg.AccountCount
		receiver := pk.rng.Uint64() % pk.cfg.AccountCount
		value := pk.rng.Uint64() % 1000
		fee := pk.rng.Uint64() % 10
		txs[i] = types.NewTransaction(id, sender, receiver, value, fee)
	}
	pk.pool.PushTx(txs...)
}

// packBlock drains tx_per_block transactions into a freshly minted block,
// inserts it into the local pending pool, and queues it for relay to
// every peer.
func (pk *Packer) packBlock() {
	txs := pk.pool.DrainTxs(int(pk.cfg.TxPerBlock))
	if len(txs) == 0 {
		return
	}

	id := atomic.AddUint64(&pk.nextBlockID, 1)
	blk := types.NewBlock(id, types.DefaultBaseID, time.Now().UnixMilli())
	blk.TxVec = txs

	pk.pool.PutPending(blk)
	pk.pool.BroadcastBlock(blk)

	pk.logger.Debug("packed block", "block_id", id, "tx_count", len(txs))
}
