// Package pool holds the concurrent block/transaction containers the
// vote aggregation engine, packer, and scheduler all operate on: the
// pending-tx pool, the pending/committed/dead block pools, the sync-label
// set, the merge and sync queues, and the per-peer outbound queues.
//
// Pending is guarded by a reader-writer lock per the concurrency model --
// individual lookups take the read side, bulk snapshots take the write
// side -- while per-block mutation goes through the block's own mutex, not
// pbMu. Committed, dead, and sync labels need no external lock: they are
// sync.Map-backed, matching spec "internally concurrent; no external lock
// required" for those three.
package pool

import (
	"sync"

	"github.com/tendermint/tendermint/libs/clist"

	"github.com/tomchain/tomchain/types"
)

// Pool bundles every container one server instance needs. A single Pool
// is shared by the engine, the packer, the scheduler, and both RPC
// layers.
type Pool struct {
	pbMu    sync.RWMutex
	pending map[uint64]*types.Block

	committed sync.Map // uint64 -> *types.Block
	dead      sync.Map // uint64 -> int64 (the tick ms it was marked dead)
	syncLabel sync.Map // uint64 -> struct{}

	txMu    sync.Mutex
	pendingTxs []types.Transaction

	MergeQueue chan *types.Block
	SyncQueue  chan uint64

	peersMu sync.RWMutex
	peers   map[uint64]*PeerOutbox
}

// PeerOutbox holds the three outbound FIFOs owned by one peer connection:
// votes and blocks awaiting relay, and commits awaiting broadcast. Each is
// a *clist.CList, the same concurrent-broadcast-queue type the teacher's
// mempool reactor drains per peer -- push is lock-free from the producer
// side, and the consumer (the scheduler's per-tick drain) removes
// elements as it sends them.
type PeerOutbox struct {
	RelayVotes  *clist.CList
	RelayBlocks *clist.CList
	BcastCommit *clist.CList
}

func newPeerOutbox() *PeerOutbox {
	return &PeerOutbox{
		RelayVotes:  clist.New(),
		RelayBlocks: clist.New(),
		BcastCommit: clist.New(),
	}
}

// New builds an empty Pool with merge/sync queues sized mergeQueueCap and
// syncQueueCap, and one outbox pre-created for every peer ID in peerIDs
// (1-based server IDs, excluding this server's own).
func New(mergeQueueCap, syncQueueCap int, peerIDs []uint64) *Pool {
	p := &Pool{
		pending:    make(map[uint64]*types.Block),
		MergeQueue: make(chan *types.Block, mergeQueueCap),
		SyncQueue:  make(chan uint64, syncQueueCap),
		peers:      make(map[uint64]*PeerOutbox, len(peerIDs)),
	}
	for _, id := range peerIDs {
		p.peers[id] = newPeerOutbox()
	}
	return p
}

// -- pending-tx pool --------------------------------------------------

// PushTx appends txs to the pending-transaction pool. Only the packer
// calls this.
func (p *Pool) PushTx(txs ...types.Transaction) {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	p.pendingTxs = append(p.pendingTxs, txs...)
}

// PendingTxCount reports how many transactions are waiting to be packed.
func (p *Pool) PendingTxCount() int {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	return len(p.pendingTxs)
}

// DrainTxs removes and returns up to n transactions from the front of the
// pending-tx pool, fewer if not enough are queued.
func (p *Pool) DrainTxs(n int) []types.Transaction {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if n > len(p.pendingTxs) {
		n = len(p.pendingTxs)
	}
	out := make([]types.Transaction, n)
	copy(out, p.pendingTxs[:n])
	p.pendingTxs = p.pendingTxs[n:]
	return out
}

// -- pending block pool -------------------------------------------------

// PutPending inserts or replaces blk in the pending pool, keyed by its
// header ID.
func (p *Pool) PutPending(blk *types.Block) {
	p.pbMu.Lock()
	defer p.pbMu.Unlock()
	p.pending[blk.Header.ID] = blk
}

// GetPending looks up id in the pending pool.
func (p *Pool) GetPending(id uint64) (*types.Block, bool) {
	p.pbMu.RLock()
	defer p.pbMu.RUnlock()
	b, ok := p.pending[id]
	return b, ok
}

// DeletePending removes id from the pending pool if present.
func (p *Pool) DeletePending(id uint64) {
	p.pbMu.Lock()
	defer p.pbMu.Unlock()
	delete(p.pending, id)
}

// PendingCount returns the number of blocks currently pending.
func (p *Pool) PendingCount() int {
	p.pbMu.RLock()
	defer p.pbMu.RUnlock()
	return len(p.pending)
}

// SnapshotPending returns a shallow copy of every block currently pending.
// Per spec.md's PullPendingBlocks note, iteration here is a point-in-time
// snapshot, not a live view -- this takes the write lock briefly (a bulk
// "pool-structural" operation) rather than holding the read lock across
// the whole copy.
func (p *Pool) SnapshotPending() []*types.Block {
	p.pbMu.Lock()
	defer p.pbMu.Unlock()

	out := make([]*types.Block, 0, len(p.pending))
	for _, b := range p.pending {
		out = append(out, b)
	}
	return out
}

// -- committed block pool -----------------------------------------------

// PutCommitted inserts or replaces blk in committed, keyed by its header
// ID -- insert-or-replace semantics match the idempotent commit-broadcast
// path in the vote aggregation engine.
func (p *Pool) PutCommitted(blk *types.Block) {
	p.committed.Store(blk.Header.ID, blk)
}

// GetCommitted looks up id in committed.
func (p *Pool) GetCommitted(id uint64) (*types.Block, bool) {
	v, ok := p.committed.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*types.Block), true
}

// CommittedCount returns the number of committed blocks, used by the
// scheduler's count_freq pool-size log line.
func (p *Pool) CommittedCount() int {
	n := 0
	p.committed.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// -- dead-block set ------------------------------------------------------

// MarkDead inserts id into the dead set with the tick time it was marked,
// used later by the pruning pass to bound the set's growth.
func (p *Pool) MarkDead(id uint64, nowMS int64) {
	p.dead.Store(id, nowMS)
}

// IsDead reports whether id has been evicted into the dead set.
func (p *Pool) IsDead(id uint64) bool {
	_, ok := p.dead.Load(id)
	return ok
}

// PruneDead removes dead entries marked before cutoffMS, bounding the set
// per SPEC_FULL.md §4.2's resolution of the "dead set grows unboundedly"
// open question.
func (p *Pool) PruneDead(cutoffMS int64) {
	p.dead.Range(func(k, v interface{}) bool {
		if v.(int64) < cutoffMS {
			p.dead.Delete(k)
		}
		return true
	})
}

// -- sync-label set --------------------------------------------------

// MarkSynced inserts id into the sync-labels set.
func (p *Pool) MarkSynced(id uint64) {
	p.syncLabel.Store(id, struct{}{})
}

// IsSynced reports whether id has already been sync-labeled.
func (p *Pool) IsSynced(id uint64) bool {
	_, ok := p.syncLabel.Load(id)
	return ok
}

// -- per-peer outboxes -----------------------------------------------

// Outbox returns the outbound queue set for peerID, or nil if peerID is
// not a configured peer.
func (p *Pool) Outbox(peerID uint64) *PeerOutbox {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()
	return p.peers[peerID]
}

// PeerIDs returns every configured peer ID, in no particular order.
func (p *Pool) PeerIDs() []uint64 {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()

	ids := make([]uint64, 0, len(p.peers))
	for id := range p.peers {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastVote pushes v onto every peer's relay-vote outbox.
func (p *Pool) BroadcastVote(v *types.BlockVote) {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()
	for _, ob := range p.peers {
		ob.RelayVotes.PushBack(v)
	}
}

// BroadcastBlock pushes blk onto every peer's relay-block outbox.
func (p *Pool) BroadcastBlock(blk *types.Block) {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()
	for _, ob := range p.peers {
		ob.RelayBlocks.PushBack(blk)
	}
}

// BroadcastCommit pushes blk onto every peer's commit-broadcast outbox.
func (p *Pool) BroadcastCommit(blk *types.Block) {
	p.peersMu.RLock()
	defer p.peersMu.RUnlock()
	for _, ob := range p.peers {
		ob.BcastCommit.PushBack(blk)
	}
}
