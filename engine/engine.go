// Package engine implements the vote aggregation engine: the intake
// pipeline shared by client votes and peer-relayed votes, the merge
// worker that turns a quorum of signature shares into one aggregated
// threshold signature, the idempotent peer commit-broadcast path, and
// dead-block liveness eviction.
//
// Grounded on the teacher's state.BlockExecutor (state/executor.go):
// an interface-free struct here since there is only ever one
// implementation, holding the same logger-threaded, mutex-free shape --
// all serialization happens inside pool.Pool and types.Block, not here.
package engine

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/share"

	"github.com/tomchain/tomchain/crypto/tbls"
	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/store"
	"github.com/tomchain/tomchain/types"
)

// deadUpperCutoffMS bounds dead-block eviction against clock skew: a
// pending block older than this is left alone rather than evicted, per
// spec.md §4.2's "age ≤ 100_000 ms" guard.
const deadUpperCutoffMS = 100_000

// deadPruneFactor bounds the dead set itself: entries marked dead
// longer than this many multiples of the die threshold are pruned, per
// SPEC_FULL.md §4.2's resolution of "bound the dead set by periodic
// pruning".
const deadPruneFactor = 10

// Engine is the vote aggregation engine for one server instance.
type Engine struct {
	logger log.Logger

	pool  *pool.Pool
	store *store.KVStore

	suite pairing.Suite
	pub   *share.PubPoly

	threshold int // t, equal to client-count in this unanimous deployment
	n         int // n, equal to client-count

	dieThresholdMS int64
}

// New builds an Engine. pub is the master public-commitment polynomial
// shared by every client's TSS share, threshold/n are both client-count
// (a unanimous (n,n) scheme), and dieThresholdMS is block-die-threshold.
func New(
	logger log.Logger,
	p *pool.Pool,
	kv *store.KVStore,
	suite pairing.Suite,
	pub *share.PubPoly,
	threshold, n int,
	dieThresholdMS int64,
) *Engine {
	return &Engine{
		logger:         logger,
		pool:           p,
		store:          kv,
		suite:          suite,
		pub:            pub,
		threshold:      threshold,
		n:              n,
		dieThresholdMS: dieThresholdMS,
	}
}

// blockMsg is the exact byte sequence a share is signed over: the block
// ID, big-endian. Every caller that signs or verifies a vote must sign
// this same encoding -- see crypto/tbls for the share primitives
// themselves.
func blockMsg(blockID uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(blockID >> (8 * i))
	}
	return buf
}

// IntakeVote runs the 5-step vote-intake pipeline shared by
// rpc/client.VoteBlocks and rpc/peer.RelayVote: dead-set check, pending
// lookup, idempotent insert, and a quorum push onto the merge queue. A
// vote for an unknown or dead block is dropped silently, matching
// spec.md §4.2 exactly -- this is not an error condition for the caller.
//
// relay controls whether a newly-accepted vote is also pushed onto every
// peer's relay-vote outbox: true for votes this server originated
// (received from one of its own clients via VoteBlocks, or a packer
// self-vote), false for votes already received from a peer's RelayVote --
// relaying those further would echo every vote around the peer set
// forever.
func (e *Engine) IntakeVote(vote types.BlockVote, relay bool) {
	if e.pool.IsDead(vote.BlockID) {
		e.logger.Debug("dropping vote for dead block", "block_id", vote.BlockID, "voter_id", vote.VoterID)
		return
	}

	blk, ok := e.pool.GetPending(vote.BlockID)
	if !ok {
		e.logger.Debug("dropping vote for unknown block", "block_id", vote.BlockID, "voter_id", vote.VoterID)
		return
	}

	added, quorum := blk.AddVote(vote, e.threshold)
	if !added {
		return // at-most-once per voter, re-submission is a silent no-op
	}

	if relay {
		e.pool.BroadcastVote(&vote)
	}

	if quorum {
		e.pool.DeletePending(blk.Header.ID)
		e.pool.MergeQueue <- blk
	}
}

// DrainMergeQueue non-blockingly pops and merges every block currently on
// the merge queue, the scheduler_freq tick action spec.md §4.6 calls
// "drain merge queue". A merge failure is logged and does not stop the
// drain of the remaining entries.
func (e *Engine) DrainMergeQueue() {
	for {
		select {
		case blk := <-e.pool.MergeQueue:
			if err := e.Merge(blk); err != nil {
				e.logger.Error("merge failed", "block_id", blk.Header.ID, "err", err)
			}
		default:
			return
		}
	}
}

// Merge aggregates blk's collected shares into one threshold signature,
// commits the block locally, persists it, and queues a commit broadcast
// to every peer. Exported directly (not just via DrainMergeQueue) so
// tests can drive it synchronously.
func (e *Engine) Merge(blk *types.Block) error {
	shares := blk.VoteShares()

	set := tbls.NewShareSet(e.threshold, e.n, e.pub)
	for _, s := range shares {
		set.Add(s)
	}
	if !set.IsEnough() {
		// Should never happen: IntakeVote only enqueues once threshold is
		// already met. Defensive per spec.md §4.2.
		return errors.Errorf("merge invoked without quorum: have %d, need %d", len(shares), e.threshold)
	}

	msg := blockMsg(blk.Header.ID)
	sig, err := set.Merge(e.suite, msg)
	if err != nil {
		return errors.Wrap(err, "aggregating threshold signature")
	}

	now := time.Now().UnixMilli()
	blk.SetCommitted(sig, now)

	e.pool.PutCommitted(blk)

	if err := e.store.PutBlock(blk); err != nil {
		return errors.Wrap(err, "persisting committed block")
	}

	e.pool.BroadcastCommit(blk)

	e.logger.Info("LocalCommit", "block_id", blk.Header.ID, "latency_ms", now-blk.Header.ProposalTS)
	return nil
}

// HandleCommitBroadcast runs the peer commit-broadcast path for each
// block in blocks: remove from pending if present, insert-or-replace into
// committed using the incoming (already-signed) block, and persist. This
// path is idempotent -- receiving the same commit twice is harmless.
func (e *Engine) HandleCommitBroadcast(blocks []*types.Block) error {
	for _, blk := range blocks {
		e.pool.DeletePending(blk.Header.ID)
		e.pool.PutCommitted(blk)

		if err := e.store.PutBlock(blk); err != nil {
			return errors.Wrapf(err, "persisting peer-committed block %d", blk.Header.ID)
		}
	}
	return nil
}

// EvictDeadBlocks snapshots the pending pool and moves every block older
// than the die threshold (but not older than deadUpperCutoffMS, to avoid
// evicting blocks behind a clock-skewed proposal_ts) into the dead set.
// Intended to be called once per scheduler_freq tick.
func (e *Engine) EvictDeadBlocks(nowMS int64) {
	for _, blk := range e.pool.SnapshotPending() {
		age := nowMS - blk.Header.ProposalTS
		if age > e.dieThresholdMS && age <= deadUpperCutoffMS {
			e.pool.MarkDead(blk.Header.ID, nowMS)
			e.pool.DeletePending(blk.Header.ID)
			e.logger.Debug("evicted dead block", "block_id", blk.Header.ID, "age_ms", age)
		}
	}

	e.pool.PruneDead(nowMS - deadPruneFactor*e.dieThresholdMS)
}
