package engine

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"

	"github.com/tomchain/tomchain/crypto/tbls"
	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/store"
	"github.com/tomchain/tomchain/types"
)

const testClientCount = 3

func newTestEngine(t *testing.T) (*Engine, []*tbls.KeyShare) {
	suite := tbls.Suite()
	shares, err := tbls.GenerateShares(suite, testClientCount, testClientCount)
	require.NoError(t, err)

	p := pool.New(8, 8, []uint64{2, 3})
	kv := store.NewKVStoreWithDB(memdb.NewDB(), log.TestingLogger())

	e := New(log.TestingLogger(), p, kv, suite, shares[0].Public, testClientCount, testClientCount, 50)
	return e, shares
}

func signVote(t *testing.T, blockID uint64, voterIdx int, ks *tbls.KeyShare) types.BlockVote {
	t.Helper()
	sig, err := tbls.SignShare(tbls.Suite(), ks.Private, blockMsg(blockID))
	require.NoError(t, err)
	return types.NewBlockVote(blockID, uint64(voterIdx+1), sig)
}

func TestIntakeVoteReachesQuorumAndCommits(t *testing.T) {
	e, shares := newTestEngine(t)

	blk := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	e.pool.PutPending(blk)

	for i, ks := range shares {
		v := signVote(t, 1, i, ks)
		e.IntakeVote(v, true)
	}

	// quorum reached on the last vote: the block moved to the merge queue
	select {
	case merged := <-e.pool.MergeQueue:
		require.NoError(t, e.Merge(merged))
	default:
		t.Fatal("expected block on merge queue after quorum")
	}

	_, stillPending := e.pool.GetPending(1)
	require.False(t, stillPending)

	got, ok := e.pool.GetCommitted(1)
	require.True(t, ok)
	require.True(t, got.IsCommitted())

	stored, err := e.store.GetBlock(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestIntakeVoteDropsForDeadBlock(t *testing.T) {
	e, shares := newTestEngine(t)
	e.pool.MarkDead(1, time.Now().UnixMilli())

	e.IntakeVote(signVote(t, 1, 0, shares[0]), true)

	select {
	case <-e.pool.MergeQueue:
		t.Fatal("dead block must never reach the merge queue")
	default:
	}
}

func TestIntakeVoteIsIdempotentPerVoter(t *testing.T) {
	e, shares := newTestEngine(t)
	blk := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	e.pool.PutPending(blk)

	v := signVote(t, 1, 0, shares[0])
	e.IntakeVote(v, true)
	e.IntakeVote(v, true)

	require.Equal(t, 1, blk.VoteCount())
}

func TestHandleCommitBroadcastIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	blk := types.NewBlock(2, types.DefaultBaseID, time.Now().UnixMilli())
	blk.SetCommitted([]byte("agg-sig"), time.Now().UnixMilli())

	require.NoError(t, e.HandleCommitBroadcast([]*types.Block{blk}))
	require.NoError(t, e.HandleCommitBroadcast([]*types.Block{blk}))

	got, ok := e.pool.GetCommitted(2)
	require.True(t, ok)
	require.Equal(t, blk.TssSig, got.TssSig)
}

func TestEvictDeadBlocksRespectsUpperCutoff(t *testing.T) {
	e, _ := newTestEngine(t)

	now := int64(1_000_000)
	oldEnough := types.NewBlock(1, types.DefaultBaseID, now-60) // age 60 > 50 threshold
	tooOld := types.NewBlock(2, types.DefaultBaseID, now-deadUpperCutoffMS-1)
	fresh := types.NewBlock(3, types.DefaultBaseID, now-10)

	e.pool.PutPending(oldEnough)
	e.pool.PutPending(tooOld)
	e.pool.PutPending(fresh)

	e.EvictDeadBlocks(now)

	require.True(t, e.pool.IsDead(1))
	require.False(t, e.pool.IsDead(2), "clock-skewed ancient block must not be evicted")
	require.False(t, e.pool.IsDead(3))

	_, stillPending := e.pool.GetPending(3)
	require.True(t, stillPending)
}

func TestDrainMergeQueueProcessesAllQueuedBlocks(t *testing.T) {
	defer leaktest.CheckTimeout(t, 2*time.Second)()

	e, shares := newTestEngine(t)
	blk1 := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	blk2 := types.NewBlock(2, types.DefaultBaseID, time.Now().UnixMilli())
	e.pool.PutPending(blk1)
	e.pool.PutPending(blk2)

	for i, ks := range shares {
		e.IntakeVote(signVote(t, 1, i, ks), true)
		e.IntakeVote(signVote(t, 2, i, ks), true)
	}

	e.DrainMergeQueue()

	_, ok1 := e.pool.GetCommitted(1)
	_, ok2 := e.pool.GetCommitted(2)
	require.True(t, ok1)
	require.True(t, ok2)
}
