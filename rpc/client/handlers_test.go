package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"

	"github.com/tomchain/tomchain/crypto/tbls"
	"github.com/tomchain/tomchain/engine"
	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/store"
	"github.com/tomchain/tomchain/types"
	"github.com/tomchain/tomchain/wire"
)

func newTestEnv(t *testing.T) (*Environment, []*tbls.KeyShare) {
	suite := tbls.Suite()
	shares, err := tbls.GenerateShares(suite, 2, 2)
	require.NoError(t, err)

	p := pool.New(8, 8, nil)
	kv := store.NewKVStoreWithDB(memdb.NewDB(), log.TestingLogger())
	e := engine.New(log.TestingLogger(), p, kv, suite, shares[0].Public, 2, 2, 50)

	profiles := make([]*types.ClientProfile, len(shares))
	for i, ks := range shares {
		profiles[i] = types.NewClientProfile(uint64(i+1), ks.Private, ks.Public)
	}
	reg := NewRegistry(profiles)

	env := NewEnvironment(p, e, reg, log.TestingLogger())
	SetEnvironment(env)
	return env, shares
}

func TestRegisterReturnsTssShare(t *testing.T) {
	newTestEnv(t)

	res, err := Register(nil, 1, []byte("fake-ed25519-pubkey-bytes-000000"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.ID)
	require.NotEmpty(t, res.TssShare)

	require.True(t, env.Registry.Get(1).Registered())
}

func TestRegisterUnknownClientFails(t *testing.T) {
	newTestEnv(t)
	_, err := Register(nil, 99, []byte("x"))
	require.Error(t, err)
}

func TestPullPendingBlocksAndGetBlocks(t *testing.T) {
	e, _ := newTestEnv(t)

	blk := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	e.Pool.PutPending(blk)

	headersRes, err := PullPendingBlocks(nil)
	require.NoError(t, err)
	require.Len(t, headersRes.Headers, 1)

	blocksRes, err := GetBlocks(nil, headersRes.Headers)
	require.NoError(t, err)
	require.Len(t, blocksRes.Blocks, 1)

	var got types.Block
	require.NoError(t, wire.Unmarshal(blocksRes.Blocks[0], &got))
	require.Equal(t, blk.Header.ID, got.Header.ID)
}

func TestVoteBlocksExtractsCallerVote(t *testing.T) {
	e, shares := newTestEnv(t)

	blk := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	e.Pool.PutPending(blk)

	sig, err := tbls.SignShare(tbls.Suite(), shares[0].Private, []byte{0, 0, 0, 0, 0, 0, 0, 1})
	require.NoError(t, err)
	vote := types.NewBlockVote(1, 1, sig)
	voted := types.NewBlock(1, types.DefaultBaseID, blk.Header.ProposalTS)
	_, _ = voted.AddVote(vote, 2)

	data, err := wire.Marshal(voted)
	require.NoError(t, err)

	res, err := VoteBlocks(nil, 1, [][]byte{data})
	require.NoError(t, err)
	require.True(t, res.Ok)

	require.Equal(t, 1, blk.VoteCount())
}
