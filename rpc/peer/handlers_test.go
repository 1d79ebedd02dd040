package peer

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

func newTestEnv(t *testing.T) *Environment {
	suite := tbls.Suite()
	shares, err := tbls.GenerateShares(suite, 2, 2)
	require.NoError(t, err)

	p := pool.New(8, 8, []uint64{2})
	kv := store.NewKVStoreWithDB(memdb.NewDB(), log.TestingLogger())
	e := engine.New(log.TestingLogger(), p, kv, suite, shares[0].Public, 2, 2, 50)

	env := NewEnvironment(p, e, log.TestingLogger())
	SetEnvironment(env)
	return env
}

func TestRelayBlockInsertsIntoPending(t *testing.T) {
	e := newTestEnv(t)

	blk := types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli())
	data, err := wire.Marshal(blk)
	require.NoError(t, err)

	res, err := RelayBlock(nil, 2, [][]byte{data})
	require.NoError(t, err)
	require.True(t, res.Ok)

	_, ok := e.Pool.GetPending(1)
	require.True(t, ok)
}

func TestRelayBlockSyncMarksSyncLabel(t *testing.T) {
	e := newTestEnv(t)
	_, err := RelayBlockSync(nil, 2, 7)
	require.NoError(t, err)
	require.True(t, e.Pool.IsSynced(7))
}

func TestSPBcastCommitIsIdempotent(t *testing.T) {
	newTestEnv(t)

	blk := types.NewBlock(5, types.DefaultBaseID, time.Now().UnixMilli())
	blk.SetCommitted([]byte("agg"), time.Now().UnixMilli())
	data, err := wire.Marshal(blk)
	require.NoError(t, err)

	res1, err := SPBcastCommit(nil, 2, time.Now().UnixMilli(), [][]byte{data})
	require.NoError(t, err)
	require.True(t, res1.Ok)

	res2, err := SPBcastCommit(nil, 2, time.Now().UnixMilli(), [][]byte{data})
	require.NoError(t, err)
	require.True(t, res2.Ok)
}

func TestPeerStatusDefaultsOptimistic(t *testing.T) {
	e := newTestEnv(t)
	require.True(t, e.PeerStatus(99))

	e.SetPeerStatus(99, false)
	require.False(t, e.PeerStatus(99))
}
