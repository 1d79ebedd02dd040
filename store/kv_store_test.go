package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tm-db/memdb"

	"github.com/tomchain/tomchain/types"
)

func newTestStore() *KVStore {
	return NewKVStoreWithDB(memdb.NewDB(), log.TestingLogger())
}

func TestPutGetBlockRoundTrip(t *testing.T) {
	kv := newTestStore()

	blk := types.NewBlock(7, types.DefaultBaseID, 1000)
	blk.SetCommitted([]byte("aggregated-sig"), 2000)

	require.NoError(t, kv.PutBlock(blk))

	ok, err := kv.Has(7)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := kv.GetBlock(7)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, blk.Header.ID, got.Header.ID)
	require.True(t, got.IsCommitted())
}

func TestGetBlockMissingReturnsNil(t *testing.T) {
	kv := newTestStore()

	got, err := kv.GetBlock(999)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutBlockTwiceIsIdempotent(t *testing.T) {
	kv := newTestStore()
	blk := types.NewBlock(1, types.DefaultBaseID, 1000)
	blk.SetCommitted([]byte("sig"), 1500)

	require.NoError(t, kv.PutBlock(blk))
	require.NoError(t, kv.PutBlock(blk))

	got, err := kv.GetBlock(1)
	require.NoError(t, err)
	require.Equal(t, blk.TssSig, got.TssSig)
}
