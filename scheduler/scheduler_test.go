package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/types"
)

func TestDrainCListPreservesFIFOOrderAndEmpties(t *testing.T) {
	p := pool.New(4, 4, []uint64{2})
	ob := p.Outbox(2)
	require.NotNil(t, ob)

	blk1 := types.NewBlock(1, types.DefaultBaseID, 100)
	blk2 := types.NewBlock(2, types.DefaultBaseID, 200)
	ob.RelayBlocks.PushBack(blk1)
	ob.RelayBlocks.PushBack(blk2)

	out := drainCList(ob.RelayBlocks)
	require.Len(t, out, 2)
	require.Equal(t, blk1, out[0])
	require.Equal(t, blk2, out[1])
	require.Equal(t, 0, ob.RelayBlocks.Len())

	require.Empty(t, drainCList(ob.RelayBlocks))
}
