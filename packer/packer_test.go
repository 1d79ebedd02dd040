package packer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/tomchain/tomchain/pool"
	"github.com/tomchain/tomchain/types"
)

func mkTx(id uint64) types.Transaction {
	return types.NewTransaction(id, id, id+1, 10, 1)
}

func newTestPacker(cfg Config) (*Packer, *pool.Pool) {
	p := pool.New(8, 8, nil)
	pk := New(cfg, 2, p, log.TestingLogger(), 42)
	return pk, p
}

func TestTickGeneratesAndPacksBlocks(t *testing.T) {
	cfg := Config{Freq: time.Second, GenerateTxRate: 4, TxPerBlock: 2, PbPoolLimit: 10, AccountCount: 100}
	pk, p := newTestPacker(cfg)

	pk.Tick()

	require.Equal(t, 0, p.PendingTxCount(), "4 generated txs should drain into 2 blocks of 2")
	require.Equal(t, 2, p.PendingCount())
}

func TestTickRespectsPbPoolLimit(t *testing.T) {
	cfg := Config{Freq: time.Second, GenerateTxRate: 10, TxPerBlock: 100, PbPoolLimit: 1, AccountCount: 100}
	pk, p := newTestPacker(cfg)

	// Pre-seed one pending block so PendingCount() == PbPoolLimit.
	p.PutPending(types.NewBlock(1, types.DefaultBaseID, time.Now().UnixMilli()))
	require.Equal(t, 1, p.PendingCount())

	pk.Tick()
	require.Equal(t, 0, p.PendingTxCount(), "generateTxs must not run once pb-pool-limit is reached")
}

func TestPackBlockIDsAreMonotonic(t *testing.T) {
	cfg := Config{Freq: time.Second, GenerateTxRate: 0, TxPerBlock: 1, PbPoolLimit: 1000, AccountCount: 10}
	pk, p := newTestPacker(cfg)

	p.PushTx(mkTx(1), mkTx(2), mkTx(3))
	pk.Tick()

	require.Equal(t, 3, p.PendingCount())
	ids := make([]uint64, 0, 3)
	for _, b := range p.SnapshotPending() {
		ids = append(ids, b.Header.ID)
	}
	require.ElementsMatch(t, []uint64{2_000_001, 2_000_002, 2_000_003}, ids)
}
