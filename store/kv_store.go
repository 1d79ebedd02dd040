package store

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"

	"github.com/tomchain/tomchain/types"
	"github.com/tomchain/tomchain/wire"
)

// KVStore is the opaque key-to-bytes durable store every committed block
// is persisted to, keyed "block-<decimal id>". The underlying tm-db
// handle is documented single-threaded, so every access goes through
// kvMu -- the "dedicated mutex" the concurrency model calls for.
type KVStore struct {
	kvDB tmdb.DB
	kvMu sync.Mutex

	logger log.Logger
}

// NewKVStore opens (creating if absent) a goleveldb-backed store named
// name under dir.
func NewKVStore(name, dir string, logger log.Logger) (*KVStore, error) {
	db, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, errors.Wrap(err, "opening leveldb")
	}
	return NewKVStoreWithDB(db, logger), nil
}

// NewKVStoreWithDB wraps an already-open tm-db handle, the seam tests use
// to run against tmdb/memdb instead of a real leveldb directory.
func NewKVStoreWithDB(kvdb tmdb.DB, logger log.Logger) *KVStore {
	return &KVStore{kvDB: kvdb, logger: logger}
}

func blockKey(id uint64) []byte {
	return []byte(fmt.Sprintf("block-%d", id))
}

// PutBlock serializes block with wire.Marshal and durably writes it under
// its "block-<id>" key. Called from both the local-quorum commit path and
// the peer-broadcast-commit path; writing the same id twice with the same
// logical content is harmless, which is what lets this repository accept
// "persist on both paths" without a dedup step.
func (kv *KVStore) PutBlock(block *types.Block) error {
	data, err := wire.Marshal(block)
	if err != nil {
		return errors.Wrap(err, "marshaling block for persistence")
	}

	kv.kvMu.Lock()
	defer kv.kvMu.Unlock()

	if err := kv.kvDB.Set(blockKey(block.Header.ID), data); err != nil {
		return errors.Wrapf(err, "persisting block %d", block.Header.ID)
	}
	return nil
}

// GetBlock reads and decodes the block stored under id, if any. A nil
// block with a nil error means the key was absent.
func (kv *KVStore) GetBlock(id uint64) (*types.Block, error) {
	kv.kvMu.Lock()
	data, err := kv.kvDB.Get(blockKey(id))
	kv.kvMu.Unlock()
	if err != nil {
		return nil, errors.Wrapf(err, "reading block %d", id)
	}
	if data == nil {
		return nil, nil
	}

	var block types.Block
	if err := wire.Unmarshal(data, &block); err != nil {
		return nil, errors.Wrapf(err, "decoding block %d", id)
	}
	return &block, nil
}

// Has reports whether id has already been persisted, without paying for a
// full decode.
func (kv *KVStore) Has(id uint64) (bool, error) {
	kv.kvMu.Lock()
	defer kv.kvMu.Unlock()
	ok, err := kv.kvDB.Has(blockKey(id))
	return ok, errors.Wrapf(err, "checking block %d", id)
}

// GetDB exposes the underlying handle for callers (mainly tests) that need
// to inspect raw keys.
func (kv *KVStore) GetDB() tmdb.DB {
	return kv.kvDB
}

// Close releases the underlying database handle.
func (kv *KVStore) Close() error {
	return kv.kvDB.Close()
}
