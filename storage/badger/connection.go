// Copyright 2025 Opsmesh Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

// writeBatchSize caps rows per transaction so a full-graph rewrite never
// exceeds BadgerDB's transaction size limit.
const writeBatchSize = 500

// ConnectionRepository implements storage.ConnectionRepository for BadgerDB.
//
// Rows live under a generation-numbered prefix. A rebuild writes the complete
// next generation in batches, then flips the generation pointer in one small
// transaction, so readers see either the old graph or the new one, never a
// mix. The superseded generation is deleted afterwards.
type ConnectionRepository struct {
	backend *Backend
}

var _ storage.ConnectionRepository = (*ConnectionRepository)(nil)

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(backend *Backend) *ConnectionRepository {
	return &ConnectionRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *ConnectionRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ConnectionRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// ReplaceAll swaps in a full new connection set.
func (r *ConnectionRepository) ReplaceAll(ctx context.Context, conns []*core.Connection) error {
	oldGen, err := r.currentGen()
	if err != nil {
		return err
	}
	newGen := oldGen + 1

	for start := 0; start < len(conns); start += writeBatchSize {
		end := min(start+writeBatchSize, len(conns))
		batch := conns[start:end]

		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, conn := range batch {
				key := makeConnKey(newGen, conn.SourceID, string(conn.Kind), conn.TargetID)
				if err := tx.Set(key, storage.MarshalConnection(conn)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}

	// Pointer flip makes the new generation visible atomically.
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(connGenKey), encodeGen(newGen)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	return r.deleteGeneration(oldGen)
}

// ConnectionsFrom returns an entity's outgoing edges, highest confidence first.
func (r *ConnectionRepository) ConnectionsFrom(ctx context.Context, entityID string) ([]*core.Connection, error) {
	gen, err := r.currentGen()
	if err != nil {
		return nil, err
	}

	var conns []*core.Connection
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanConnections(tx, makeConnSourcePrefix(gen, entityID), &conns)
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(conns, func(a, b *core.Connection) int {
		if a.Confidence > b.Confidence {
			return -1
		}
		if a.Confidence < b.Confidence {
			return 1
		}
		return 0
	})
	return conns, nil
}

// ListConnections returns every row of the current generation.
func (r *ConnectionRepository) ListConnections(ctx context.Context) ([]*core.Connection, error) {
	gen, err := r.currentGen()
	if err != nil {
		return nil, err
	}

	var conns []*core.Connection
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanConnections(tx, makeConnGenPrefix(gen), &conns)
	}, false)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

func (r *ConnectionRepository) scanConnections(tx *badger.Txn, prefix []byte, out *[]*core.Connection) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			conn, err := storage.UnmarshalConnection(val)
			if err != nil {
				return err
			}
			*out = append(*out, conn)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ConnectionRepository) currentGen() (uint64, error) {
	var gen uint64
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		val, err := readValue(tx, []byte(connGenKey))
		if err == storage.ErrNotFound {
			gen = 0
			return nil
		}
		if err != nil {
			return err
		}
		gen, err = decodeGen(val)
		return err
	}, false)
	if err != nil {
		return 0, err
	}
	return gen, nil
}

func (r *ConnectionRepository) deleteGeneration(gen uint64) error {
	prefix := makeConnGenPrefix(gen)
	for {
		var keys [][]byte
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid() && len(keys) < writeBatchSize; iter.Next() {
				keys = append(keys, iter.Item().KeyCopy(nil))
			}
			return nil
		}, false)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}

		err = r.backend.WithTx(func(tx *badger.Txn) error {
			for _, key := range keys {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
}
