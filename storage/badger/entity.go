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
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) *EntityRepository {
	return &EntityRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *EntityRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertEntities writes one or more entities keyed by ID. An existing record
// keeps its InsertedAt; everything else is replaced. Large batches are split
// across transactions to stay under badger's transaction size limit.
func (r *EntityRepository) UpsertEntities(ctx context.Context, entities ...*core.Entity) error {
	for start := 0; start < len(entities); start += writeBatchSize {
		end := min(start+writeBatchSize, len(entities))
		if err := r.upsertBatch(entities[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *EntityRepository) upsertBatch(entities []*core.Entity) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Truncated to the codec's timestamp precision so round-trips compare equal.
		now := time.Now().UTC().Truncate(time.Microsecond)
		for _, entity := range entities {
			key := makeEntityKey(entity.ID)

			old, err := r.readEntity(tx, key)
			if err != nil && err != storage.ErrNotFound {
				return err
			}
			if old != nil {
				entity.InsertedAt = old.InsertedAt
			} else {
				entity.InsertedAt = now
			}
			entity.UpdatedAt = now

			if err := tx.Set(key, storage.MarshalEntity(entity)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	var entity *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		entity, err = r.readEntity(tx, makeEntityKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// GetEntities retrieves multiple entities, silently skipping missing IDs.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...string) ([]*core.Entity, error) {
	entities := make([]*core.Entity, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := r.readEntity(tx, makeEntityKey(id))
			if err == storage.ErrNotFound {
				continue
			}
			if err != nil {
				return err
			}
			entities = append(entities, entity)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// ListEntities returns every stored entity.
func (r *EntityRepository) ListEntities(ctx context.Context) ([]*core.Entity, error) {
	var entities []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entityPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				entity, err := storage.UnmarshalEntity(val)
				if err != nil {
					return err
				}
				entities = append(entities, entity)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// DeleteEntities removes entities by ID.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar runs a cosine scan over all entity vectors.
func (r *EntityRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, exclude map[string]bool) ([]core.SimilarityMatch, error) {
	return r.backend.scanSimilar([]byte(entityPrefix), vector, minSimilarity, limit, exclude, func(val []byte) (vectorRow, error) {
		entity, err := storage.UnmarshalEntity(val)
		if err != nil {
			return vectorRow{}, err
		}
		return vectorRow{id: entity.ID, vector: entity.Vector, timestamp: entity.Timestamp}, nil
	})
}

func (r *EntityRepository) readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	val, err := readValue(tx, key)
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalEntity(val)
}
