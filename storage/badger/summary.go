package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/opsmesh/contexture/core"
	"github.com/opsmesh/contexture/storage"
)

// SummaryRepository implements storage.SummaryRepository for BadgerDB.
type SummaryRepository struct {
	backend *Backend
}

var _ storage.SummaryRepository = (*SummaryRepository)(nil)

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(backend *Backend) *SummaryRepository {
	return &SummaryRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *SummaryRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SummaryRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// UpsertSummary writes a summary keyed by week. Re-running an aggregation
// replaces the week's entry in place.
func (r *SummaryRepository) UpsertSummary(ctx context.Context, summary *core.WeeklySummary) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Truncated to the codec's timestamp precision so round-trips compare equal.
		now := time.Now().UTC().Truncate(time.Microsecond)
		key := makeSummaryKey(summary.WeekKey)

		old, err := r.readSummary(tx, key)
		if err != nil && err != storage.ErrNotFound {
			return err
		}
		if old != nil {
			summary.InsertedAt = old.InsertedAt
		} else {
			summary.InsertedAt = now
		}
		summary.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalWeeklySummary(summary)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSummary retrieves a summary by week key.
func (r *SummaryRepository) GetSummary(ctx context.Context, weekKey string) (*core.WeeklySummary, error) {
	var summary *core.WeeklySummary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		summary, err = r.readSummary(tx, makeSummaryKey(weekKey))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListSummaries returns every stored weekly summary.
func (r *SummaryRepository) ListSummaries(ctx context.Context) ([]*core.WeeklySummary, error) {
	var summaries []*core.WeeklySummary
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(summaryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				summary, err := storage.UnmarshalWeeklySummary(val)
				if err != nil {
					return err
				}
				summaries = append(summaries, summary)
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
	return summaries, nil
}

// FindSimilar runs a cosine scan over all summary vectors.
func (r *SummaryRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.SimilarityMatch, error) {
	return r.backend.scanSimilar([]byte(summaryPrefix), vector, minSimilarity, limit, nil, func(val []byte) (vectorRow, error) {
		summary, err := storage.UnmarshalWeeklySummary(val)
		if err != nil {
			return vectorRow{}, err
		}
		return vectorRow{id: summary.WeekKey, vector: summary.Vector, timestamp: summary.UpdatedAt}, nil
	})
}

func (r *SummaryRepository) readSummary(tx *badger.Txn, key []byte) (*core.WeeklySummary, error) {
	val, err := readValue(tx, key)
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalWeeklySummary(val)
}
