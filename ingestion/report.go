package ingestion

import "fmt"

// maxErrorSamples caps how many raw error strings a report keeps.
const maxErrorSamples = 5

// Report holds the outcome counts of one ingestion batch.
type Report struct {
	Source            string
	Processed         int // records seen in the batch
	Upserted          int // entities written to storage
	SkippedMalformed  int // records rejected by the normalizer
	Unchanged         int // entities whose fingerprint matched, embedding skipped
	EmbeddingFailures int // entities stored without a vector after retries
	ErrorSamples      []string
}

func (r *Report) addSample(err error) {
	if len(r.ErrorSamples) < maxErrorSamples {
		r.ErrorSamples = append(r.ErrorSamples, err.Error())
	}
}

// String renders the report for CLI output.
func (r *Report) String() string {
	return fmt.Sprintf("%s: processed=%d upserted=%d skipped=%d unchanged=%d embedding_failures=%d",
		r.Source, r.Processed, r.Upserted, r.SkippedMalformed, r.Unchanged, r.EmbeddingFailures)
}

// Merge folds another report's counts into r.
func (r *Report) Merge(other *Report) {
	r.Processed += other.Processed
	r.Upserted += other.Upserted
	r.SkippedMalformed += other.SkippedMalformed
	r.Unchanged += other.Unchanged
	r.EmbeddingFailures += other.EmbeddingFailures
	for _, sample := range other.ErrorSamples {
		if len(r.ErrorSamples) < maxErrorSamples {
			r.ErrorSamples = append(r.ErrorSamples, sample)
		}
	}
}
