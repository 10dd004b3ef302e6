// Package weekly buckets entities into ISO weeks and maintains one summary
// entry per week. Summaries are produced by the configured summarizer with a
// placeholder fallback, embedded, and stored alongside entities for blended
// search.
package weekly
