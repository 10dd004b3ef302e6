// Package ingestion normalizes raw source records into entities, embeds their
// content, and upserts them into storage. Each source (chat, documents, code
// changes, tickets, meetings) has its own field mapping; malformed records are
// skipped and counted, never fatal to a batch.
package ingestion
