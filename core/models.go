package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Source identifies the system a record was ingested from.
type Source string

const (
	SourceChat       Source = "chat"
	SourceDocument   Source = "document"
	SourceCodeChange Source = "code_change"
	SourceTicket     Source = "ticket"
	SourceMeeting    Source = "meeting"
	// SourceSummary tags synthetic weekly summary entries in the index.
	SourceSummary Source = "summary"
)

// KnownSources lists the ingestable sources (summaries are derived, not ingested).
var KnownSources = []Source{SourceChat, SourceDocument, SourceCodeChange, SourceTicket, SourceMeeting}

// Valid reports whether s is one of the known source values.
func (s Source) Valid() bool {
	switch s {
	case SourceChat, SourceDocument, SourceCodeChange, SourceTicket, SourceMeeting, SourceSummary:
		return true
	}
	return false
}

// Entity is the canonical representation of one source record.
// IDs are formed as "<source>_<source-local-id>" and are globally unique;
// re-ingesting the same ID upserts in place, it never creates a duplicate.
type Entity struct {
	ID          string
	Source      Source
	Type        string
	Title       string
	Content     string
	Author      string
	Timestamp   time.Time
	Refs        []Ref
	Vector      []float32 // unit-length embedding, dimension fixed across the index
	Fingerprint uint64    // content hash; unchanged fingerprint skips re-embedding
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// EntityID builds the canonical entity ID for a source-local identifier.
func EntityID(source Source, localID string) string {
	return string(source) + "_" + localID
}

// Preview returns at most n characters of content for result rendering.
func (e *Entity) Preview(n int) string {
	if len(e.Content) <= n {
		return e.Content
	}
	return e.Content[:n]
}

// FingerprintOf computes the content fingerprint used to detect unchanged
// records across ingestion runs.
func FingerprintOf(title, content string) uint64 {
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum)
}

// ConnectionKind classifies how two entities were linked.
type ConnectionKind string

const (
	ConnSharedIncident      ConnectionKind = "shared_incident"
	ConnSharedTicket        ConnectionKind = "shared_ticket"
	ConnSharedChangeRequest ConnectionKind = "shared_change_request"
	ConnVectorSimilarity    ConnectionKind = "vector_similarity"
)

// Connection is one direction of a typed, confidence-scored edge between two
// entities. The inverse direction is always persisted alongside it.
type Connection struct {
	SourceID    string
	SourceType  Source
	TargetID    string
	TargetType  Source
	Kind        ConnectionKind
	Confidence  float32 // clamped to [0,1] before persistence
	MatchReason string
}

// Key identifies a connection row: ordered pair plus kind. Exact-match and
// similarity edges between the same pair are distinct rows.
func (c *Connection) Key() ConnectionKey {
	return ConnectionKey{SourceID: c.SourceID, TargetID: c.TargetID, Kind: c.Kind}
}

// Inverse returns the reverse edge with identical kind, confidence and reason.
func (c *Connection) Inverse() *Connection {
	return &Connection{
		SourceID:    c.TargetID,
		SourceType:  c.TargetType,
		TargetID:    c.SourceID,
		TargetType:  c.SourceType,
		Kind:        c.Kind,
		Confidence:  c.Confidence,
		MatchReason: c.MatchReason,
	}
}

// ConnectionKey is the dedup key for connection rows during rebuilds.
type ConnectionKey struct {
	SourceID string
	TargetID string
	Kind     ConnectionKind
}

// ClampConfidence clamps a similarity score into the valid confidence range.
// Numerical drift outside [0,1] is clamped rather than rejected.
func ClampConfidence(score float32) float32 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// WeeklySummary is a synthetic entry aggregating all entities whose timestamp
// falls in one ISO week. It is embedded and searched like a regular entity.
type WeeklySummary struct {
	WeekKey     string
	EntityIDs   []string
	SummaryText string
	Sources     []Source
	Vector      []float32
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// SummaryID returns the index ID for a weekly summary entry.
func SummaryID(weekKey string) string {
	return "weekly_summary_" + weekKey
}

// WeekKey returns the ISO-8601 week identifier (YYYY-Www) for a timestamp.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// SimilarityMatch is a raw nearest-neighbor hit from the embedding index.
type SimilarityMatch struct {
	ID    string
	Score float32
}
