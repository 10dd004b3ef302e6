package retrieval

import (
	"time"

	"github.com/opsmesh/contexture/core"
)

// snippetLen caps content previews in results.
const snippetLen = 200

// SearchHit is one ranked result from a blended search over entities and
// weekly summaries.
type SearchHit struct {
	ID      string      `json:"id"`
	Source  core.Source `json:"source"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet"`
	Score   float32     `json:"score"`
	WeekKey string      `json:"week_key,omitempty"`
}

// Node is one entity in a connection graph response.
type Node struct {
	ID      string      `json:"id"`
	Source  core.Source `json:"source"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet"`
	Depth   int         `json:"depth"` // hops from the nearest seed
	Seed    bool        `json:"seed"`
}

// Edge is one undirected link between two graph nodes. When several
// connection rows join the same pair, the edge carries the highest confidence
// and every contributing match reason.
type Edge struct {
	SourceID     string              `json:"source_id"`
	TargetID     string              `json:"target_id"`
	Kind         core.ConnectionKind `json:"kind"`
	Confidence   float32             `json:"confidence"`
	MatchReasons []string            `json:"match_reasons"`
}

// Graph is the result of a connection traversal.
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// ConnectedEntity is one first-hop neighbor in an entity detail.
type ConnectedEntity struct {
	ID          string              `json:"id"`
	Source      core.Source         `json:"source"`
	Title       string              `json:"title"`
	Kind        core.ConnectionKind `json:"kind"`
	Confidence  float32             `json:"confidence"`
	MatchReason string              `json:"match_reason"`
}

// TimelineEvent places an entity on the detail view's chronological axis.
type TimelineEvent struct {
	ID        string      `json:"id"`
	Source    core.Source `json:"source"`
	Title     string      `json:"title"`
	Timestamp time.Time   `json:"timestamp"`
}

// EntityDetail is the full payload for one entity: its record, first-hop
// connections grouped by the neighbor's source, and a timeline of the entity
// together with everything it links to.
type EntityDetail struct {
	Entity              *core.Entity                      `json:"entity"`
	ConnectionsBySource map[core.Source][]ConnectedEntity `json:"connections_by_source"`
	Timeline            []TimelineEvent                   `json:"timeline"`
}
