package graph

import (
	"slices"

	"github.com/opsmesh/contexture/core"
)

// Snapshot is an immutable view of the connection graph. Lookups are safe for
// concurrent use; a rebuild produces a fresh snapshot rather than mutating
// this one.
type Snapshot struct {
	bySource map[string][]*core.Connection
	total    int
}

// newSnapshot indexes connection rows by source entity, ordering each
// adjacency list by confidence descending with target ID as tie-break.
func newSnapshot(conns []*core.Connection) *Snapshot {
	bySource := make(map[string][]*core.Connection)
	for _, conn := range conns {
		bySource[conn.SourceID] = append(bySource[conn.SourceID], conn)
	}
	for _, adjacent := range bySource {
		slices.SortFunc(adjacent, func(a, b *core.Connection) int {
			if a.Confidence > b.Confidence {
				return -1
			}
			if a.Confidence < b.Confidence {
				return 1
			}
			if a.TargetID < b.TargetID {
				return -1
			}
			if a.TargetID > b.TargetID {
				return 1
			}
			return 0
		})
	}
	return &Snapshot{bySource: bySource, total: len(conns)}
}

// ConnectionsFrom returns an entity's outgoing edges, highest confidence
// first. The returned slice must not be modified.
func (s *Snapshot) ConnectionsFrom(entityID string) []*core.Connection {
	return s.bySource[entityID]
}

// Size returns the total number of directed edges in the snapshot.
func (s *Snapshot) Size() int {
	return s.total
}
