package graph

import (
	"sort"
	"sync"

	"github.com/opsmesh/contexture/core"
)

// arena accumulates connection rows during a rebuild. Inserts are keyed by
// (source, target, kind) so repeated discoveries of the same edge overwrite
// idempotently, and every insert records both directions. Endpoints outside
// the live entity set are dropped, which prunes edges to deleted entities.
type arena struct {
	mu       sync.Mutex
	edges    map[core.ConnectionKey]*core.Connection
	entities map[string]*core.Entity
}

func newArena(entities []*core.Entity) *arena {
	byID := make(map[string]*core.Entity, len(entities))
	for _, entity := range entities {
		byID[entity.ID] = entity
	}
	return &arena{
		edges:    make(map[core.ConnectionKey]*core.Connection),
		entities: byID,
	}
}

// insert adds a connection and its inverse. Invalid rows, self-edges, and
// edges touching unknown entities are ignored.
func (a *arena) insert(conn *core.Connection) {
	if core.ValidateConnection(conn) != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entities[conn.SourceID] == nil || a.entities[conn.TargetID] == nil {
		return
	}
	a.edges[conn.Key()] = conn
	inverse := conn.Inverse()
	a.edges[inverse.Key()] = inverse
}

func (a *arena) contains(key core.ConnectionKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.edges[key] != nil
}

func (a *arena) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.edges)
}

func (a *arena) entity(id string) *core.Entity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entities[id]
}

// partnersOf returns the IDs an entity is currently connected to. The
// similarity phase uses this to exclude exact-match partners from
// nearest-neighbor candidates.
func (a *arena) partnersOf(entityID string) map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	partners := make(map[string]bool)
	for key := range a.edges {
		if key.SourceID == entityID {
			partners[key.TargetID] = true
		}
	}
	return partners
}

// connections returns all rows in deterministic order.
func (a *arena) connections() []*core.Connection {
	a.mu.Lock()
	defer a.mu.Unlock()

	conns := make([]*core.Connection, 0, len(a.edges))
	for _, conn := range a.edges {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].SourceID != conns[j].SourceID {
			return conns[i].SourceID < conns[j].SourceID
		}
		if conns[i].TargetID != conns[j].TargetID {
			return conns[i].TargetID < conns[j].TargetID
		}
		return conns[i].Kind < conns[j].Kind
	})
	return conns
}
