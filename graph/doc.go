// Package graph builds the bidirectional connection graph over the entity
// set. Exact cross-reference matches and vector similarity both contribute
// typed, confidence-scored edges; rebuilds replace the graph atomically so
// readers never see a partial state.
package graph
