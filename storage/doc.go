// Package storage defines the persistence interfaces for entities, weekly
// summaries, and the connection graph, together with the binary serialization
// helpers shared by backends.
package storage
