// Package retrieval answers queries over the entity index, the weekly
// summary collection, and the connection graph snapshot. All operations are
// read-only and safe for concurrent use.
package retrieval
