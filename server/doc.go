// Package server exposes the retrieval engine over a read-only HTTP API.
package server
