package graph

import "errors"

var (
	// ErrEntityRepositoryRequired is returned when an entity repository is not provided.
	ErrEntityRepositoryRequired = errors.New("entity repository required")

	// ErrConnectionRepositoryRequired is returned when a connection repository is not provided.
	ErrConnectionRepositoryRequired = errors.New("connection repository required")
)
