package core

import "fmt"

// ValidateEntity checks that an entity satisfies the canonical model.
// The vector is allowed to be empty (embedding may be pending or skipped);
// when present it must match dim.
func ValidateEntity(e *Entity, dim int) error {
	if e == nil {
		return ErrInvalidEntity
	}
	if e.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyID)
	}
	if !e.Source.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidEntity, ErrInvalidSource, e.Source)
	}
	if e.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyContent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrMissingTimestamp)
	}
	if len(e.Vector) != 0 && len(e.Vector) != dim {
		return fmt.Errorf("%w: vector dimension %d, want %d", ErrInvalidEntity, len(e.Vector), dim)
	}
	return nil
}

// ValidateConnection checks that a connection row is storable.
func ValidateConnection(c *Connection) error {
	if c == nil {
		return ErrInvalidConnection
	}
	if c.SourceID == "" || c.TargetID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConnection, ErrEmptyID)
	}
	if c.SourceID == c.TargetID {
		return fmt.Errorf("%w: %w", ErrInvalidConnection, ErrSelfConnection)
	}
	switch c.Kind {
	case ConnSharedIncident, ConnSharedTicket, ConnSharedChangeRequest, ConnVectorSimilarity:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConnection, c.Kind)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of range", ErrInvalidConnection, c.Confidence)
	}
	return nil
}
