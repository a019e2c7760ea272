package store

import "fmt"

// ErrNotFound is returned when an entity or bond doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "not found"
	}

	return "not found: " + e.ID
}

// ErrDuplicateID is returned when a create collides with an existing id.
type ErrDuplicateID struct {
	ID string
}

func (e ErrDuplicateID) Error() string {
	return "duplicate id: " + e.ID
}

// ErrArchiveHasBonds is returned when archiving an entity that still has
// active bonds and force was not set.
type ErrArchiveHasBonds struct {
	ID    string
	Count int
}

func (e ErrArchiveHasBonds) Error() string {
	return fmt.Sprintf("cannot archive %s: %d active bonds (use force)", e.ID, e.Count)
}

// ErrInvalidData is returned when an entity payload fails boundary validation.
type ErrInvalidData struct {
	Reason string
}

func (e ErrInvalidData) Error() string {
	return "invalid data: " + e.Reason
}
