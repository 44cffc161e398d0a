package queue

import (
	"fmt"

	"bobbin/internal/services"
)

// DuplicateSourceError reports that an active job already owns the
// (collection path, title) pair.
type DuplicateSourceError struct {
	CollectionPath string
	Title          string
	ExistingID     int64
}

func (e *DuplicateSourceError) Error() string {
	if e.ExistingID > 0 {
		return fmt.Sprintf("duplicate source: %q in %q is already active as job %d", e.Title, e.CollectionPath, e.ExistingID)
	}
	return fmt.Sprintf("duplicate source: %q in %q is already active", e.Title, e.CollectionPath)
}

// Is lets errors.Is classify duplicates as validation failures.
func (e *DuplicateSourceError) Is(target error) bool {
	return target == services.ErrValidation
}
