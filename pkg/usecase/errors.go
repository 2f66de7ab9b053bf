package usecase

import (
	"errors"

	"github.com/secmon-lab/mnemo/pkg/repository/firestore"
	"github.com/secmon-lab/mnemo/pkg/repository/memory"
)

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrMemoryNotFound = errors.New("memory not found")

	// Validation errors
	ErrUserIDRequired = errors.New("user ID is required")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrEmptyContent   = errors.New("memory content is empty")
	ErrEmptyQuery     = errors.New("search query is empty")
)

// Context keys for error values
const (
	UserIDKey   = "user_id"
	MemoryIDKey = "memory_id"
)

// isNotFound reports whether err is a not-found error from either
// repository backend.
func isNotFound(err error) bool {
	return errors.Is(err, firestore.ErrNotFound) || errors.Is(err, memory.ErrNotFound)
}
