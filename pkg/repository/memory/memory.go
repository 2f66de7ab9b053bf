package memory

import (
	"github.com/secmon-lab/mnemo/pkg/domain/interfaces"
)

// Memory is an in-memory repository for local development and tests. It
// holds everything in process memory and provides the same similarity
// search semantics as the Firestore backend.
type Memory struct {
	memory *memoryRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		memory: newMemoryRepository(),
	}
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Close() error {
	return nil
}
