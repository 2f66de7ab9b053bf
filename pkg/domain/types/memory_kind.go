package types

// MemoryKind represents the category of an extracted memory
type MemoryKind string

const (
	MemoryKindFact       MemoryKind = "fact"
	MemoryKindPreference MemoryKind = "preference"
	MemoryKindContext    MemoryKind = "context"
)

// AllMemoryKinds returns all valid memory kinds
func AllMemoryKinds() []MemoryKind {
	return []MemoryKind{
		MemoryKindFact,
		MemoryKindPreference,
		MemoryKindContext,
	}
}

// IsValid checks if the memory kind is valid
func (k MemoryKind) IsValid() bool {
	switch k {
	case MemoryKindFact, MemoryKindPreference, MemoryKindContext:
		return true
	default:
		return false
	}
}

// String returns the string representation of the memory kind
func (k MemoryKind) String() string {
	return string(k)
}

// ParseMemoryKind parses a string into a MemoryKind.
// Unknown values fall back to MemoryKindContext so that a sloppy LLM
// label never breaks the extraction path.
func ParseMemoryKind(s string) MemoryKind {
	kind := MemoryKind(s)
	if !kind.IsValid() {
		return MemoryKindContext
	}
	return kind
}

// Role represents the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}
