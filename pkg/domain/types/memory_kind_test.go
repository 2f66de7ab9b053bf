package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemo/pkg/domain/types"
)

func TestMemoryKind_IsValid(t *testing.T) {
	tests := []struct {
		name string
		kind types.MemoryKind
		want bool
	}{
		{
			name: "valid fact",
			kind: types.MemoryKindFact,
			want: true,
		},
		{
			name: "valid preference",
			kind: types.MemoryKindPreference,
			want: true,
		},
		{
			name: "valid context",
			kind: types.MemoryKindContext,
			want: true,
		},
		{
			name: "invalid kind",
			kind: types.MemoryKind("opinion"),
			want: false,
		},
		{
			name: "empty kind",
			kind: types.MemoryKind(""),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.want {
				gt.B(t, tt.kind.IsValid()).True()
			} else {
				gt.B(t, tt.kind.IsValid()).False()
			}
		})
	}
}

func TestParseMemoryKind(t *testing.T) {
	gt.Value(t, types.ParseMemoryKind("fact")).Equal(types.MemoryKindFact)
	gt.Value(t, types.ParseMemoryKind("preference")).Equal(types.MemoryKindPreference)
	gt.Value(t, types.ParseMemoryKind("context")).Equal(types.MemoryKindContext)

	// Unknown labels fall back to context
	gt.Value(t, types.ParseMemoryKind("gibberish")).Equal(types.MemoryKindContext)
	gt.Value(t, types.ParseMemoryKind("")).Equal(types.MemoryKindContext)
}

func TestRole_IsValid(t *testing.T) {
	gt.B(t, types.RoleUser.IsValid()).True()
	gt.B(t, types.RoleAssistant.IsValid()).True()
	gt.B(t, types.Role("system").IsValid()).False()
	gt.B(t, types.Role("").IsValid()).False()
}

func TestAllMemoryKinds(t *testing.T) {
	kinds := types.AllMemoryKinds()
	gt.Array(t, kinds).Length(3)
	for _, k := range kinds {
		gt.B(t, k.IsValid()).True()
	}
}
