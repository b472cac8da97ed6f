package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDisplayNamePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		sources NameSources
		want    string
	}{
		{
			name:    "live name wins over everything",
			sources: NameSources{Live: "Alice", Cached: "Old Alice", Message: "A.", Stream: "stream-alice"},
			want:    "Alice",
		},
		{
			name:    "cached beats message and stream",
			sources: NameSources{Cached: "Bob", Message: "B.", Stream: "stream-bob"},
			want:    "Bob",
		},
		{
			name:    "message beats stream",
			sources: NameSources{Message: "Carol", Stream: "stream-carol"},
			want:    "Carol",
		},
		{
			name:    "stream as last resort",
			sources: NameSources{Stream: "Dave"},
			want:    "Dave",
		},
		{
			name:    "all empty falls back to placeholder",
			sources: NameSources{},
			want:    PlaceholderName,
		},
		{
			name:    "placeholder live name is skipped",
			sources: NameSources{Live: PlaceholderName, Cached: "Eve"},
			want:    "Eve",
		},
		{
			name:    "bare Unknown is a placeholder too",
			sources: NameSources{Live: "Unknown", Message: "Frank"},
			want:    "Frank",
		},
		{
			name:    "only placeholders yields placeholder",
			sources: NameSources{Live: "Unknown", Cached: PlaceholderName},
			want:    PlaceholderName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDisplayName(tt.sources))
		})
	}
}

func TestIsPlaceholderName(t *testing.T) {
	assert.True(t, IsPlaceholderName(""))
	assert.True(t, IsPlaceholderName("Unknown"))
	assert.True(t, IsPlaceholderName(PlaceholderName))
	assert.False(t, IsPlaceholderName("Alice"))
	assert.False(t, IsPlaceholderName("Unknown Soldier"))
}
