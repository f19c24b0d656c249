package shortcode_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/shortlink/internal/shortcode"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		input uint64
		want  string
	}{
		{"zero", 0, "0"},
		{"one", 1, "1"},
		{"nine", 9, "9"},
		{"ten", 10, "a"},
		{"first upper", 36, "A"},
		{"base minus one", 61, "Z"},
		{"base", 62, "10"},
		{"base squared", 3844, "100"},
		{"large", 123456789, "8m0Kx"},
		{"max uint64", math.MaxUint64, "lYGhA16ahyf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shortcode.Encode(tt.input))
		})
	}
}

func TestEncode_NoLeadingZeroSymbol(t *testing.T) {
	for id := uint64(1); id < 10000; id++ {
		code := shortcode.Encode(id)
		require.NotEqual(t, byte('0'), code[0], "id %d", id)
		require.True(t, strings.Trim(code, shortcode.Alphabet) == "", "id %d produced %q", id, code)
	}
}

func TestEncode_Injective(t *testing.T) {
	seen := make(map[string]uint64, 200000)
	for id := uint64(0); id < 200000; id++ {
		code := shortcode.Encode(id)
		prev, dup := seen[code]
		require.False(t, dup, "ids %d and %d share code %q", prev, id, code)
		seen[code] = id
	}
}

func TestFromID(t *testing.T) {
	assert.Equal(t, "1", shortcode.FromID(1))
	assert.Equal(t, "10", shortcode.FromID(62))
	assert.Equal(t, "", shortcode.FromID(0))
	assert.Equal(t, "", shortcode.FromID(-5))
}

func TestReserved(t *testing.T) {
	assert.True(t, shortcode.Reserved("ping"))
	assert.True(t, shortcode.Reserved(shortcode.FromID(6028834)))
	assert.True(t, shortcode.Reserved("info"))
	assert.False(t, shortcode.Reserved("Ping"))
	assert.False(t, shortcode.Reserved(shortcode.FromID(6028835)))
}
