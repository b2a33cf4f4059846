package codes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextShape(t *testing.T) {
	g := NewGenerator('C')
	code, err := g.Next()
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.Equal(t, byte('C'), code[0])
}

func TestNextAvoidsConfusableCharacters(t *testing.T) {
	g := NewGenerator('D')
	for i := 0; i < 200; i++ {
		code, err := g.Next()
		require.NoError(t, err)
		for _, c := range code[1:] {
			require.True(t, strings.ContainsRune(alphabet, c))
			require.NotContains(t, "0O1IL", string(c))
		}
	}
}

func TestNextRarelyCollides(t *testing.T) {
	g := NewGenerator('B')
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := g.Next()
		require.NoError(t, err)
		require.False(t, seen[code], "collision on %s after %d codes", code, i)
		seen[code] = true
	}
}
