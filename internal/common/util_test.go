package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(16)
	b := GenerateRandByteArray(16)
	require.Len(t, a, 16)
	require.NotEqual(t, a, b)
}

func TestWipeByteArray(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeByteArray(b)
	require.Equal(t, []byte{0, 0, 0}, b)

	WipeByteArray(nil) // must not panic
}

func TestNormalizeIdentity(t *testing.T) {
	require.Equal(t, "maria@ong.org", NormalizeIdentity("  Maria@ONG.org "))
	require.Equal(t, "", NormalizeIdentity("   "))
}
