package push

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenPreview(t *testing.T) {
	require.Equal(t, "short", TokenPreview("short"))
	require.Equal(t, "abcdefghijklmnopqrst...", TokenPreview("abcdefghijklmnopqrstuvwxyz"))
}
