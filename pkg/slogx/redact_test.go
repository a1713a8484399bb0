package slogx_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessara-ic/authgate/pkg/slogx"
)

func TestMaskEmail(t *testing.T) {
	require.Equal(t, "o***@example.com", slogx.MaskEmail("operator@example.com"))
	require.Equal(t, "a***@t.co", slogx.MaskEmail("a@t.co"))
	require.Equal(t, "***", slogx.MaskEmail("not-an-email"))
	require.Equal(t, "***", slogx.MaskEmail("@example.com"))
	require.Equal(t, "***", slogx.MaskEmail(""))
}

func TestTruncateToken(t *testing.T) {
	require.Equal(t, "eyJhbGci...", slogx.TruncateToken("eyJhbGciOiJSUzI1NiJ9"))
	require.Equal(t, "***", slogx.TruncateToken("short"))
	require.Equal(t, "***", slogx.TruncateToken(""))
}
