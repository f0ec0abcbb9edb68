package masking

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	require.Equal(t, "", Mask("  "))
	require.Equal(t, "****", Mask("abc"))
	require.Equal(t, "0x****cdef", Mask("0x1234567890abcdef"))
	require.Equal(t, "****7890", Mask("1234567890"))
	require.Equal(t, "****@example.com", Mask("creator@example.com"))
}

func TestMetadataMasksSensitiveKeysOnly(t *testing.T) {
	out := Metadata(map[string]any{
		"destination": map[string]any{"wallet_address": "0xfeedbeef1234"},
		"emails":      []any{"a@b.io"},
		"email":       "ops@creatorpay.io",
		"reason":      "fake views",
		"count":       3,
		" ":           "dropped",
	})
	require.Equal(t, 3, out["count"])
	require.Equal(t, "fake views", out["reason"])
	require.Equal(t, "****@creatorpay.io", out["email"])
	require.Equal(t, []any{"a@b.io"}, out["emails"])
	require.Equal(t, "0x****1234", out["destination"].(map[string]any)["wallet_address"])
	require.NotContains(t, out, " ")
	require.NotContains(t, out, "")
}
