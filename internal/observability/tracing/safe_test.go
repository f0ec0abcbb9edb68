package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsBlockedKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/payout-requests"),
		attribute.String("wallet_address", "0xabc"),
		attribute.String("email", "creator@example.com"),
		attribute.String("request_id", ""),
		attribute.Int("http.status_code", 201),
	)

	require.Len(t, attrs, 2)
	require.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	require.Equal(t, attribute.Key("http.status_code"), attrs[1].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	require.Nil(t, SafeError(nil))

	long := errors.New(strings.Repeat("x", 1000))
	require.Len(t, SafeError(long).Error(), maxErrorMessageLen)
}
