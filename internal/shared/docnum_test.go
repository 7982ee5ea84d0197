package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDocNumberShape(t *testing.T) {
	at := time.Date(2026, time.January, 15, 10, 30, 0, 0, time.UTC)
	no := DocNumber(DocPrefixVerification, at)
	require.Len(t, no, 14)
	require.Equal(t, "HX20260115", no[:10])
	for _, c := range no[10:] {
		require.Contains(t, docNumAlphabet, string(c))
	}
}

func TestDocNumberPrefixes(t *testing.T) {
	at := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	for _, prefix := range []string{DocPrefixPayable, DocPrefixPaymentOrder, DocPrefixPaymentRequest, DocPrefixStatement, DocPrefixPurchaseOrder, DocPrefixInbound, DocPrefixReturn} {
		no := DocNumber(prefix, at)
		require.Equal(t, prefix+"20260302", no[:10])
	}
}
