package shared

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Document number prefixes used across the business documents.
const (
	DocPrefixVerification   = "HX"
	DocPrefixPayable        = "YF"
	DocPrefixPaymentOrder   = "FK"
	DocPrefixPaymentRequest = "QK"
	DocPrefixStatement      = "DZ"
	DocPrefixPurchaseOrder  = "PO"
	DocPrefixInbound        = "RK"
	DocPrefixReturn         = "TH"
)

const docNumAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DocNumber builds a document number of the form <prefix><YYYYMMDD><4 random
// uppercase base36 chars>, e.g. HX20260115A3F9.
func DocNumber(prefix string, at time.Time) string {
	var b strings.Builder
	b.Grow(len(prefix) + 12)
	b.WriteString(prefix)
	b.WriteString(at.Format("20060102"))
	for i := 0; i < 4; i++ {
		b.WriteByte(docNumAlphabet[rand.IntN(len(docNumAlphabet))])
	}
	return b.String()
}
