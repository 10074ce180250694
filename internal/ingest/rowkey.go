package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/internal/checksum"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

const (
	rowKeyPrefix = "rk1_"
	keySep       = "\x1f"
)

// DeriveKey returns the row key: an explicit source key verbatim, else a
// hash of the transaction identity when doc or line numbers exist, else a
// hash of the item identity.
func DeriveKey(sourceKey string, e ledger.Entry) string {
	if k := strings.TrimSpace(sourceKey); k != "" {
		return k
	}
	party := e.CounterpartKey()
	if e.DocNo != "" || e.LineNo != "" {
		return hashKey(e.TxDate, e.DocNo, e.LineNo, party)
	}
	return hashKey(e.TxDate, party, e.ItemName, e.Spec,
		numText(e.Qty), numText(e.UnitPrice), numText(e.Amount))
}

func hashKey(parts ...string) string {
	return rowKeyPrefix + checksum.SumParts(keySep, parts...)
}

// numText renders a decimal canonically so "1,000" and "1000.0" key alike.
func numText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
