package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// Resolver resolves logical fields against one table's header. Column
// positions are computed once per table in alias priority order.
type Resolver struct {
	cols map[Field][]int
}

// NewResolver indexes the header labels of a decoded table. Exact labels win;
// a field with none falls back to labels that contain one of its aliases,
// skipping columns another field claimed exactly.
func NewResolver(aliases AliasTable, labels []string) *Resolver {
	norm := make([]string, len(labels))
	for i, l := range labels {
		norm[i] = normLabel(l)
	}
	cols := make(map[Field][]int, len(aliases))
	claimed := make(map[int]bool)
	for field, list := range aliases {
		for _, alias := range list {
			a := normLabel(alias)
			for i, l := range norm {
				if a != "" && l == a {
					cols[field] = append(cols[field], i)
					claimed[i] = true
				}
			}
		}
	}
	for field, list := range aliases {
		if len(cols[field]) > 0 {
			continue
		}
		taken := make(map[int]bool)
		for _, alias := range list {
			a := normLabel(alias)
			for i, l := range norm {
				if !claimed[i] && !taken[i] && containsAlias(l, a) {
					cols[field] = append(cols[field], i)
					taken[i] = true
				}
			}
		}
	}
	return &Resolver{cols: cols}
}

// Value returns the first non-empty cell among the field's aliases.
func (r *Resolver) Value(row RawRow, f Field) string {
	for _, i := range r.cols[f] {
		if i < len(row.Values) && row.Values[i] != "" {
			return row.Values[i]
		}
	}
	return ""
}

// Normalized is a row mapped onto the ledger model before classification
// and keying.
type Normalized struct {
	Entry     ledger.Entry
	SourceKey string
	// DateFromBase is set when the row carried no date of its own.
	DateFromBase bool
}

// Normalize maps a raw row onto ledger fields. baseDate, already in ISO
// form, fills in rows without a readable date.
func (r *Resolver) Normalize(row RawRow, baseDate string) Normalized {
	e := ledger.Entry{
		CustomerCode: r.Value(row, FieldCustomerCode),
		CustomerName: r.Value(row, FieldCustomerName),
		DocNo:        r.Value(row, FieldDocNo),
		LineNo:       r.Value(row, FieldLineNo),
		ItemName:     r.Value(row, FieldItemName),
		Spec:         r.Value(row, FieldSpec),
		Unit:         r.Value(row, FieldUnit),
		Qty:          ParseNumber(r.Value(row, FieldQty)),
		UnitPrice:    ParseNumber(r.Value(row, FieldUnitPrice)),
		Amount:       ParseNumber(r.Value(row, FieldAmount)),
		PrevBalance:  ParseNumber(r.Value(row, FieldPrevBalance)),
		Deposit:      ParseNumber(r.Value(row, FieldDeposit)),
		CurrBalance:  ParseNumber(r.Value(row, FieldCurrBalance)),
		Description:  r.Value(row, FieldDescription),
		RowNo:        row.Number,
	}
	n := Normalized{SourceKey: strings.TrimSpace(r.Value(row, FieldRowKey))}

	if d, ok := ParseDate(r.Value(row, FieldDate)); ok {
		e.TxDate = d
	} else if baseDate != "" {
		e.TxDate = baseDate
		n.DateFromBase = true
	}

	derive(&e)
	if e.Description == "" {
		e.Description = synthesizeDescription(e)
	}
	n.Entry = e
	return n
}

// derive fills unit price from amount/qty and amount from qty*price, rounded
// to whole units with halves away from zero.
func derive(e *ledger.Entry) {
	if !e.UnitPrice.Valid && e.Amount.Valid && e.Qty.Valid && !e.Qty.Decimal.IsZero() {
		e.UnitPrice = decimal.NewNullDecimal(e.Amount.Decimal.Div(e.Qty.Decimal).Round(0))
	}
	if !e.Amount.Valid && e.Qty.Valid && e.UnitPrice.Valid {
		e.Amount = decimal.NewNullDecimal(e.Qty.Decimal.Mul(e.UnitPrice.Decimal).Round(0))
	}
}

// synthesizeDescription renders "item spec x<qty> @<price> =<amount>",
// skipping absent parts.
func synthesizeDescription(e ledger.Entry) string {
	var parts []string
	if e.ItemName != "" {
		parts = append(parts, e.ItemName)
	}
	if e.Spec != "" {
		parts = append(parts, e.Spec)
	}
	if e.Qty.Valid {
		parts = append(parts, "x"+e.Qty.Decimal.String())
	}
	if e.UnitPrice.Valid {
		parts = append(parts, "@"+e.UnitPrice.Decimal.String())
	}
	if e.Amount.Valid {
		parts = append(parts, "="+e.Amount.Decimal.String())
	}
	return strings.Join(parts, " ")
}
