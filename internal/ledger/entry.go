package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one persisted line of a customer's ledger. It is either an item
// sale line (item_name/qty/unit_price/amount) or a balance line
// (doc_no/line_no/deposit/curr_balance); both share the same table.
type Entry struct {
	TxDate       string              `json:"tx_date" db:"tx_date"`
	CustomerCode string              `json:"customer_code" db:"customer_code"`
	CustomerName string              `json:"customer_name" db:"customer_name"`
	DocNo        string              `json:"doc_no" db:"doc_no"`
	LineNo       string              `json:"line_no" db:"line_no"`
	ItemName     string              `json:"item_name" db:"item_name"`
	Spec         string              `json:"spec" db:"spec"`
	Unit         string              `json:"unit" db:"unit"`
	Qty          decimal.NullDecimal `json:"qty" db:"qty"`
	UnitPrice    decimal.NullDecimal `json:"unit_price" db:"unit_price"`
	Amount       decimal.NullDecimal `json:"amount" db:"amount"`
	PrevBalance  decimal.NullDecimal `json:"prev_balance" db:"prev_balance"`
	Deposit      decimal.NullDecimal `json:"deposit" db:"deposit"`
	CurrBalance  decimal.NullDecimal `json:"curr_balance" db:"curr_balance"`
	Description  string              `json:"description" db:"description"`
	RowNo        int                 `json:"row_no" db:"row_no"`
	RowKey       string              `json:"row_key" db:"row_key"`
	UpdatedAt    time.Time           `json:"updated_at" db:"updated_at"`
}

// Columns lists the persisted columns in the order stores bind them.
var Columns = []string{
	"row_key", "tx_date", "customer_code", "customer_name", "doc_no", "line_no",
	"item_name", "spec", "unit", "qty", "unit_price", "amount",
	"prev_balance", "deposit", "curr_balance", "description", "row_no", "updated_at",
}

// CounterpartKey returns the code when present, otherwise the name.
func (e Entry) CounterpartKey() string {
	if e.CustomerCode != "" {
		return e.CustomerCode
	}
	return e.CustomerName
}

// Values returns the entry's column values in Columns order. Decimals and
// updated_at are rendered as strings (decimals nil when absent) so every
// driver can bind them as text and cast on the server side.
func (e Entry) Values() []interface{} {
	return []interface{}{
		e.RowKey, e.TxDate, e.CustomerCode, e.CustomerName, e.DocNo, e.LineNo,
		e.ItemName, e.Spec, e.Unit,
		DecimalText(e.Qty), DecimalText(e.UnitPrice), DecimalText(e.Amount),
		DecimalText(e.PrevBalance), DecimalText(e.Deposit), DecimalText(e.CurrBalance),
		e.Description, e.RowNo, e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// DecimalText renders a nullable decimal as *string for driver binding.
func DecimalText(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}
