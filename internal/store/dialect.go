package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// dialect captures the SQL differences between Postgres and SQLite. Dates
// and decimals cross the driver boundary as text in both.
type dialect struct {
	param   func(n int) string
	dateArg func(n int) string
	numArg  func(n int) string
	timeArg func(n int) string
	dateCol func(col string) string
	numCol  func(col string) string
	timeCol func(col string) string
	// nil when the column type cannot sum decimals exactly
	sumCol  func(col string) string
	like    string
}

var postgresDialect = dialect{
	param:   func(n int) string { return fmt.Sprintf("$%d", n) },
	dateArg: func(n int) string { return fmt.Sprintf("$%d::text::date", n) },
	numArg:  func(n int) string { return fmt.Sprintf("$%d::text::numeric", n) },
	timeArg: func(n int) string { return fmt.Sprintf("$%d::text::timestamptz", n) },
	dateCol: func(c string) string { return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", c) },
	numCol:  func(c string) string { return c + "::text" },
	timeCol: func(c string) string {
		return fmt.Sprintf(`to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"Z"')`, c)
	},
	sumCol: func(c string) string { return fmt.Sprintf("COALESCE(SUM(%s), 0)::text", c) },
	like:   "ILIKE",
}

var sqliteDialect = dialect{
	param:   func(int) string { return "?" },
	dateArg: func(int) string { return "?" },
	numArg:  func(int) string { return "?" },
	timeArg: func(int) string { return "?" },
	dateCol: func(c string) string { return c },
	numCol:  func(c string) string { return c },
	timeCol: func(c string) string { return c },
	like: "LIKE",
}

var numericColumns = map[string]bool{
	"qty": true, "unit_price": true, "amount": true,
	"prev_balance": true, "deposit": true, "curr_balance": true,
}

func (d dialect) arg(col string, n int) string {
	switch {
	case col == "tx_date":
		return d.dateArg(n)
	case numericColumns[col]:
		return d.numArg(n)
	case col == "updated_at":
		return d.timeArg(n)
	default:
		return d.param(n)
	}
}

// upsertSQL inserts one entry, overwriting every column on a row_key clash.
func (d dialect) upsertSQL(table string) string {
	args := make([]string, len(ledger.Columns))
	var sets []string
	for i, c := range ledger.Columns {
		args[i] = d.arg(c, i+1)
		if c != "row_key" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (row_key) DO UPDATE SET %s",
		table, strings.Join(ledger.Columns, ", "), strings.Join(args, ", "), strings.Join(sets, ", "))
}

// selectList reads columns back in ledger.Columns order.
func (d dialect) selectList() string {
	cols := make([]string, len(ledger.Columns))
	for i, c := range ledger.Columns {
		switch {
		case c == "tx_date":
			cols[i] = d.dateCol(c)
		case numericColumns[c]:
			cols[i] = d.numCol(c)
		case c == "updated_at":
			cols[i] = d.timeCol(c)
		case c == "row_no":
			cols[i] = "COALESCE(row_no, 0)"
		default:
			cols[i] = fmt.Sprintf("COALESCE(%s, '')", c)
		}
	}
	return strings.Join(cols, ", ")
}

// where builds the search predicate. Subtotal names are always excluded.
func (d dialect) where(f ledger.SearchFilter) (string, []interface{}) {
	conds := []string{"customer_name NOT LIKE '소계%'"}
	var args []interface{}
	next := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}
	if f.DateFrom != "" {
		conds = append(conds, "tx_date >= "+d.dateArg(next(f.DateFrom)))
	}
	if f.DateTo != "" {
		conds = append(conds, "tx_date <= "+d.dateArg(next(f.DateTo)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		var ors []string
		for _, c := range []string{"customer_name", "customer_code", "item_name", "spec"} {
			ors = append(ors, fmt.Sprintf(`%s %s %s ESCAPE '\'`, c, d.like, d.param(next(pattern))))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func (d dialect) orderBy(order string) string {
	if order == ledger.OrderDefault {
		return "ORDER BY tx_date, row_key"
	}
	return "ORDER BY row_no, tx_date, row_key"
}

// searchSQL returns the page query and the totals query for a filter. With
// sumCol set the totals query yields one count/sum row (see scanAggregate);
// without it, it yields the raw amount columns to be added up by sumRows.
func (d dialect) searchSQL(table string, f ledger.SearchFilter) (page string, pageArgs []interface{}, agg string, aggArgs []interface{}) {
	where, args := d.where(f)
	if d.sumCol != nil {
		agg = fmt.Sprintf("SELECT COUNT(*), %s, %s, %s FROM %s %s",
			d.sumCol("amount"), d.sumCol("deposit"), d.sumCol("curr_balance"), table, where)
	} else {
		agg = fmt.Sprintf("SELECT %s, %s, %s FROM %s %s",
			d.numCol("amount"), d.numCol("deposit"), d.numCol("curr_balance"), table, where)
	}
	pageArgs = append(append([]interface{}{}, args...), f.Limit, f.Offset())
	page = fmt.Sprintf("SELECT %s FROM %s %s %s LIMIT %s OFFSET %s",
		d.selectList(), table, where, d.orderBy(f.Order), d.param(len(args)+1), d.param(len(args)+2))
	return page, pageArgs, agg, args
}

// wipeSQL returns the delete statement for a validated request.
func (d dialect) wipeSQL(table string, req ledger.WipeRequest) (string, []interface{}) {
	switch req.Scope {
	case ledger.WipeDate:
		return fmt.Sprintf("DELETE FROM %s WHERE tx_date >= %s AND tx_date <= %s", table, d.dateArg(1), d.dateArg(2)),
			[]interface{}{req.DateFrom, req.DateTo}
	case ledger.WipeName:
		return fmt.Sprintf("DELETE FROM %s WHERE customer_name = %s", table, d.param(1)),
			[]interface{}{strings.TrimSpace(req.CustomerName)}
	default:
		return "DELETE FROM " + table, nil
	}
}

func (d dialect) insertRunSQL(table string) string {
	cols := []string{"run_id", "file_name", "file_hash", "base_date", "total", "valid", "upserted",
		"status", "stage", "error", "started_at", "finished_at"}
	args := make([]string, len(cols))
	for i, c := range cols {
		if strings.HasSuffix(c, "_at") {
			args[i] = d.timeArg(i + 1)
		} else {
			args[i] = d.param(i + 1)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(args, ", "))
}

func runArgs(run ledger.ImportRun) []interface{} {
	return []interface{}{run.RunID, run.FileName, run.FileHash, run.BaseDate, run.Total, run.Valid,
		run.Upserted, run.Status, run.Stage, run.Error,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano)}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// scanner is satisfied by pgx.Row(s) and *sql.Row(s).
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (ledger.Entry, error) {
	var (
		e                                              ledger.Entry
		qty, price, amount, prev, deposit, curr, stamp *string
	)
	err := row.Scan(&e.RowKey, &e.TxDate, &e.CustomerCode, &e.CustomerName, &e.DocNo, &e.LineNo,
		&e.ItemName, &e.Spec, &e.Unit, &qty, &price, &amount, &prev, &deposit, &curr,
		&e.Description, &e.RowNo, &stamp)
	if err != nil {
		return e, err
	}
	e.Qty, e.UnitPrice, e.Amount = nullDecimal(qty), nullDecimal(price), nullDecimal(amount)
	e.PrevBalance, e.Deposit, e.CurrBalance = nullDecimal(prev), nullDecimal(deposit), nullDecimal(curr)
	if stamp != nil {
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, *stamp)
	}
	return e, nil
}

func scanAggregate(row scanner) (int, ledger.Sums, error) {
	var (
		total                  int
		debit, credit, balance string
	)
	if err := row.Scan(&total, &debit, &credit, &balance); err != nil {
		return 0, ledger.Sums{}, err
	}
	return total, ledger.Sums{
		Debit:   nullDecimal(&debit).Decimal,
		Credit:  nullDecimal(&credit).Decimal,
		Balance: nullDecimal(&balance).Decimal,
	}, nil
}

// sumRows counts the rows of a raw totals query and adds their amounts as
// decimals, so text-stored values never pass through floating point.
func sumRows(rows interface {
	scanner
	Next() bool
	Err() error
}) (int, ledger.Sums, error) {
	var (
		total int
		sums  ledger.Sums
	)
	for rows.Next() {
		var amount, deposit, curr *string
		if err := rows.Scan(&amount, &deposit, &curr); err != nil {
			return 0, ledger.Sums{}, err
		}
		total++
		sums.Add(ledger.Entry{Amount: nullDecimal(amount), Deposit: nullDecimal(deposit), CurrBalance: nullDecimal(curr)})
	}
	return total, sums, rows.Err()
}

func nullDecimal(s *string) decimal.NullDecimal {
	if s == nil || *s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
