package ledgerapi

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/api/utils"
	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// depositMarker in an item name marks a payment line whose item details
// are not shown to readers.
const depositMarker = "입금"

var csvHeader = []string{
	"tx_date", "customer_code", "customer_name", "doc_no", "line_no",
	"item_name", "spec", "unit", "qty", "unit_price", "amount",
	"prev_balance", "deposit", "curr_balance", "description", "row_no",
}

// SearchHandler handles GET /api/ledger-search.
func SearchHandler(s Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := filterFromQuery(r)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
			exportCSV(r.Context(), w, s, f)
			return
		}

		res, err := s.Search(r.Context(), f)
		if err != nil {
			searchFailed(w, err)
			return
		}
		rows := make([]ledger.Entry, len(res.Rows))
		for i, e := range res.Rows {
			rows[i] = maskDeposit(e)
		}
		pg := utils.PaginationParams{Page: f.Page, Limit: f.Limit}
		pg.SetPaginationStats(res.Total)
		api.RespondWithPayload(w, map[string]interface{}{
			"total":       res.Total,
			"page":        pg.Page,
			"limit":       pg.Limit,
			"total_pages": pg.TotalPages,
			"rows":        rows,
			"sum":         res.Sum,
		})
	}
}

func searchFailed(w http.ResponseWriter, err error) {
	api.RespondWithError(w, http.StatusInternalServerError, "search failed: "+err.Error())
}

func filterFromQuery(r *http.Request) (ledger.SearchFilter, error) {
	q := r.URL.Query()
	pg := utils.ExtractPagination(r, config.DefaultSearchRows, config.MaxSearchRows)
	f := ledger.SearchFilter{
		DateFrom: strings.TrimSpace(q.Get("date_from")),
		DateTo:   strings.TrimSpace(q.Get("date_to")),
		Query:    strings.TrimSpace(q.Get("q")),
		Page:     pg.Page,
		Limit:    pg.Limit,
		Order:    ledger.OrderExcel,
	}
	for _, d := range []string{f.DateFrom, f.DateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return f, ledger.ErrInvalidISODate
		}
	}
	if o := strings.ToLower(q.Get("order")); o != "" && o != ledger.OrderExcel {
		f.Order = ledger.OrderDefault
	}
	return f, nil
}

// maskDeposit hides item details of payment lines. Spaces are ignored so
// "입 금" is caught too.
func maskDeposit(e ledger.Entry) ledger.Entry {
	if !strings.Contains(strings.Join(strings.Fields(e.ItemName), ""), depositMarker) {
		return e
	}
	e.ItemName = ""
	e.Qty = decimal.NullDecimal{}
	e.UnitPrice = decimal.NullDecimal{}
	e.Amount = decimal.NullDecimal{}
	return e
}

// exportCSV writes every row matching f, page by page, as a CSV attachment.
func exportCSV(ctx context.Context, w http.ResponseWriter, s Store, f ledger.SearchFilter) {
	f.Page, f.Limit = 1, config.MaxSearchRows
	res, err := s.Search(ctx, f)
	if err != nil {
		searchFailed(w, err)
		return
	}

	name := fmt.Sprintf("ledger_%s.csv", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	// BOM so spreadsheet tools pick UTF-8 for Korean text.
	w.Write([]byte("\ufeff"))

	cw := csv.NewWriter(w)
	cw.Write(csvHeader)
	written := 0
	for {
		for _, e := range res.Rows {
			cw.Write(csvRecord(maskDeposit(e)))
		}
		written += len(res.Rows)
		if len(res.Rows) == 0 || written >= res.Total {
			break
		}
		f.Page++
		if res, err = s.Search(ctx, f); err != nil {
			// Headers are gone; the truncated body is all we can signal.
			break
		}
	}
	cw.Flush()
}

func csvRecord(e ledger.Entry) []string {
	return []string{
		e.TxDate, e.CustomerCode, e.CustomerName, e.DocNo, e.LineNo,
		e.ItemName, e.Spec, e.Unit,
		decimalCell(e.Qty), decimalCell(e.UnitPrice), decimalCell(e.Amount),
		decimalCell(e.PrevBalance), decimalCell(e.Deposit), decimalCell(e.CurrBalance),
		e.Description, strconv.Itoa(e.RowNo),
	}
}

func decimalCell(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
