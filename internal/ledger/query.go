package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Search ordering modes.
const (
	OrderExcel   = "excel"
	OrderDefault = "default"
)

// SearchFilter selects ledger rows for the read side.
type SearchFilter struct {
	DateFrom string
	DateTo   string
	Query    string
	Page     int
	Limit    int
	Order    string
}

// Offset is the zero-based row offset of the filter's page.
func (f SearchFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Sums aggregates amount, deposit and current balance over a filtered set.
type Sums struct {
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"`
}

// Add folds one entry's amount, deposit and current balance into the totals.
// Absent values count as zero.
func (s *Sums) Add(e Entry) {
	s.Debit = s.Debit.Add(e.Amount.Decimal)
	s.Credit = s.Credit.Add(e.Deposit.Decimal)
	s.Balance = s.Balance.Add(e.CurrBalance.Decimal)
}

// SearchResult is one page of rows plus totals over the whole filter.
type SearchResult struct {
	Total int     `json:"total"`
	Rows  []Entry `json:"rows"`
	Sum   Sums    `json:"sum"`
}

// Wipe scopes.
const (
	WipeAll  = "all"
	WipeDate = "date"
	WipeName = "name"
)

var (
	ErrInvalidScope   = errors.New("invalid scope")
	ErrDateRangeReq   = errors.New("date_from/date_to required")
	ErrCustomerReq    = errors.New("customer_name required")
	ErrInvalidISODate = errors.New("date must be YYYY-MM-DD")
)

// WipeRequest describes an administrative delete.
type WipeRequest struct {
	Scope        string `json:"scope"`
	DateFrom     string `json:"date_from,omitempty"`
	DateTo       string `json:"date_to,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
}

// Validate checks that the scope carries the parameters it needs.
func (w WipeRequest) Validate() error {
	switch w.Scope {
	case WipeAll:
		return nil
	case WipeDate:
		if strings.TrimSpace(w.DateFrom) == "" || strings.TrimSpace(w.DateTo) == "" {
			return ErrDateRangeReq
		}
		if !isISODate(w.DateFrom) || !isISODate(w.DateTo) {
			return ErrInvalidISODate
		}
		return nil
	case WipeName:
		if strings.TrimSpace(w.CustomerName) == "" {
			return ErrCustomerReq
		}
		return nil
	default:
		return ErrInvalidScope
	}
}

func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// Import run statuses.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ImportRun is the bookkeeping record of one ingestion request.
type ImportRun struct {
	RunID      string    `json:"run_id"`
	FileName   string    `json:"file_name"`
	FileHash   string    `json:"file_hash"`
	BaseDate   string    `json:"base_date"`
	Total      int       `json:"total"`
	Valid      int       `json:"valid"`
	Upserted   int       `json:"upserted"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
