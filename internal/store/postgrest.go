package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// PostgREST reads and writes through a PostgREST (Supabase REST) gateway.
// The gateway has no aggregates, so search totals are added up client side.
type PostgREST struct {
	base    string
	key     string
	entries string
	runs    string
	client  *http.Client
	log     zerolog.Logger
}

// NewPostgREST returns a client for the gateway at opts.PostgRESTURL. A nil
// client gets a default one with a timeout.
func NewPostgREST(opts Options, client *http.Client, log zerolog.Logger) (*PostgREST, error) {
	if opts.PostgRESTURL == "" {
		return nil, errors.New("postgrest backend needs POSTGREST_URL")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	entries, runs := opts.Table, opts.RunsTable
	if entries == "" {
		entries = config.DefaultTable
	}
	if runs == "" {
		runs = config.DefaultRunsTable
	}
	return &PostgREST{
		base:    strings.TrimRight(opts.PostgRESTURL, "/"),
		key:     opts.PostgRESTKey,
		entries: entries,
		runs:    runs,
		client:  client,
		log:     log,
	}, nil
}

func (p *PostgREST) endpoint(table string, q url.Values) string {
	u := p.base + "/rest/v1/" + url.PathEscape(table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (p *PostgREST) do(ctx context.Context, method, target string, body interface{}, prefer string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", p.key)
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("postgrest %s %s: %s: %s", method, tableOf(target), resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp, nil
}

// tableOf extracts the table segment of an endpoint URL for error messages.
func tableOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	return strings.TrimPrefix(u.Path, "/rest/v1/")
}

// UpsertBatch posts the rows with merge-duplicates on row_key and counts the
// returned representation.
func (p *PostgREST) UpsertBatch(ctx context.Context, rows []ledger.Entry) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	q := url.Values{"on_conflict": {"row_key"}}
	resp, err := p.do(ctx, http.MethodPost, p.endpoint(p.entries, q), rows,
		"return=representation,resolution=merge-duplicates")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var written []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&written); err != nil {
		return 0, fmt.Errorf("decode upsert response: %w", err)
	}
	p.log.Debug().Int("sent", len(rows)).Int("written", len(written)).Msg("postgrest upsert")
	return len(written), nil
}

// RecordRun posts one import run row.
func (p *PostgREST) RecordRun(ctx context.Context, run ledger.ImportRun) error {
	resp, err := p.do(ctx, http.MethodPost, p.endpoint(p.runs, nil), run, "return=minimal")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// sumPageRows bounds each request while reading amounts for the totals.
const sumPageRows = 1000

// searchQuery translates a filter into PostgREST operators. Subtotal names
// are always excluded.
func searchQuery(f ledger.SearchFilter) url.Values {
	q := url.Values{}
	q.Add("customer_name", "not.like.소계*")
	if f.DateFrom != "" {
		q.Add("tx_date", "gte."+f.DateFrom)
	}
	if f.DateTo != "" {
		q.Add("tx_date", "lte."+f.DateTo)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		pattern := quoteFilterValue("*" + escapeLike(text) + "*")
		var ors []string
		for _, c := range []string{"customer_name", "customer_code", "item_name", "spec"} {
			ors = append(ors, c+".ilike."+pattern)
		}
		q.Set("or", "("+strings.Join(ors, ",")+")")
	}
	return q
}

// quoteFilterValue double-quotes a value so commas and parentheses inside
// it do not split a logical filter.
func quoteFilterValue(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

func postgrestOrder(order string) string {
	if order == ledger.OrderDefault {
		return "tx_date,row_key"
	}
	return "row_no,tx_date,row_key"
}

// Search reads one page with an exact count, then pages through the amount
// columns of the whole filter to build the totals.
func (p *PostgREST) Search(ctx context.Context, f ledger.SearchFilter) (ledger.SearchResult, error) {
	res := ledger.SearchResult{Rows: []ledger.Entry{}}

	q := searchQuery(f)
	q.Set("select", strings.Join(ledger.Columns, ","))
	q.Set("order", postgrestOrder(f.Order))
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("offset", strconv.Itoa(f.Offset()))
	resp, err := p.do(ctx, http.MethodGet, p.endpoint(p.entries, q), nil, "count=exact")
	if err != nil {
		return res, fmt.Errorf("search rows: %w", err)
	}
	err = json.NewDecoder(resp.Body).Decode(&res.Rows)
	resp.Body.Close()
	if err != nil {
		return res, fmt.Errorf("decode search rows: %w", err)
	}
	res.Total = int(contentRangeTotal(resp.Header.Get("Content-Range")))

	if res.Sum, err = p.sums(ctx, f); err != nil {
		return res, fmt.Errorf("search totals: %w", err)
	}
	return res, nil
}

// sums adds amount, deposit and curr_balance over every row matching f.
func (p *PostgREST) sums(ctx context.Context, f ledger.SearchFilter) (ledger.Sums, error) {
	var sums ledger.Sums
	q := searchQuery(f)
	q.Set("select", "amount,deposit,curr_balance")
	q.Set("order", "row_key")
	q.Set("limit", strconv.Itoa(sumPageRows))
	for offset := 0; ; offset += sumPageRows {
		q.Set("offset", strconv.Itoa(offset))
		resp, err := p.do(ctx, http.MethodGet, p.endpoint(p.entries, q), nil, "")
		if err != nil {
			return sums, err
		}
		var rows []struct {
			Amount      decimal.NullDecimal `json:"amount"`
			Deposit     decimal.NullDecimal `json:"deposit"`
			CurrBalance decimal.NullDecimal `json:"curr_balance"`
		}
		err = json.NewDecoder(resp.Body).Decode(&rows)
		resp.Body.Close()
		if err != nil {
			return sums, fmt.Errorf("decode amounts: %w", err)
		}
		for _, r := range rows {
			sums.Add(ledger.Entry{Amount: r.Amount, Deposit: r.Deposit, CurrBalance: r.CurrBalance})
		}
		if len(rows) < sumPageRows {
			return sums, nil
		}
	}
}

// Wipe deletes the selected rows and reads the count from Content-Range.
func (p *PostgREST) Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}
	q := url.Values{}
	switch req.Scope {
	case ledger.WipeDate:
		q.Add("tx_date", "gte."+req.DateFrom)
		q.Add("tx_date", "lte."+req.DateTo)
	case ledger.WipeName:
		q.Add("customer_name", "eq."+strings.TrimSpace(req.CustomerName))
	default:
		// PostgREST refuses a DELETE without a filter.
		q.Add("row_key", "not.is.null")
	}
	resp, err := p.do(ctx, http.MethodDelete, p.endpoint(p.entries, q), nil, "return=minimal,count=exact")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return contentRangeTotal(resp.Header.Get("Content-Range")), nil
}

// contentRangeTotal reads N from "*/N" or "0-9/N"; unknown totals give 0.
func contentRangeTotal(h string) int64 {
	i := strings.LastIndex(h, "/")
	if i < 0 {
		return 0
	}
	n, err := strconv.ParseInt(h[i+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Ping checks that the gateway answers for the entries table.
func (p *PostgREST) Ping(ctx context.Context) error {
	q := url.Values{"select": {"row_key"}, "limit": {"1"}}
	resp, err := p.do(ctx, http.MethodGet, p.endpoint(p.entries, q), nil, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (p *PostgREST) Close() { p.client.CloseIdleConnections() }
