package ledgerapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/internal/ingest"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
	"github.com/sin100007-pixel/customer-qr-login/internal/store"
)

const adminToken = "s3cret"

var quiet = zerolog.New(nil).Level(zerolog.Disabled)

type fakeImporter struct {
	got ingest.Upload
	sum ingest.Summary
	err error
}

func (f *fakeImporter) Run(_ context.Context, up ingest.Upload) (ingest.Summary, error) {
	f.got = up
	return f.sum, f.err
}

type fakeStore struct {
	rows    []ledger.Entry
	sum     ledger.Sums
	filters []ledger.SearchFilter
	wipes   []ledger.WipeRequest
	deleted int64
	err     error
}

func (f *fakeStore) Search(_ context.Context, flt ledger.SearchFilter) (ledger.SearchResult, error) {
	f.filters = append(f.filters, flt)
	if f.err != nil {
		return ledger.SearchResult{}, f.err
	}
	from := min(flt.Offset(), len(f.rows))
	to := min(from+flt.Limit, len(f.rows))
	return ledger.SearchResult{Total: len(f.rows), Rows: f.rows[from:to], Sum: f.sum}, nil
}

func (f *fakeStore) Wipe(_ context.Context, req ledger.WipeRequest) (int64, error) {
	f.wipes = append(f.wipes, req)
	return f.deleted, f.err
}

func (f *fakeStore) Ping(context.Context) error { return f.err }

func newServer(imp Importer, s Store) http.Handler {
	return api.NewRouter(quiet, Routes(Deps{Importer: imp, Store: s, AdminToken: adminToken, Log: quiet}))
}

func multipartBody(t *testing.T, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestImportHandler(t *testing.T) {
	imp := &fakeImporter{sum: ingest.Summary{RunID: "run-1", File: "ledger.csv", Total: 5, Valid: 4, Upserted: 4}}
	h := newServer(imp, &fakeStore{})

	body, ct := multipartBody(t, "ledger.csv", []byte("a,b\n"), map[string]string{"base_date": " 2024-01-05 "})
	req := httptest.NewRequest(http.MethodPost, "/api/ledger-import", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "run-1", resp["run_id"])
	assert.EqualValues(t, 5, resp["total"])
	assert.EqualValues(t, 4, resp["valid"])
	assert.EqualValues(t, 4, resp["upserted"])
	assert.Equal(t, "ledger.csv", imp.got.FileName)
	assert.Equal(t, "2024-01-05", imp.got.BaseDate)
	assert.Equal(t, []byte("a,b\n"), imp.got.Data)
}

func TestImportHandler_Failures(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		err      error
		sum      ingest.Summary
		status   int
		stage    string
		upserted float64
	}{
		{name: "missing file", status: http.StatusBadRequest, stage: ingest.StageValidate},
		{
			name: "bad base date", fileName: "a.csv",
			err:    &ingest.StageError{Stage: ingest.StageValidate, Err: ingest.ErrBadBaseDate},
			status: http.StatusBadRequest, stage: ingest.StageValidate,
		},
		{
			name: "decode", fileName: "a.xlsx",
			err:    &ingest.StageError{Stage: ingest.StageDecode, Err: ingest.ErrDecode},
			status: http.StatusBadRequest, stage: ingest.StageDecode,
		},
		{
			name: "upsert", fileName: "a.csv",
			err:    &ingest.StageError{Stage: ingest.StageUpsert, Err: errors.New("batch 2 of 3 failed")},
			sum:    ingest.Summary{Total: 2500, Valid: 2500, Upserted: 1000},
			status: http.StatusInternalServerError, stage: ingest.StageUpsert, upserted: 1000,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newServer(&fakeImporter{sum: tc.sum, err: tc.err}, &fakeStore{})
			body, ct := multipartBody(t, tc.fileName, []byte("x"), nil)
			req := httptest.NewRequest(http.MethodPost, "/api/ledger-import", body)
			req.Header.Set("Content-Type", ct)
			rec, resp := do(t, h, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, resp["ok"])
			assert.Equal(t, tc.stage, resp["stage"])
			assert.NotEmpty(t, resp["error"])
			assert.Equal(t, tc.upserted, resp["upserted"])
		})
	}
}

func TestImportHandler_NotMultipart(t *testing.T) {
	h := newServer(&fakeImporter{}, &fakeStore{})
	req := httptest.NewRequest(http.MethodPost, "/api/ledger-import", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec, resp := do(t, h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ingest.StageValidate, resp["stage"])
}

func TestSearchHandler_Filter(t *testing.T) {
	tests := []struct {
		query string
		want  ledger.SearchFilter
	}{
		{"", ledger.SearchFilter{Page: 1, Limit: 50, Order: ledger.OrderExcel}},
		{"?limit=500&page=3", ledger.SearchFilter{Page: 3, Limit: 200, Order: ledger.OrderExcel}},
		{"?limit=0&page=-1", ledger.SearchFilter{Page: 1, Limit: 1, Order: ledger.OrderExcel}},
		{"?order=date&q=+%EA%B3%A0+", ledger.SearchFilter{Query: "고", Page: 1, Limit: 50, Order: ledger.OrderDefault}},
		{"?date_from=2024-01-01&date_to=2024-01-31", ledger.SearchFilter{DateFrom: "2024-01-01", DateTo: "2024-01-31", Page: 1, Limit: 50, Order: ledger.OrderExcel}},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			s := &fakeStore{}
			rec, _ := do(t, newServer(nil, s), httptest.NewRequest(http.MethodGet, "/api/ledger-search"+tc.query, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, s.filters, 1)
			assert.Equal(t, tc.want, s.filters[0])
		})
	}
}

func TestSearchHandler_Response(t *testing.T) {
	s := &fakeStore{
		rows: []ledger.Entry{
			{TxDate: "2024-01-05", CustomerName: "고동희", ItemName: "사과", Qty: decimal.NewNullDecimal(decimal.NewFromInt(3)), Amount: decimal.NewNullDecimal(decimal.NewFromInt(3000))},
			{TxDate: "2024-01-06", CustomerName: "고동희", ItemName: "입금", Amount: decimal.NewNullDecimal(decimal.NewFromInt(1)), Deposit: decimal.NewNullDecimal(decimal.NewFromInt(4000))},
		},
		sum: ledger.Sums{Debit: decimal.NewFromInt(3000), Credit: decimal.NewFromInt(4000), Balance: decimal.NewFromInt(-1000)},
	}
	rec := httptest.NewRecorder()
	newServer(nil, s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger-search", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OK    bool           `json:"ok"`
		Total int            `json:"total"`
		Rows  []ledger.Entry `json:"rows"`
		Sum   ledger.Sums    `json:"sum"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "사과", resp.Rows[0].ItemName)
	assert.Equal(t, "", resp.Rows[1].ItemName)
	assert.False(t, resp.Rows[1].Amount.Valid)
	assert.True(t, resp.Rows[1].Deposit.Decimal.Equal(decimal.NewFromInt(4000)))
	assert.True(t, resp.Sum.Balance.Equal(decimal.NewFromInt(-1000)))
}

func TestMaskDeposit(t *testing.T) {
	amount := decimal.NewNullDecimal(decimal.NewFromInt(500))
	tests := []struct {
		name   string
		item   string
		masked bool
	}{
		{"plain", "입금", true},
		{"spaced", "입 금", true},
		{"padded", " 현금\t입금 ", true},
		{"full width space", "입\u3000금", true},
		{"sale", "사과", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskDeposit(ledger.Entry{ItemName: tt.item, Amount: amount})
			if tt.masked {
				assert.Empty(t, got.ItemName)
				assert.False(t, got.Amount.Valid)
			} else {
				assert.Equal(t, tt.item, got.ItemName)
				assert.True(t, got.Amount.Valid)
			}
		})
	}
}

func TestSearchHandler_Errors(t *testing.T) {
	rec, _ := do(t, newServer(nil, &fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/ledger-search?date_from=2024/01/01", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, newServer(nil, &fakeStore{err: errors.New("boom")}), httptest.NewRequest(http.MethodGet, "/api/ledger-search", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchHandler_CSVExportsAllPages(t *testing.T) {
	s := &fakeStore{}
	for i := 0; i < 250; i++ {
		s.rows = append(s.rows, ledger.Entry{TxDate: "2024-01-05", CustomerName: fmt.Sprintf("c%03d", i), RowNo: i + 2})
	}
	rec := httptest.NewRecorder()
	newServer(nil, s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger-search?format=csv&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	body := strings.TrimPrefix(rec.Body.String(), "\ufeff")
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 251)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "c249", records[250][2])
	assert.Len(t, s.filters, 2)
}

func TestClearHandler(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		body   string
		err    error
		status int
	}{
		{name: "no token", body: `{"scope":"all"}`, status: http.StatusUnauthorized},
		{name: "wrong token", token: "nope", body: `{"scope":"all"}`, status: http.StatusUnauthorized},
		{name: "bad json", token: adminToken, body: `{`, status: http.StatusBadRequest},
		{name: "bad scope", token: adminToken, body: `{"scope":"everything"}`, status: http.StatusBadRequest},
		{name: "date without range", token: adminToken, body: `{"scope":"date","date_from":"2024-01-01"}`, status: http.StatusBadRequest},
		{name: "name without name", token: adminToken, body: `{"scope":"name","customer_name":" "}`, status: http.StatusBadRequest},
		{name: "store failure", token: adminToken, body: `{"scope":"all"}`, err: errors.New("down"), status: http.StatusInternalServerError},
		{name: "ok", token: adminToken, body: `{"scope":" Name ","customer_name":"고동희"}`, status: http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &fakeStore{deleted: 3, err: tc.err}
			req := httptest.NewRequest(http.MethodPost, "/api/ledger-clear", strings.NewReader(tc.body))
			if tc.token != "" {
				req.Header.Set(api.AdminTokenHeader, tc.token)
			}
			rec, resp := do(t, newServer(nil, s), req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				assert.Equal(t, false, resp["ok"])
				return
			}
			assert.Equal(t, true, resp["ok"])
			assert.Equal(t, "name", resp["scope"])
			assert.EqualValues(t, 3, resp["deleted"])
			assert.Equal(t, []ledger.WipeRequest{{Scope: ledger.WipeName, CustomerName: "고동희"}}, s.wipes)
		})
	}
}

func TestClearHandler_NoConfiguredToken(t *testing.T) {
	h := api.NewRouter(quiet, Routes(Deps{Store: &fakeStore{}, Log: quiet}))
	req := httptest.NewRequest(http.MethodPost, "/api/ledger-clear", strings.NewReader(`{"scope":"all"}`))
	rec, _ := do(t, h, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	rec, resp := do(t, newServer(nil, &fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", resp["status"])

	rec, resp = do(t, newServer(nil, &fakeStore{err: errors.New("no route to host")}), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", resp["status"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec, resp := do(t, newServer(nil, &fakeStore{}), httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestImportThenSearch_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, store.Options{SQLitePath: filepath.Join(t.TempDir(), "ledger.db")}, quiet)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	h := newServer(ingest.New(db, quiet, ingest.WithRecorder(db)), db)

	csvData := "일자,거래처명,품명,수량,단가,금액\n" +
		"2024-01-05,고동희,사과,3,1000,\n" +
		",,배,2,500,\n" +
		"2024-01-06,고동희,입금,,,\n" +
		",소계,,,,4000\n"
	body, ct := multipartBody(t, "ledger.csv", []byte(csvData), map[string]string{"base_date": "2024-01-07"})
	req := httptest.NewRequest(http.MethodPost, "/api/ledger-import", body)
	req.Header.Set("Content-Type", ct)
	rec, resp := do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 4, resp["total"])
	assert.EqualValues(t, 3, resp["valid"])
	assert.EqualValues(t, 3, resp["upserted"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger-search?q=%EA%B3%A0%EB%8F%99%ED%9D%AC", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Total int            `json:"total"`
		Rows  []ledger.Entry `json:"rows"`
		Sum   ledger.Sums    `json:"sum"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 3, res.Total)
	assert.Equal(t, "2024-01-07", res.Rows[1].TxDate)
	assert.True(t, res.Sum.Debit.Equal(decimal.NewFromInt(4000)))
}
