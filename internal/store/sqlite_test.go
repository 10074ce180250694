package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ingest"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), Options{SQLitePath: filepath.Join(t.TempDir(), "ledger.db")},
		zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

const sampleCSV = "일자,거래처코드,거래처명,품명,규격,수량,단가,금액,입금액,잔액\n" +
	"2024-01-05,C01,고동희,사과,10kg,3,1000,,,3000\n" +
	"2024-01-05,,,배,,2,500,1000,,4000\n" +
	"2024-01-06,C01,고동희,입금,,,,,4000,0\n" +
	"2024-01-06,C02,김철수,감,,1,700,700,,700\n" +
	"2024-01-06,,소계,,,,,5700,4000,\n"

func TestSQLite_IngestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	in := ingest.New(s, zerolog.New(nil).Level(zerolog.Disabled), ingest.WithRecorder(s))
	upload := ingest.Upload{FileName: "ledger.csv", Data: []byte(sampleCSV)}

	first, err := in.Run(ctx, upload)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	assert.Equal(t, 4, first.Valid)
	assert.Equal(t, 4, first.Upserted)

	before, err := s.Search(ctx, ledger.SearchFilter{Page: 1, Limit: 50})
	require.NoError(t, err)

	second, err := in.Run(ctx, upload)
	require.NoError(t, err)
	assert.Equal(t, first.Upserted, second.Upserted)

	after, err := s.Search(ctx, ledger.SearchFilter{Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Equal(t, 4, after.Total)
	require.Len(t, after.Rows, len(before.Rows))
	for i := range before.Rows {
		b, a := before.Rows[i], after.Rows[i]
		b.UpdatedAt, a.UpdatedAt = time.Time{}, time.Time{}
		assert.Equal(t, b, a)
	}

	var runs int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.runs).Scan(&runs))
	assert.Equal(t, 2, runs)
}

func TestSQLite_Search(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	in := ingest.New(s, zerolog.New(nil).Level(zerolog.Disabled))
	_, err := in.Run(ctx, ingest.Upload{FileName: "ledger.csv", Data: []byte(sampleCSV)})
	require.NoError(t, err)

	t.Run("sums cover the whole filter", func(t *testing.T) {
		res, err := s.Search(ctx, ledger.SearchFilter{Page: 1, Limit: 1, Order: ledger.OrderExcel})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		require.Len(t, res.Rows, 1)
		assert.Equal(t, 2, res.Rows[0].RowNo)
		assert.Equal(t, "4700", res.Sum.Debit.String())
		assert.Equal(t, "4000", res.Sum.Credit.String())
		assert.Equal(t, "7700", res.Sum.Balance.String())
	})

	t.Run("date range and text", func(t *testing.T) {
		res, err := s.Search(ctx, ledger.SearchFilter{DateFrom: "2024-01-06", DateTo: "2024-01-06", Query: "김", Page: 1, Limit: 50})
		require.NoError(t, err)
		require.Equal(t, 1, res.Total)
		assert.Equal(t, "김철수", res.Rows[0].CustomerName)
		assert.Equal(t, "700", res.Rows[0].Amount.Decimal.String())
	})

	t.Run("carried counterpart is stored", func(t *testing.T) {
		res, err := s.Search(ctx, ledger.SearchFilter{Query: "배", Page: 1, Limit: 50})
		require.NoError(t, err)
		require.Equal(t, 1, res.Total)
		assert.Equal(t, "C01", res.Rows[0].CustomerCode)
		assert.Equal(t, "고동희", res.Rows[0].CustomerName)
	})

	t.Run("second page", func(t *testing.T) {
		res, err := s.Search(ctx, ledger.SearchFilter{Page: 2, Limit: 3, Order: ledger.OrderDefault})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Total)
		assert.Len(t, res.Rows, 1)
	})
}

func TestSQLite_SearchSumsAreExact(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t)
	rows := []ledger.Entry{
		{RowKey: "a", TxDate: "2024-01-05", CustomerName: "고동희", RowNo: 2,
			Amount: ingest.ParseNumber("0.1"), Deposit: ingest.ParseNumber("0.7"), CurrBalance: ingest.ParseNumber("1.1")},
		{RowKey: "b", TxDate: "2024-01-05", CustomerName: "고동희", RowNo: 3,
			Amount: ingest.ParseNumber("0.2"), Deposit: ingest.ParseNumber("0.1"), CurrBalance: ingest.ParseNumber("2.2")},
		{RowKey: "c", TxDate: "2024-01-06", CustomerName: "김철수", RowNo: 4},
	}
	_, err := s.UpsertBatch(ctx, rows)
	require.NoError(t, err)

	res, err := s.Search(ctx, ledger.SearchFilter{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, "0.3", res.Sum.Debit.String())
	assert.Equal(t, "0.8", res.Sum.Credit.String())
	assert.Equal(t, "3.3", res.Sum.Balance.String())

	res, err = s.Search(ctx, ledger.SearchFilter{Query: "없음", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.True(t, res.Sum.Debit.IsZero())
}

func TestSQLite_Wipe(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     ledger.WipeRequest
		deleted int64
		wantErr error
	}{
		{"by date", ledger.WipeRequest{Scope: ledger.WipeDate, DateFrom: "2024-01-06", DateTo: "2024-01-31"}, 2, nil},
		{"by name", ledger.WipeRequest{Scope: ledger.WipeName, CustomerName: " 고동희 "}, 3, nil},
		{"all", ledger.WipeRequest{Scope: ledger.WipeAll}, 4, nil},
		{"missing dates", ledger.WipeRequest{Scope: ledger.WipeDate}, 0, ledger.ErrDateRangeReq},
		{"bad scope", ledger.WipeRequest{Scope: "everything"}, 0, ledger.ErrInvalidScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestSQLite(t)
			_, err := ingest.New(s, zerolog.New(nil).Level(zerolog.Disabled)).
				Run(ctx, ingest.Upload{FileName: "ledger.csv", Data: []byte(sampleCSV)})
			require.NoError(t, err)

			n, err := s.Wipe(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.deleted, n)
		})
	}
}

func TestService_Lifecycle(t *testing.T) {
	svc := NewService(
		map[string]interface{}{"backend": "sqlite", "sqlite_path": filepath.Join(t.TempDir(), "svc.db")},
		config.Settings{StoreBackend: config.BackendPostgres},
		zerolog.New(nil).Level(zerolog.Disabled),
	)
	assert.Equal(t, "store", svc.Name())
	assert.Nil(t, svc.Backend())

	require.NoError(t, svc.Start())
	require.NotNil(t, svc.Backend())
	assert.NoError(t, svc.Backend().Ping(context.Background()))

	require.NoError(t, svc.Stop())
	assert.Nil(t, svc.Backend())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "mongo"}, zerolog.Nop())
	assert.Error(t, err)
}
