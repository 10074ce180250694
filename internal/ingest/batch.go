package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// ErrUpsert marks a failed store write.
var ErrUpsert = errors.New("upsert failed")

// Upserter writes one batch of entries keyed by row_key and reports how
// many rows were affected.
//
//go:generate mockgen -destination=mocks/mock_upserter.go -source=batch.go Upserter
type Upserter interface {
	UpsertBatch(ctx context.Context, rows []ledger.Entry) (int, error)
}

// UpsertError reports the failing batch and the rows committed before it.
type UpsertError struct {
	Batch     int
	Batches   int
	Committed int
	Err       error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert batch %d/%d failed after %d rows: %v", e.Batch, e.Batches, e.Committed, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

func (e *UpsertError) Is(target error) bool { return target == ErrUpsert }

// BatchWriter issues fixed-size batches one after another.
type BatchWriter struct {
	up   Upserter
	size int
	log  zerolog.Logger
}

// NewBatchWriter returns a writer; size <= 0 selects config.BatchSize.
func NewBatchWriter(up Upserter, size int, log zerolog.Logger) *BatchWriter {
	if size <= 0 {
		size = config.BatchSize
	}
	return &BatchWriter{up: up, size: size, log: log}
}

// Write upserts rows in order and returns the accumulated affected count.
// The first failing batch stops the write; batches before it stay
// committed and their count is returned alongside an *UpsertError.
func (w *BatchWriter) Write(ctx context.Context, rows []ledger.Entry) (int, error) {
	batches := (len(rows) + w.size - 1) / w.size
	total := 0
	for b := 0; b < batches; b++ {
		start := b * w.size
		end := start + w.size
		if end > len(rows) {
			end = len(rows)
		}
		if err := ctx.Err(); err != nil {
			return total, &UpsertError{Batch: b + 1, Batches: batches, Committed: total, Err: err}
		}
		n, err := w.up.UpsertBatch(ctx, rows[start:end])
		if err != nil {
			w.log.Error().Err(err).Int("batch", b+1).Int("batches", batches).Int("committed", total).Msg("upsert batch failed")
			return total, &UpsertError{Batch: b + 1, Batches: batches, Committed: total, Err: err}
		}
		total += n
		w.log.Debug().Int("batch", b+1).Int("batches", batches).Int("rows", n).Msg("upsert batch committed")
	}
	return total, nil
}
