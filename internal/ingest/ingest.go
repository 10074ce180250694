package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/checksum"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
)

// Pipeline stages reported on failure.
const (
	StageValidate = "validate"
	StageDecode   = "decode"
	StageUpsert   = "upsert"
)

// ErrBadBaseDate is returned when the upload's base_date is not a date.
var ErrBadBaseDate = errors.New("base_date must be YYYY-MM-DD")

// Upload is one file handed to the pipeline.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	BaseDate    string
}

// Summary counts one run. On failure it holds whatever was reached.
type Summary struct {
	RunID    string         `json:"run_id"`
	File     string         `json:"file"`
	Total    int            `json:"total"`
	Valid    int            `json:"valid"`
	Upserted int            `json:"upserted"`
	Dropped  map[Reason]int `json:"-"`
}

// StageError tags a pipeline failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// RunRecorder persists run bookkeeping.
type RunRecorder interface {
	RecordRun(ctx context.Context, run ledger.ImportRun) error
}

// Archiver keeps a copy of the original upload and returns its location.
type Archiver interface {
	Archive(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Ingestor runs decode, normalize, filter, key and upsert for one upload
// at a time. It keeps no state between runs and is safe for concurrent use.
type Ingestor struct {
	aliases    AliasTable
	classifier *Classifier
	writer     *BatchWriter
	batchSize  int
	recorder   RunRecorder
	archiver   Archiver
	log        zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithAliases replaces the built-in alias table.
func WithAliases(t AliasTable) Option { return func(in *Ingestor) { in.aliases = t } }

// WithBatchSize overrides the upsert batch size.
func WithBatchSize(n int) Option { return func(in *Ingestor) { in.batchSize = n } }

// WithRecorder records every run through r.
func WithRecorder(r RunRecorder) Option { return func(in *Ingestor) { in.recorder = r } }

// WithArchiver copies every upload through a before decoding.
func WithArchiver(a Archiver) Option { return func(in *Ingestor) { in.archiver = a } }

// WithClock sets the time source used for updated_at and run timestamps.
func WithClock(now func() time.Time) Option { return func(in *Ingestor) { in.now = now } }

// WithIDs sets the run id generator.
func WithIDs(newID func() string) Option { return func(in *Ingestor) { in.newID = newID } }

// New builds an Ingestor writing through up.
func New(up Upserter, log zerolog.Logger, opts ...Option) *Ingestor {
	in := &Ingestor{
		aliases: DefaultAliases(),
		log:     log,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
	for _, o := range opts {
		o(in)
	}
	in.classifier = NewClassifier(in.aliases)
	in.writer = NewBatchWriter(up, in.batchSize, log)
	return in
}

// Prepared is the outcome of the pure part of the pipeline.
type Prepared struct {
	Entries    []ledger.Entry
	Kept       int
	Duplicates int
	Dropped    map[Reason]int
}

// Prepare normalizes, filters and keys the rows of a decoded table.
// Rows sharing a key collapse to one entry holding the later row's values,
// the same state sequential upserts would leave behind.
func (in *Ingestor) Prepare(t *Table, baseDate string) Prepared {
	p := Prepared{Dropped: make(map[Reason]int)}
	res := NewResolver(in.aliases, t.Labels)
	index := make(map[string]int)
	var carry Carry
	for _, row := range t.Rows {
		var (
			n      Normalized
			reason Reason
		)
		n, carry, reason = in.classifier.Classify(row, res.Normalize(row, baseDate), carry)
		if reason != Keep {
			p.Dropped[reason]++
			continue
		}
		p.Kept++
		e := n.Entry
		e.RowKey = DeriveKey(n.SourceKey, e)
		if i, dup := index[e.RowKey]; dup {
			p.Entries[i] = e
			p.Duplicates++
			continue
		}
		index[e.RowKey] = len(p.Entries)
		p.Entries = append(p.Entries, e)
	}
	return p
}

// Run ingests one upload. A failure returns a *StageError together with
// the partial summary.
func (in *Ingestor) Run(ctx context.Context, up Upload) (Summary, error) {
	started := in.now()
	sum := Summary{RunID: in.newID(), File: up.FileName}
	log := in.log.With().Str("run_id", sum.RunID).Str("file", up.FileName).Logger()
	run := ledger.ImportRun{
		RunID:     sum.RunID,
		FileName:  up.FileName,
		FileHash:  checksum.Sum(up.Data),
		StartedAt: started,
	}

	fail := func(stage string, err error) (Summary, error) {
		log.Error().Err(err).Str("stage", stage).
			Int("total", sum.Total).Int("valid", sum.Valid).Int("upserted", sum.Upserted).
			Msg("ledger import failed")
		run.Status, run.Stage, run.Error = ledger.RunFailed, stage, err.Error()
		in.record(ctx, log, run, sum)
		return sum, &StageError{Stage: stage, Err: err}
	}

	baseDate := ""
	if up.BaseDate != "" {
		d, ok := ParseDate(up.BaseDate)
		if !ok {
			return fail(StageValidate, ErrBadBaseDate)
		}
		baseDate = d
	}
	run.BaseDate = baseDate

	in.archive(ctx, log, sum.RunID, up)

	table, err := Decode(up.Data, SniffKind(up.FileName, up.ContentType, up.Data), in.aliases)
	if err != nil {
		return fail(StageDecode, err)
	}
	sum.Total = len(table.Rows)

	p := in.Prepare(table, baseDate)
	sum.Valid = p.Kept
	sum.Dropped = p.Dropped
	log.Info().Str("kind", string(table.Kind)).Int("header_row", table.HeaderIndex+1).
		Int("total", sum.Total).Int("valid", sum.Valid).Int("duplicates", p.Duplicates).
		Interface("dropped", p.Dropped).Msg("ledger rows prepared")

	stamp := in.now().UTC()
	for i := range p.Entries {
		p.Entries[i].UpdatedAt = stamp
	}
	n, err := in.writer.Write(ctx, p.Entries)
	sum.Upserted = n
	if err != nil {
		return fail(StageUpsert, err)
	}

	run.Status = ledger.RunCompleted
	in.record(ctx, log, run, sum)
	log.Info().Int("upserted", sum.Upserted).Dur("took", in.now().Sub(started)).Msg("ledger import completed")
	return sum, nil
}

func (in *Ingestor) record(ctx context.Context, log zerolog.Logger, run ledger.ImportRun, sum Summary) {
	if in.recorder == nil {
		return
	}
	run.Total, run.Valid, run.Upserted = sum.Total, sum.Valid, sum.Upserted
	run.FinishedAt = in.now()
	// A cancelled request still deserves its bookkeeping row.
	if err := in.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn().Err(err).Msg("record import run")
	}
}

func (in *Ingestor) archive(ctx context.Context, log zerolog.Logger, runID string, up Upload) {
	if in.archiver == nil {
		return
	}
	key := runID + "/" + filepath.Base(up.FileName)
	loc, err := in.archiver.Archive(ctx, key, up.ContentType, up.Data)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive upload")
		return
	}
	log.Debug().Str("location", loc).Msg("upload archived")
}
