package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ledger"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
)

var _ serviceiface.Service = (*RetentionService)(nil)

// retentionFloor is the lower bound of every retention wipe range.
const retentionFloor = "1900-01-01"

// Wiper deletes ledger rows.
type Wiper interface {
	Wipe(ctx context.Context, req ledger.WipeRequest) (int64, error)
}

// RetentionConfig controls the scheduled wipe of old ledger rows.
type RetentionConfig struct {
	Schedule string
	Months   int
	TimeZone string
}

// RetentionConfigFrom reads the retention entry of services.yaml.
func RetentionConfigFrom(cfg map[string]interface{}) RetentionConfig {
	return RetentionConfig{
		Schedule: config.String(cfg, "schedule", config.DefaultRetentionSchedule),
		Months:   config.Int(cfg, "retention_months", 0),
		TimeZone: config.String(cfg, "timezone", config.DefaultTimeZone),
	}
}

// RetentionService deletes entries dated before now minus Months, on a
// cron schedule. Months <= 0 leaves the service idle.
type RetentionService struct {
	cfg   RetentionConfig
	wiper func() Wiper
	log   zerolog.Logger
	loc   *time.Location
	now   func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRetentionService takes a getter so the store can be opened after
// construction.
func NewRetentionService(cfg RetentionConfig, wiper func() Wiper, log zerolog.Logger) *RetentionService {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	return &RetentionService{
		cfg:   cfg,
		wiper: wiper,
		log:   log.With().Str("service", "retention").Logger(),
		loc:   loc,
		now:   time.Now,
	}
}

func (s *RetentionService) Name() string {
	return "retention"
}

func (s *RetentionService) Start() error {
	if s.cfg.Months <= 0 {
		s.log.Info().Msg("retention disabled")
		return nil
	}
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.RetentionBatchTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Error().Err(err).Msg("retention wipe failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	s.log.Info().Str("schedule", s.cfg.Schedule).Int("months", s.cfg.Months).Msg("retention scheduled")
	return nil
}

func (s *RetentionService) Stop() error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

// Cutoff is the first date that is kept.
func (s *RetentionService) Cutoff() time.Time {
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	return today.AddDate(0, -s.cfg.Months, 0)
}

// RunOnce wipes every entry dated before Cutoff.
func (s *RetentionService) RunOnce(ctx context.Context) (int64, error) {
	if s.cfg.Months <= 0 {
		return 0, nil
	}
	w := s.wiper()
	if w == nil {
		return 0, errors.New("retention: store is not open")
	}
	last := s.Cutoff().AddDate(0, 0, -1)
	req := ledger.WipeRequest{
		Scope:    ledger.WipeDate,
		DateFrom: retentionFloor,
		DateTo:   last.Format("2006-01-02"),
	}
	n, err := w.Wipe(ctx, req)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("date_to", req.DateTo).Int64("deleted", n).Bool("audit", true).Msg("retention wipe")
	return n, nil
}
