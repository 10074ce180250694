package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
)

var _ serviceiface.Service = (*Service)(nil)

const openTimeout = 30 * time.Second

// Service owns the backend's lifetime inside the app manager.
type Service struct {
	opts Options
	log  zerolog.Logger

	mu      sync.RWMutex
	backend Backend
}

func NewService(cfg map[string]interface{}, env config.Settings, log zerolog.Logger) *Service {
	return &Service{
		opts: OptionsFrom(cfg, env),
		log:  log.With().Str("service", "store").Logger(),
	}
}

func (s *Service) Name() string {
	return "store"
}

func (s *Service) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	b, err := Open(ctx, s.opts, s.log)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.backend = b
	s.mu.Unlock()
	s.log.Info().Str("backend", s.opts.Backend).Str("table", s.opts.Table).Msg("store opened")
	return nil
}

func (s *Service) Stop() error {
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.mu.Unlock()
	if b != nil {
		b.Close()
	}
	return nil
}

// Backend is nil until Start succeeds.
func (s *Service) Backend() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}
