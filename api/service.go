package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
)

var _ serviceiface.Service = (*GatewayService)(nil)

const shutdownTimeout = 15 * time.Second

// GatewayService serves the HTTP API. Mounts are resolved at Start so that
// they can depend on services started earlier.
type GatewayService struct {
	config map[string]interface{}
	addr   string
	mounts func() ([]Mount, error)
	log    zerolog.Logger
	server *http.Server
	errCh  chan error
}

func NewGatewayService(cfg map[string]interface{}, defaultAddr string, mounts func() ([]Mount, error), log zerolog.Logger) *GatewayService {
	if defaultAddr == "" {
		defaultAddr = config.DefaultHTTPAddr
	}
	return &GatewayService{
		config: cfg,
		addr:   config.String(cfg, "addr", defaultAddr),
		mounts: mounts,
		log:    log.With().Str("service", "gateway").Logger(),
		errCh:  make(chan error, 1),
	}
}

func (s *GatewayService) Name() string {
	return "gateway"
}

// Handler builds the router served by Start.
func (s *GatewayService) Handler() (http.Handler, error) {
	var mounts []Mount
	if s.mounts != nil {
		var err error
		if mounts, err = s.mounts(); err != nil {
			return nil, err
		}
	}
	return NewRouter(s.log, mounts...), nil
}

func (s *GatewayService) Start() error {
	h, err := s.Handler()
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("gateway listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("gateway server failed")
			s.errCh <- err
		}
	}()
	return nil
}

// Err reports a listener failure after Start.
func (s *GatewayService) Err() <-chan error {
	return s.errCh
}

func (s *GatewayService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}
