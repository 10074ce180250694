package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/internal/appmanager"
	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/logger"
)

func main() {
	// Decimals leave the API as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	settings := config.LoadEnv(envOr("ENV_FILE", ".env"))
	appmanager.SetSettings(settings)

	boot := logger.New(logger.Config{Level: "info", Pretty: true})
	servicesFile := envOr("SERVICES_FILE", "services.yaml")
	servicesCfg, err := appmanager.LoadServiceSequence(servicesFile)
	if err != nil {
		boot.Fatal().Err(err).Str("file", servicesFile).Msg("failed to load service sequence")
	}

	manager := appmanager.NewAppManager()
	if err := manager.AutoRegisterServices(servicesCfg); err != nil {
		boot.Fatal().Err(err).Msg("failed to register services")
	}
	log := logger.L()

	if err := manager.StartAll(); err != nil {
		log.Error().Err(err).Msg("failed to start")
		if err := manager.StopAll(); err != nil {
			log.Error().Err(err).Msg("failed to stop")
		}
		os.Exit(1)
	}

	var serveErr <-chan error
	if gw, ok := manager.GetServiceByName("gateway").(*api.GatewayService); ok {
		serveErr = gw.Err()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	exit := 0
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		log.Error().Err(err).Msg("gateway stopped")
		exit = 1
	}

	if err := manager.StopAll(); err != nil {
		log.Error().Err(err).Msg("failed to stop")
		exit = 1
	}
	os.Exit(exit)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
