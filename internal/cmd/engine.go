package cmd

import (
	"fmt"

	"github.com/touchthesun/marvin-sub002/internal/config"
	"github.com/touchthesun/marvin-sub002/internal/observability"
	"github.com/touchthesun/marvin-sub002/pkg/gateway"
	"github.com/touchthesun/marvin-sub002/pkg/jobengine"
)

// newGateway builds the REST gateway from loaded configuration.
func newGateway() (gateway.Gateway, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return gateway.NewREST(gateway.RESTConfig{
		BaseURL:   cfg.Gateway.URL,
		Timeout:   cfg.Gateway.Timeout,
		RateLimit: cfg.Gateway.RateLimit,
	})
}

// newEngine builds a job engine over the configured gateway.
func newEngine() (*jobengine.Engine, error) {
	gw, err := newGateway()
	if err != nil {
		return nil, err
	}
	cfg := config.GetConfig()

	running := jobengine.DefaultRunningBackoff()
	if cfg.Monitor.MaxStatusChecks > 0 {
		running.MaxAttempts = cfg.Monitor.MaxStatusChecks
	}
	transport := jobengine.DefaultTransportBackoff()
	if cfg.Monitor.MaxTransportFailures > 0 {
		transport.MaxAttempts = cfg.Monitor.MaxTransportFailures
	}

	return jobengine.New(jobengine.Config{
		Gateway:          gw,
		PollInterval:     cfg.Poll.Interval,
		RunningBackoff:   running,
		TransportBackoff: transport,
		WatchDeadline:    cfg.Monitor.WatchDeadline,
		Logger:           observability.NewComponentLogger("engine"),
	})
}
