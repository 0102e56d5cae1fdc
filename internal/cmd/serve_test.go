package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/touchthesun/marvin-sub002/pkg/gateway"
)

type listStubGateway struct {
	gateway.Gateway
	err error
}

func (g listStubGateway) ListAll(ctx context.Context) ([]gateway.Snapshot, error) {
	return nil, g.err
}

func TestGatewayHealthChecker(t *testing.T) {
	t.Run("healthy when listing succeeds", func(t *testing.T) {
		checker := gatewayHealthChecker{gw: listStubGateway{}}
		assert.NoError(t, checker.CheckHealth(context.Background()))
	})

	t.Run("unhealthy when listing fails", func(t *testing.T) {
		checker := gatewayHealthChecker{gw: listStubGateway{err: gateway.ErrUnavailable}}
		assert.ErrorIs(t, checker.CheckHealth(context.Background()), gateway.ErrUnavailable)
	})
}
