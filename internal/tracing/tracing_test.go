package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Enabled: false, Endpoint: "http://localhost:4318"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Enabled: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, shutdown(ctx))
}

func TestSetup_ProviderWithEndpoint(t *testing.T) {
	// non-routable; nothing is exported before shutdown
	shutdown, err := Setup(context.Background(), Options{Enabled: true, Endpoint: "http://192.0.2.1:4318", ServiceName: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
