package discovery

import (
	"io"
	"testing"

	"github.com/brutella/dnssd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maemo32/awgserver/logging"
)

// Announce itself blocks on a live mDNS responder and real network
// sockets, so this only covers the service descriptor it builds; the
// responder lifecycle is exercised manually against real hardware.
func TestAnnouncer_BuildsValidServiceConfig(t *testing.T) {
	cfg := dnssd.Config{
		Name: "awgserver-test",
		Type: ServiceType,
		Port: 9100,
	}
	svc, err := dnssd.NewService(cfg)
	require.NoError(t, err)
	assert.Equal(t, "awgserver-test", svc.Name)
	assert.Equal(t, ServiceType, svc.Type)
	assert.Equal(t, 9100, svc.Port)
}

func TestNewAnnouncer_StoresLogger(t *testing.T) {
	logger := logging.New(io.Discard, "info")
	a := NewAnnouncer(logger)
	assert.NotNil(t, a)
	assert.Equal(t, logger, a.logger)
}
