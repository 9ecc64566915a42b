// Package discovery advertises the server on the local network via
// mDNS/DNS-SD and locates the "uio" backend's kernel-allocated device
// node, following dns_sd.go and cm108.go's own device-enumeration
// patterns.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/maemo32/awgserver/logging"
)

// ServiceType is the DNS-SD service type this server advertises.
const ServiceType = "_awg-ctrl._tcp"

// Announcer advertises the queued-port service over mDNS/DNS-SD until its
// context is cancelled.
type Announcer struct {
	logger logging.Logger
}

func NewAnnouncer(logger logging.Logger) *Announcer {
	return &Announcer{logger: logger}
}

// Announce advertises instanceName on queuedPort and blocks responding to
// mDNS queries until ctx is cancelled. Meant to run in its own goroutine.
func (a *Announcer) Announce(ctx context.Context, instanceName string, queuedPort int) error {
	cfg := dnssd.Config{
		Name: instanceName,
		Type: ServiceType,
		Port: queuedPort,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("discovery: create service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("discovery: create responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return fmt.Errorf("discovery: add service: %w", err)
	}

	if a.logger != nil {
		a.logger.Infof("discovery: announcing %s on port %d as %q", ServiceType, queuedPort, instanceName)
	}

	return responder.Respond(ctx)
}
