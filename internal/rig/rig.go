// Package rig optionally drives a local oscillator's reference frequency
// through a hamlib-compatible radio's CAT interface, the way the
// teacher's ptt.go drives PTT through hamlib — generalised here from
// rig_set_ptt to rig_set_freq, since this server has no transmitter to
// key.
package rig

import (
	"fmt"

	"github.com/xylo04/goHamlib"
)

// Controller wraps one open hamlib rig handle.
type Controller struct {
	rig *goHamlib.Rig
}

// Open initialises and opens the named hamlib model on device at baud
// (0 leaves hamlib's own default for that model alone).
func Open(model int, device string, baud int) (*Controller, error) {
	r := &goHamlib.Rig{}
	if err := r.Init(model); err != nil {
		return nil, fmt.Errorf("rig: init model %d: %w", model, err)
	}

	r.SetConf("rig_pathname", device)
	if baud > 0 {
		r.SetConf("serial_speed", fmt.Sprintf("%d", baud))
	}

	if err := r.Open(); err != nil {
		return nil, fmt.Errorf("rig: open %s: %w", device, err)
	}

	return &Controller{rig: r}, nil
}

// SetFrequency sets the rig's VFO-current frequency, in Hz, for use as
// this server's external LO reference.
func (c *Controller) SetFrequency(hz float64) error {
	if err := c.rig.SetFreq(goHamlib.RIG_VFO_CURR, hz); err != nil {
		return fmt.Errorf("rig: set_freq %g: %w", hz, err)
	}
	return nil
}

// Close releases the rig handle.
func (c *Controller) Close() error {
	c.rig.Close()
	return nil
}
