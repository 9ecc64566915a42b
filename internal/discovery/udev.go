package discovery

import (
	"fmt"

	udev "github.com/jochenvg/go-udev"
)

// FindUioDevice enumerates "uio" subsystem devices and returns the devnode
// of the one whose "uio*/name" sysattr equals name — the kernel-assigned
// label a UIO platform driver registers for its device tree node. Returns
// an error if none match, the same "enumerate, filter by sysattr" shape
// a libudev-based sound card scan uses, generalised here to the pure-Go
// jochenvg/go-udev enumerator.
func FindUioDevice(name string) (string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("uio"); err != nil {
		return "", fmt.Errorf("discovery: match uio subsystem: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return "", fmt.Errorf("discovery: enumerate uio devices: %w", err)
	}

	for _, dev := range devices {
		if dev.SysattrValue("name") == name {
			node := dev.Devnode()
			if node == "" {
				continue
			}
			return node, nil
		}
	}

	return "", fmt.Errorf("discovery: no uio device named %q found", name)
}
