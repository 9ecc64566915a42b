package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// FindUioDevice enumerates real sysfs/udev state, so only its no-match
// path is exercisable without actual UIO hardware: a name no platform
// driver could plausibly register must return an error, not a device.
func TestFindUioDevice_NoMatchReturnsError(t *testing.T) {
	_, err := FindUioDevice("awgserver-test-device-that-does-not-exist")
	assert.Error(t, err)
}
