package audio

import (
	"context"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestSelectDeviceFromListDefault(t *testing.T) {
	devices := []Device{
		{ID: "usb-mic", Description: "Blue Yeti", Available: true, Default: true},
		{ID: "webcam-mic", Description: "C920 Analog Stereo", Available: true},
	}

	sel, err := selectDeviceFromList(devices, "default", "default")
	require.NoError(t, err)
	require.Equal(t, "usb-mic", sel.Device.ID)
	require.Empty(t, sel.Warning)
	require.False(t, sel.Fallback)
}

func TestSelectDeviceFromListMatchesDescription(t *testing.T) {
	devices := []Device{
		{ID: "usb-mic", Description: "Blue Yeti", Available: true, Default: true},
		{ID: "webcam-mic", Description: "C920 Analog Stereo", Available: true},
	}

	sel, err := selectDeviceFromList(devices, "C920", "")
	require.NoError(t, err)
	require.Equal(t, "webcam-mic", sel.Device.ID)
}

func TestSelectDeviceFromListMutedInputFallsBack(t *testing.T) {
	devices := []Device{
		{ID: "usb-mic", Description: "Blue Yeti", Available: true, Muted: true, Default: true},
		{ID: "webcam-mic", Description: "C920 Analog Stereo", Available: true},
	}

	sel, err := selectDeviceFromList(devices, "yeti", "c920")
	require.NoError(t, err)
	require.Equal(t, "webcam-mic", sel.Device.ID)
	require.Contains(t, sel.Warning, "muted")
	require.True(t, sel.Fallback)
}

func TestSelectDeviceFromListFailures(t *testing.T) {
	_, err := selectDeviceFromList(nil, "default", "default")
	require.ErrorContains(t, err, "no microphones")

	muted := []Device{{ID: "usb-mic", Available: true, Muted: true, Default: true}}
	_, err = selectDeviceFromList(muted, "default", "default")
	require.ErrorContains(t, err, "muted")

	one := []Device{{ID: "usb-mic", Available: true, Default: true}}
	_, err = selectDeviceFromList(one, "missing", "default")
	require.ErrorContains(t, err, "did not match")

	unavailable := []Device{{ID: "usb-mic", Default: true}}
	_, err = selectDeviceFromList(unavailable, "default", "missing")
	require.ErrorContains(t, err, "fallback \"missing\" not found")
}

func TestDeviceMatches(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-blue_yeti", Description: "Blue Yeti Analog"}
	require.True(t, deviceMatches(dev, "yeti"))
	require.True(t, deviceMatches(dev, "blue yeti"))
	require.False(t, deviceMatches(dev, "c920"))
	require.False(t, deviceMatches(dev, ""))
}

func TestListDevicesWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/kamay-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.ErrorIs(t, err, ErrPulseUnavailable)

	_, err = SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(7)", sourceStateString(7))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	yes := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, yes, map[string]uint32{"mic": 2})
	require.True(t, sourceAvailable(yes))

	no := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, no, map[string]uint32{"mic": 1})
	require.False(t, sourceAvailable(no))
}

// setSourcePorts fills the reply's anonymous port struct slice via reflection.
func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports map[string]uint32) {
	t.Helper()

	slice := reflect.MakeSlice(reflect.TypeOf(reply.Ports), 0, len(ports))
	elem := reflect.TypeOf(reply.Ports).Elem()
	for name, available := range ports {
		item := reflect.New(elem).Elem()
		item.FieldByName("Name").SetString(name)
		item.FieldByName("Available").SetUint(uint64(available))
		slice = reflect.Append(slice, item)
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(slice)
}
