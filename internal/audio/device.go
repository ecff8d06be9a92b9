// Package audio records microphone clips from PulseAudio for speech practice.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// ErrPulseUnavailable wraps failures to reach the Pulse server.
var ErrPulseUnavailable = errors.New("pulse server unavailable")

// Device is one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved input plus a warning when a fallback was used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("kamay"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPulseUnavailable, err)
	}
	return client, nil
}

// ListDevices returns the Pulse input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves the audio.input / audio.fallback preferences.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no microphones found")
	}

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	var def, byInput, byFallback *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			def = dev
		}
		if byInput == nil && !isDefault(input) && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && !isDefault(fallback) && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	primary := byInput
	switch {
	case isDefault(input) && def == nil:
		return Selection{}, errors.New("default microphone is unavailable")
	case isDefault(input):
		primary = def
	case byInput == nil:
		return Selection{}, fmt.Errorf("audio.input %q did not match any microphone", input)
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alt := byFallback
	switch {
	case !isDefault(fallback) && byFallback == nil:
		return Selection{}, fmt.Errorf("microphone %q is %s and fallback %q not found", primary.ID, reason, fallback)
	case isDefault(fallback) && def == nil:
		return Selection{}, fmt.Errorf("microphone %q is %s and no default microphone exists", primary.ID, reason)
	case isDefault(fallback):
		alt = def
	}

	if !alt.Available {
		return Selection{}, fmt.Errorf("fallback microphone %q is not available", alt.ID)
	}
	if alt.Muted {
		return Selection{}, fmt.Errorf("fallback microphone %q is muted", alt.ID)
	}

	return Selection{
		Device:   *alt,
		Warning:  fmt.Sprintf("microphone %q is %s; using %q", primary.ID, reason, alt.ID),
		Fallback: primary.ID != alt.ID,
	}, nil
}

func isDefault(term string) bool {
	return term == "" || term == "default"
}

// deviceMatches is a case-insensitive substring match on id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable checks the active port; sources without ports count as available.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			// unknown=0, no=1, yes=2
			return port.Available != 1
		}
	}
	return true
}
