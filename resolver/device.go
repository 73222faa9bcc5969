package resolver

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/cache"
	"github.com/forslund/spotify-skill/fuzzy"
)

// DeviceChoice records which rule of the selection chain picked the device.
type DeviceChoice int

const (
	DeviceNone DeviceChoice = iota
	DeviceActive
	DeviceConfigured
	DeviceHost
	DeviceFirst
)

func (c DeviceChoice) String() string {
	switch c {
	case DeviceActive:
		return "active"
	case DeviceConfigured:
		return "configured default"
	case DeviceHost:
		return "host"
	case DeviceFirst:
		return "first available"
	default:
		return "none"
	}
}

// Devices lists the visible Spotify Connect devices, cached on a short TTL
// since devices appear and disappear as apps open and close.
func (r *Resolver) Devices(ctx context.Context) ([]Device, error) {
	return cache.Fetch(r.store, cache.KeyDevices, r.deviceTTL, func() ([]Device, error) {
		return r.backend.Devices(ctx)
	})
}

// InvalidateDevices drops the device cache so the next lookup sees the
// current device list. Called after playback is transferred and after
// authorization errors.
func (r *Resolver) InvalidateDevices() {
	r.store.Invalidate(cache.KeyDevices)
}

// DeviceByName finds a device by spoken name. Matching is fuzzy so "the
// kitchen speaker" finds "Kitchen". ok is false when no device name clears
// the confidence floor.
func (r *Resolver) DeviceByName(ctx context.Context, name string) (Device, bool, error) {
	devices, err := r.Devices(ctx)
	if err != nil {
		return Device{}, false, err
	}
	byName := make(map[string]Device, len(devices))
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		key := strings.ToLower(d.Name)
		if _, seen := byName[key]; !seen {
			byName[key] = d
			names = append(names, key)
		}
	}

	best, score, ok := fuzzy.RankOne(name, names)
	if !ok || score <= deviceConfidence {
		return Device{}, false, nil
	}
	return byName[best], true, nil
}

// DefaultDevice picks the playback target when the user named none. The
// chain is: the currently active device, the configured default, the device
// named after this host, then the first available. ErrNoDevices when the
// list is empty.
func (r *Resolver) DefaultDevice(ctx context.Context) (Device, DeviceChoice, error) {
	devices, err := r.Devices(ctx)
	if err != nil {
		return Device{}, DeviceNone, err
	}
	if len(devices) == 0 {
		return Device{}, DeviceNone, ErrNoDevices
	}

	for _, d := range devices {
		if d.Active {
			return d, DeviceActive, nil
		}
	}

	if r.defaultDeviceName != "" {
		d, ok, err := r.DeviceByName(ctx, r.defaultDeviceName)
		if err != nil {
			r.log.Warn("default device lookup failed", zap.Error(err))
		} else if ok {
			return d, DeviceConfigured, nil
		}
	}

	if r.hostDeviceName != "" {
		for _, d := range devices {
			if strings.EqualFold(d.Name, r.hostDeviceName) {
				return d, DeviceHost, nil
			}
		}
	}

	return devices[0], DeviceFirst, nil
}
