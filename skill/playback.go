package skill

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/resolver"
)

// maxPlayURIs bounds the track list sent with a single play request; the
// Web API rejects oversized URI arrays, so a large saved-tracks library has
// to be cut off somewhere.
const maxPlayURIs = 50

// PlayMatch starts playback of a resolved match on the selected device.
// Playback moves to the device first when it is not already active.
func (f *Facade) PlayMatch(ctx context.Context, m resolver.ResolvedMatch) error {
	device, err := f.pickDevice(ctx, "")
	if err != nil {
		return err
	}

	switch m.Kind {
	case resolver.KindContinue:
		return f.svc.Play(ctx, device.ID, "", nil)
	case resolver.KindTrack, resolver.KindSavedTracks:
		tracks := m.Candidates
		if len(tracks) > maxPlayURIs {
			tracks = tracks[:maxPlayURIs]
		}
		uris := make([]string, 0, len(tracks))
		for _, c := range tracks {
			uris = append(uris, c.URI)
		}
		if len(uris) == 0 && m.URI != "" {
			uris = []string{m.URI}
		}
		return f.svc.Play(ctx, device.ID, "", uris)
	default:
		return f.svc.Play(ctx, device.ID, m.URI, nil)
	}
}

// PlayOn is PlayMatch with an explicitly named device.
func (f *Facade) PlayOn(ctx context.Context, m resolver.ResolvedMatch, deviceName string) error {
	device, err := f.pickDevice(ctx, deviceName)
	if err != nil {
		return err
	}
	if m.Kind == resolver.KindContinue {
		return f.svc.Play(ctx, device.ID, "", nil)
	}
	return f.svc.Play(ctx, device.ID, m.URI, nil)
}

// pickDevice resolves the playback target and transfers playback to it if
// it is not already active.
func (f *Facade) pickDevice(ctx context.Context, name string) (resolver.Device, error) {
	var device resolver.Device
	if name != "" {
		d, ok, err := f.resolver.DeviceByName(ctx, name)
		if err != nil {
			return resolver.Device{}, err
		}
		if !ok {
			return resolver.Device{}, resolver.ErrNoDevices
		}
		device = d
	} else {
		d, choice, err := f.resolver.DefaultDevice(ctx)
		if err != nil {
			return resolver.Device{}, err
		}
		f.log.Debug("selected playback device",
			zap.String("device", d.Name),
			zap.String("rule", choice.String()))
		device = d
	}

	if !device.Active {
		if err := f.svc.TransferPlayback(ctx, device.ID, false); err != nil {
			return resolver.Device{}, err
		}
		f.resolver.InvalidateDevices()
	}
	return device, nil
}

// Pause pauses playback on the current device.
func (f *Facade) Pause(ctx context.Context) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.Pause(ctx, device.ID)
}

// Resume resumes paused playback.
func (f *Facade) Resume(ctx context.Context) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.Play(ctx, device.ID, "", nil)
}

// NextTrack skips forward.
func (f *Facade) NextTrack(ctx context.Context) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.Next(ctx, device.ID)
}

// PreviousTrack skips backward.
func (f *Facade) PreviousTrack(ctx context.Context) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.Previous(ctx, device.ID)
}

// SetVolume sets the current device's volume in percent.
func (f *Facade) SetVolume(ctx context.Context, percent int) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.SetVolume(ctx, device.ID, percent)
}

// SetShuffle toggles shuffle.
func (f *Facade) SetShuffle(ctx context.Context, on bool) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.SetShuffle(ctx, device.ID, on)
}

// SetRepeat sets the repeat state: "off", "track" or "context".
func (f *Facade) SetRepeat(ctx context.Context, state string) error {
	device, _, err := f.resolver.DefaultDevice(ctx)
	if err != nil {
		return err
	}
	return f.svc.SetRepeat(ctx, device.ID, state)
}

// NowPlaying returns the current playback state.
func (f *Facade) NowPlaying(ctx context.Context) (resolver.NowPlaying, error) {
	return f.svc.Status(ctx)
}

// SongInfo returns the current track and artist for spoken status answers,
// with "unknown" standing in for missing fields.
func (f *Facade) SongInfo(ctx context.Context) (track, artist string, err error) {
	np, err := f.svc.Status(ctx)
	if err != nil {
		return "", "", err
	}
	return orUnknown(np.Track), orUnknown(np.Artist), nil
}

// AlbumInfo returns the current album and artist.
func (f *Facade) AlbumInfo(ctx context.Context) (album, artist string, err error) {
	np, err := f.svc.Status(ctx)
	if err != nil {
		return "", "", err
	}
	return orUnknown(np.Album), orUnknown(np.Artist), nil
}

// ArtistInfo returns the current artist.
func (f *Facade) ArtistInfo(ctx context.Context) (string, error) {
	np, err := f.svc.Status(ctx)
	if err != nil {
		return "", err
	}
	return orUnknown(np.Artist), nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// DialogKey picks the response template to speak for a failure.
func DialogKey(err error) string {
	switch {
	case errors.Is(err, resolver.ErrNotAuthorized):
		return "NotAuthorized"
	case errors.Is(err, resolver.ErrNoDevices):
		return "NoDevicesAvailable"
	case errors.Is(err, resolver.ErrPlaylistNotFound):
		return "PlaylistNotFound"
	case errors.Is(err, resolver.ErrTransient):
		return "TryAgain"
	default:
		return "PlaybackFailed"
	}
}
