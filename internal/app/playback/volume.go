package playback

import (
	"math"

	"github.com/cockroachdb/errors"
)

// User-facing volume range.
const (
	MinVolume     = 0
	MaxVolume     = 200
	DefaultVolume = 100
)

// VolumeScale describes a transport's native volume range (0..Max).
type VolumeScale struct {
	Name string
	Max  int
}

var (
	// HalfScale maps 0-200 onto 0-100.
	HalfScale = VolumeScale{Name: "half", Max: 100}
	// FineScale maps 0-200 onto 0-1000 (Lavalink filter volume).
	FineScale = VolumeScale{Name: "fine", Max: 1000}
)

// ParseVolumeScale returns the scale with the given name.
func ParseVolumeScale(name string) (VolumeScale, error) {
	switch name {
	case HalfScale.Name:
		return HalfScale, nil
	case FineScale.Name, "":
		return FineScale, nil
	default:
		return VolumeScale{}, errors.Newf("unknown volume scale: %s", name)
	}
}

// ClampVolume forces percent into [MinVolume, MaxVolume].
func ClampVolume(percent int) int {
	if percent < MinVolume {
		return MinVolume
	}
	if percent > MaxVolume {
		return MaxVolume
	}
	return percent
}

// Native converts a user-facing percentage to the transport value.
// Out-of-range input is clamped, never rejected.
func (s VolumeScale) Native(percent int) int {
	p := ClampVolume(percent)
	native := int(math.Round(float64(p) / MaxVolume * float64(s.Max)))
	if native < 0 {
		return 0
	}
	if native > s.Max {
		return s.Max
	}
	return native
}
