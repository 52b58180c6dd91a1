package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampVolume(t *testing.T) {
	tests := []struct {
		name  string
		input int
		want  int
	}{
		{"above maximum", 250, 200},
		{"below minimum", -5, 0},
		{"maximum", 200, 200},
		{"minimum", 0, 0},
		{"default", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampVolume(tt.input))
		})
	}
}

func TestVolumeScale_Native(t *testing.T) {
	tests := []struct {
		name    string
		scale   VolumeScale
		percent int
		want    int
	}{
		{"half full", HalfScale, 200, 100},
		{"half default", HalfScale, 100, 50},
		{"half rounds up", HalfScale, 1, 1},
		{"half zero", HalfScale, 0, 0},
		{"half clamps", HalfScale, 250, 100},
		{"fine full", FineScale, 200, 1000},
		{"fine default", FineScale, 100, 500},
		{"fine odd", FineScale, 33, 165},
		{"fine clamps negative", FineScale, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scale.Native(tt.percent))
		})
	}
}

func TestVolumeScale_Monotonic(t *testing.T) {
	for _, scale := range []VolumeScale{HalfScale, FineScale} {
		prev := scale.Native(MinVolume)
		for v := MinVolume + 1; v <= MaxVolume; v++ {
			cur := scale.Native(v)
			assert.GreaterOrEqual(t, cur, prev, "scale=%s volume=%d", scale.Name, v)
			prev = cur
		}
	}
}

func TestParseVolumeScale(t *testing.T) {
	scale, err := ParseVolumeScale("")
	require.NoError(t, err)
	assert.Equal(t, FineScale, scale)

	scale, err = ParseVolumeScale("half")
	require.NoError(t, err)
	assert.Equal(t, HalfScale, scale)

	_, err = ParseVolumeScale("loud")
	assert.Error(t, err)
}
