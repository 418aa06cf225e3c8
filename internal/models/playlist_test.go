package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantInfo(t *testing.T) {
	assert.Equal(t, "1920x1080 @ 5000 kbps", Variant{Bandwidth: 5000000, Resolution: &Resolution{1920, 1080}}.Info())
	assert.Equal(t, "1500 kbps", Variant{Bandwidth: 1500000}.Info())
	assert.Equal(t, "unknown quality", Variant{}.Info())
}

func TestNestedResolutionSelect(t *testing.T) {
	a, b := &Playlist{Source: "a"}, &Playlist{Source: "b"}
	n := &NestedResolution{MediaPlaylists: []*Playlist{a, b}}

	assert.Same(t, a, n.SelectedPlaylist())
	require.NoError(t, n.Select(1))
	assert.Same(t, b, n.SelectedPlaylist())
	assert.Error(t, n.Select(2))
	assert.Error(t, n.Select(-1))
	assert.Equal(t, 1, n.Selected, "failed selection must not change the active variant")
}

func TestByteRangeHeader(t *testing.T) {
	assert.Equal(t, "bytes=100-149", ByteRange{Offset: 100, Length: 50}.Header())
	assert.Equal(t, "bytes=0-0", ByteRange{Length: 1}.Header())
}

func TestTotalDuration(t *testing.T) {
	p := &Playlist{Segments: []Segment{{Duration: 10.5}, {Duration: 20.3}}}
	assert.InDelta(t, 30.8, p.TotalDuration(), 1e-9)
}
