package hls

import (
	"m3u8dl/internal/filter"
	"m3u8dl/internal/models"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vodPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:100
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:9.009,
seg0.ts
#EXTINF:9.009,
ads/promo1.ts
#EXTINF:9.009,
seg1.ts
#EXT-X-DISCONTINUITY
#EXTINF:4.5,last
https://cdn.example.com/abs/seg2.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1280000,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080
high/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2560000,RESOLUTION=1280x720
mid/index.m3u8
`

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestDetectType(t *testing.T) {
	typ, err := DetectType(vodPlaylist)
	require.NoError(t, err)
	assert.Equal(t, models.PlaylistMedia, typ)

	typ, err = DetectType(masterPlaylist)
	require.NoError(t, err)
	assert.Equal(t, models.PlaylistMaster, typ)

	typ, err = DetectType("\ufeff\n\n" + vodPlaylist)
	require.NoError(t, err)
	assert.Equal(t, models.PlaylistMedia, typ)

	_, err = DetectType("#EXTINF:1,\nseg.ts\n")
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = DetectType("#EXTM3U\n#EXT-X-VERSION:3\n")
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = DetectType("")
	assert.ErrorIs(t, err, models.ErrParse)
}

func TestParseMedia_ResolvesAndFiltersAds(t *testing.T) {
	ads, err := filter.New([]string{`/ads/`})
	require.NoError(t, err)
	p := NewParser(ads)

	pl, err := p.ParseMedia(vodPlaylist, "https://example.com/vod/index.m3u8", mustURL(t, "https://example.com/vod/index.m3u8"))
	require.NoError(t, err)

	assert.Equal(t, models.PlaylistMedia, pl.Type)
	assert.Equal(t, 1, pl.AdCount)
	require.Len(t, pl.Segments, 3)

	assert.Equal(t, "https://example.com/vod/seg0.ts", pl.Segments[0].URL)
	assert.Equal(t, 0, pl.Segments[0].Sequence)
	// The ad consumed sequence 1.
	assert.Equal(t, "https://example.com/vod/seg1.ts", pl.Segments[1].URL)
	assert.Equal(t, 2, pl.Segments[1].Sequence)
	assert.Equal(t, "https://cdn.example.com/abs/seg2.ts", pl.Segments[2].URL)
	assert.Equal(t, 3, pl.Segments[2].Sequence)
	assert.Equal(t, "last", pl.Segments[2].Title)
	assert.True(t, pl.Segments[2].Discontinuity)
	assert.False(t, pl.Segments[1].Discontinuity)

	assert.Equal(t, 3, pl.Version)
	assert.Equal(t, 10.0, pl.TargetDuration)
	assert.Equal(t, int64(100), pl.MediaSequence)
	assert.False(t, pl.IsLive)
	assert.Equal(t, Fingerprint(vodPlaylist), pl.Fingerprint)
	assert.InDelta(t, 22.518, pl.TotalDuration(), 0.0001)
}

func TestParseMedia_AdCountMatchesFilteredSubset(t *testing.T) {
	text := "#EXTM3U\n"
	for i := range 10 {
		if i%3 == 0 {
			text += "#EXTINF:2,\nhttps://ads.example.com/x.ts\n"
		} else {
			text += "#EXTINF:2,\nhttps://media.example.com/x.ts\n"
		}
	}
	ads, err := filter.New([]string{`^https://ads\.`})
	require.NoError(t, err)

	pl, err := NewParser(ads).ParseMedia(text, "local.m3u8", nil)
	require.NoError(t, err)
	assert.Equal(t, 4, pl.AdCount)
	assert.Len(t, pl.Segments, 6)
	for _, seg := range pl.Segments {
		assert.False(t, ads.IsAd(seg.URL))
	}
}

func TestParseMedia_LiveFlags(t *testing.T) {
	seg := "#EXTINF:1,\nhttps://a/1.ts\n"

	pl, err := NewParser(nil).ParseMedia("#EXTM3U\n"+seg, "s", nil)
	require.NoError(t, err)
	assert.True(t, pl.IsLive)

	pl, err = NewParser(nil).ParseMedia("#EXTM3U\n#EXT-X-PLAYLIST-TYPE:EVENT\n"+seg, "s", nil)
	require.NoError(t, err)
	assert.True(t, pl.IsLive)

	pl, err = NewParser(nil).ParseMedia("#EXTM3U\n#EXT-X-PLAYLIST-TYPE:EVENT\n"+seg+"#EXT-X-ENDLIST\n", "s", nil)
	require.NoError(t, err)
	assert.False(t, pl.IsLive)

	pl, err = NewParser(nil).ParseMedia("#EXTM3U\n#EXT-X-PLAYLIST-TYPE:VOD\n"+seg, "s", nil)
	require.NoError(t, err)
	assert.False(t, pl.IsLive)
}

func TestParseMedia_ByteRanges(t *testing.T) {
	text := `#EXTM3U
#EXTINF:4,
#EXT-X-BYTERANGE:1000@0
https://a/main.ts
#EXTINF:4,
#EXT-X-BYTERANGE:500
https://a/main.ts
#EXTINF:4,
https://a/other.ts
#EXT-X-BYTERANGE:300@20
`
	pl, err := NewParser(nil).ParseMedia(text, "s", nil)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 3)

	assert.Equal(t, &models.ByteRange{Offset: 0, Length: 1000}, pl.Segments[0].ByteRange)
	// No offset continues after the previous range of the same resource.
	assert.Equal(t, &models.ByteRange{Offset: 1000, Length: 500}, pl.Segments[1].ByteRange)
	// A trailing range attaches to the segment before it.
	assert.Equal(t, &models.ByteRange{Offset: 20, Length: 300}, pl.Segments[2].ByteRange)
}

func TestParseMedia_ByteRangeAfterAdIsIgnored(t *testing.T) {
	text := `#EXTM3U
#EXTINF:4,
https://a/keep.ts
#EXTINF:4,
https://ads/drop.ts
#EXT-X-BYTERANGE:300@20
`
	ads, err := filter.New([]string{`ads`})
	require.NoError(t, err)
	pl, err := NewParser(ads).ParseMedia(text, "s", nil)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	assert.Nil(t, pl.Segments[0].ByteRange)
}

func TestParseMedia_Errors(t *testing.T) {
	p := NewParser(nil)

	_, err := p.ParseMedia("#EXTINF:1,\nhttps://a/1.ts\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = p.ParseMedia("#EXTM3U\n#EXTINF:1,\nrelative.ts\n", "local.m3u8", nil)
	assert.ErrorIs(t, err, models.ErrParse)
	assert.Contains(t, err.Error(), "relative segment URL without base")

	_, err = p.ParseMedia("#EXTM3U\n#EXTINF:abc,\nhttps://a/1.ts\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = p.ParseMedia("#EXTM3U\n#EXTINF:1,\n#EXT-X-BYTERANGE:x@y\nhttps://a/1.ts\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = p.ParseMedia("#EXTM3U\n#EXT-X-ENDLIST\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestParseMedia_AllAdsIsEmpty(t *testing.T) {
	ads, err := filter.New([]string{`.*`})
	require.NoError(t, err)
	_, err = NewParser(ads).ParseMedia(vodPlaylist, "s", mustURL(t, "https://example.com/"))
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestParseMedia_IgnoresOrphanURIsAndUnknownTags(t *testing.T) {
	text := "#EXTM3U\n#EXT-X-FOO:bar\n# comment\nhttps://a/orphan.ts\n#EXTINF:1,\r\nhttps://a/1.ts\r\n"
	pl, err := NewParser(nil).ParseMedia(text, "s", nil)
	require.NoError(t, err)
	require.Len(t, pl.Segments, 1)
	assert.Equal(t, "https://a/1.ts", pl.Segments[0].URL)
}

func TestParseMaster(t *testing.T) {
	ads, err := filter.New([]string{`mid/`})
	require.NoError(t, err)

	pl, err := NewParser(ads).ParseMaster(masterPlaylist, "https://example.com/master.m3u8", mustURL(t, "https://example.com/master.m3u8"))
	require.NoError(t, err)
	require.Len(t, pl.Variants, 2)
	// Ad variants are not counted.
	assert.Zero(t, pl.AdCount)

	low := pl.Variants[0]
	assert.Equal(t, "https://example.com/low/index.m3u8", low.URL)
	assert.Equal(t, int64(1280000), low.Bandwidth)
	assert.Equal(t, &models.Resolution{Width: 640, Height: 360}, low.Resolution)
	assert.Equal(t, "avc1.4d401e,mp4a.40.2", low.Codecs)

	assert.Equal(t, "https://example.com/high/index.m3u8", pl.Variants[1].URL)
	assert.Equal(t, 1, bestVariant(pl.Variants))
}

func TestParseMaster_Errors(t *testing.T) {
	_, err := NewParser(nil).ParseMaster("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=abc\nhttps://a/v.m3u8\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrParse)

	_, err = NewParser(nil).ParseMaster("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=big\nhttps://a/v.m3u8\n", "s", nil)
	assert.ErrorIs(t, err, models.ErrParse)

	ads, _ := filter.New([]string{`.`})
	_, err = NewParser(ads).ParseMaster(masterPlaylist, "s", mustURL(t, "https://example.com/"))
	assert.ErrorIs(t, err, models.ErrEmpty)
}

func TestBestVariant_TiesGoToFirst(t *testing.T) {
	vs := []models.Variant{{URL: "a", Bandwidth: 10}, {URL: "b", Bandwidth: 30}, {URL: "c", Bandwidth: 30}}
	assert.Equal(t, 1, bestVariant(vs))
}

func TestParseAttributeList(t *testing.T) {
	attrs := parseAttributeList(`BANDWIDTH=800000,CODECS="mp4a.40.2,avc1.4d401e",RESOLUTION=416x234,NAME=""`)
	assert.Equal(t, "800000", attrs["BANDWIDTH"])
	assert.Equal(t, "mp4a.40.2,avc1.4d401e", attrs["CODECS"])
	assert.Equal(t, "416x234", attrs["RESOLUTION"])
	assert.Equal(t, "", attrs["NAME"])
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("#EXTM3U\n"), Fingerprint("  #EXTM3U  "))
	assert.NotEqual(t, Fingerprint("#EXTM3U\na"), Fingerprint("#EXTM3U\nb"))
	assert.Len(t, Fingerprint("x"), 32)
}
