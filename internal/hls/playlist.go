package hls

import (
	"fmt"
	"io"
	"m3u8dl/internal/models"
	"math"
	"strings"
)

// EncodeMaster writes a master playlist listing the given variants.
func EncodeMaster(w io.Writer, pl *models.Playlist) error {
	if pl == nil || pl.Type != models.PlaylistMaster {
		return fmt.Errorf("%w: not a master playlist", models.ErrParse)
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", max(pl.Version, 3)))

	for _, v := range pl.Variants {
		sb.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth))
		if v.Codecs != "" {
			sb.WriteString(fmt.Sprintf(",CODECS=\"%s\"", v.Codecs))
		}
		if v.Resolution != nil {
			sb.WriteString(fmt.Sprintf(",RESOLUTION=%dx%d", v.Resolution.Width, v.Resolution.Height))
		}
		sb.WriteString("\n")
		sb.WriteString(v.URL + "\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// EncodeMedia writes a media playlist with absolute segment URLs and ads
// already removed. Non-live playlists are closed with an end marker.
func EncodeMedia(w io.Writer, pl *models.Playlist) error {
	if pl == nil || pl.Type != models.PlaylistMedia {
		return fmt.Errorf("%w: not a media playlist", models.ErrParse)
	}

	version := max(pl.Version, 3)
	targetDuration := pl.TargetDuration
	for _, seg := range pl.Segments {
		targetDuration = max(targetDuration, seg.Duration)
		if seg.ByteRange != nil {
			version = max(version, 4)
		}
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-VERSION:%d\n", version))
	sb.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(targetDuration))))
	sb.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", pl.MediaSequence))
	if pl.DiscontinuitySequence > 0 {
		sb.WriteString(fmt.Sprintf("#EXT-X-DISCONTINUITY-SEQUENCE:%d\n", pl.DiscontinuitySequence))
	}
	if !pl.IsLive {
		sb.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	}

	for _, seg := range pl.Segments {
		if seg.Discontinuity {
			sb.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		sb.WriteString(fmt.Sprintf("#EXTINF:%.3f,%s\n", seg.Duration, seg.Title))
		if seg.ByteRange != nil {
			sb.WriteString(fmt.Sprintf("#EXT-X-BYTERANGE:%d@%d\n", seg.ByteRange.Length, seg.ByteRange.Offset))
		}
		sb.WriteString(seg.URL + "\n")
	}

	if !pl.IsLive {
		sb.WriteString("#EXT-X-ENDLIST\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
