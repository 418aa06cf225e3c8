package hls

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	tagHeader                = "#EXTM3U"
	tagVersion               = "#EXT-X-VERSION:"
	tagTargetDuration        = "#EXT-X-TARGETDURATION:"
	tagMediaSequence         = "#EXT-X-MEDIA-SEQUENCE:"
	tagDiscontinuitySequence = "#EXT-X-DISCONTINUITY-SEQUENCE:"
	tagPlaylistType          = "#EXT-X-PLAYLIST-TYPE:"
	tagEndList               = "#EXT-X-ENDLIST"
	tagDiscontinuity         = "#EXT-X-DISCONTINUITY"
	tagInf                   = "#EXTINF:"
	tagByteRange             = "#EXT-X-BYTERANGE:"
	tagStreamInf             = "#EXT-X-STREAM-INF:"
)

var attrRe = regexp.MustCompile(`([-A-Z0-9]+)=("[^"\x0A\x0D]*"|[^",\s]+)`)

// parseAttributeList splits an attribute list such as
// BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2" into unquoted values.
func parseAttributeList(value string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(value, -1) {
		attrs[m[1]] = strings.Trim(m[2], `"`)
	}
	return attrs
}

func startsWith(line, prefix string, val *string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	if val != nil {
		*val = strings.TrimSpace(line[len(prefix):])
	}
	return true
}

// Fingerprint returns a stable digest of playlist text. Cache entries from
// different playlist versions never share a fingerprint.
func Fingerprint(text string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
