package models

import "fmt"

// ByteRange describes a sub-range of a segment resource.
type ByteRange struct {
	Offset int64
	Length int64
}

// Header renders the range as an HTTP Range header value.
func (br ByteRange) Header() string {
	return fmt.Sprintf("bytes=%d-%d", br.Offset, br.Offset+br.Length-1)
}

// Segment represents a media segment with its essential properties.
// Segments are created by the playlist parser and are never mutated afterwards.
type Segment struct {
	// URL is the fully-resolved absolute URL to fetch the segment from.
	URL string
	// Duration is the EXTINF duration in seconds.
	Duration float64
	// Sequence is the parse-order index of the segment within its playlist.
	// Filtered ad segments consume a sequence number too, so kept segments
	// keep the same Sequence across runs. It is the cache key.
	Sequence int
	// Title is the optional EXTINF title.
	Title string
	// ByteRange is set when the playlist carried an EXT-X-BYTERANGE for this segment.
	ByteRange *ByteRange
	// Discontinuity marks a segment preceded by EXT-X-DISCONTINUITY.
	Discontinuity bool
}
