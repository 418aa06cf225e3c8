package models

import "fmt"

// PlaylistType tells master playlists from media playlists.
type PlaylistType int

const (
	PlaylistUnknown PlaylistType = iota
	PlaylistMaster
	PlaylistMedia
)

func (t PlaylistType) String() string {
	switch t {
	case PlaylistMaster:
		return "master"
	case PlaylistMedia:
		return "media"
	default:
		return "unknown"
	}
}

// Resolution is a variant's advertised picture size.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Variant is one quality tier referenced from a master playlist.
type Variant struct {
	URL string
	// Bandwidth is zero when the stream-info carried no BANDWIDTH attribute.
	Bandwidth  int64
	Resolution *Resolution
	Codecs     string
}

// Info returns a short human description of the variant's quality.
func (v Variant) Info() string {
	switch {
	case v.Bandwidth > 0 && v.Resolution != nil:
		return fmt.Sprintf("%s @ %d kbps", v.Resolution, v.Bandwidth/1000)
	case v.Bandwidth > 0:
		return fmt.Sprintf("%d kbps", v.Bandwidth/1000)
	default:
		return "unknown quality"
	}
}

// Playlist is the parsed form of a master or media playlist.
type Playlist struct {
	Type     PlaylistType
	Segments []Segment
	Variants []Variant

	TargetDuration        float64
	Version               int
	IsLive                bool
	AdCount               int
	MediaSequence         int64
	DiscontinuitySequence int64

	// Source is where the playlist text was loaded from.
	Source string
	// Fingerprint is a digest of the raw playlist text. It scopes the segment cache.
	Fingerprint string
}

// TotalDuration sums the durations of all kept segments, in seconds.
func (p *Playlist) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// NestedResolution is the result of resolving a playlist source.
// Master is nil when the source was a media playlist; in that case
// MediaPlaylists holds exactly one playlist and Selected is 0.
type NestedResolution struct {
	Master         *Playlist
	MediaPlaylists []*Playlist
	Selected       int
}

// SelectedPlaylist returns the active media playlist, or nil when the
// selection is out of range.
func (n *NestedResolution) SelectedPlaylist() *Playlist {
	if n.Selected < 0 || n.Selected >= len(n.MediaPlaylists) {
		return nil
	}
	return n.MediaPlaylists[n.Selected]
}

// Select overrides the active variant.
func (n *NestedResolution) Select(index int) error {
	if index < 0 || index >= len(n.MediaPlaylists) {
		return fmt.Errorf("variant index %d out of range [0,%d)", index, len(n.MediaPlaylists))
	}
	n.Selected = index
	return nil
}

// VariantsInfo describes every variant of the master playlist in listing order.
func (n *NestedResolution) VariantsInfo() []string {
	if n.Master == nil {
		return nil
	}
	infos := make([]string, 0, len(n.Master.Variants))
	for _, v := range n.Master.Variants {
		infos = append(infos, v.Info())
	}
	return infos
}
