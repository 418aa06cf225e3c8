package hls

import (
	"fmt"
	"m3u8dl/internal/models"
	"net/url"
	"strconv"
	"strings"
)

// AdMatcher classifies absolute URLs as advertisements.
type AdMatcher interface {
	IsAd(url string) bool
}

// Parser turns playlist text into models.Playlist values, dropping ad URLs inline.
type Parser struct {
	ads AdMatcher
}

// NewParser creates a parser. A nil matcher keeps every URL.
func NewParser(ads AdMatcher) *Parser {
	return &Parser{ads: ads}
}

func (p *Parser) isAd(u string) bool {
	return p.ads != nil && p.ads.IsAd(u)
}

// splitLines strips a UTF-8 BOM and returns the raw lines.
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func checkHeader(lines []string) error {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, tagHeader) {
			return nil
		}
		break
	}
	return fmt.Errorf("%w: playlist must start with %s", models.ErrParse, tagHeader)
}

// DetectType classifies playlist text. Stream-variant markers win over segment markers.
func DetectType(text string) (models.PlaylistType, error) {
	lines := splitLines(text)
	if err := checkHeader(lines); err != nil {
		return models.PlaylistUnknown, err
	}

	hasInf := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, tagStreamInf) {
			return models.PlaylistMaster, nil
		}
		if strings.HasPrefix(line, tagInf) {
			hasInf = true
		}
	}
	if hasInf {
		return models.PlaylistMedia, nil
	}
	return models.PlaylistUnknown, fmt.Errorf("%w: unrecognized playlist type", models.ErrParse)
}

// Parse detects the playlist type and parses accordingly.
func (p *Parser) Parse(text, source string, base *url.URL) (*models.Playlist, error) {
	typ, err := DetectType(text)
	if err != nil {
		return nil, err
	}
	if typ == models.PlaylistMaster {
		return p.ParseMaster(text, source, base)
	}
	return p.ParseMedia(text, source, base)
}

// resolveURL makes a playlist URI absolute against base.
func resolveURL(raw string, base *url.URL) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URI %q: %v", models.ErrParse, raw, err)
	}
	if u.IsAbs() {
		return raw, nil
	}
	if base == nil {
		return "", fmt.Errorf("%w: relative segment URL without base: %q", models.ErrParse, raw)
	}
	return base.ResolveReference(u).String(), nil
}

type pendingRange struct {
	length    int64
	offset    int64
	hasOffset bool
}

func parseByteRange(val string) (pendingRange, error) {
	lengthPart, offsetPart, hasOffset := strings.Cut(val, "@")
	length, err := strconv.ParseInt(lengthPart, 10, 64)
	if err != nil || length <= 0 {
		return pendingRange{}, fmt.Errorf("invalid byte range %q", val)
	}
	r := pendingRange{length: length, hasOffset: hasOffset}
	if hasOffset {
		if r.offset, err = strconv.ParseInt(offsetPart, 10, 64); err != nil || r.offset < 0 {
			return pendingRange{}, fmt.Errorf("invalid byte range %q", val)
		}
	}
	return r, nil
}

func parseExtInf(val string) (float64, string, error) {
	durPart, title, _ := strings.Cut(val, ",")
	d, err := strconv.ParseFloat(strings.TrimSpace(durPart), 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid duration %q", durPart)
	}
	return d, strings.TrimSpace(title), nil
}

// ParseMedia parses a media playlist. Each EXTINF stays pending until the
// following URI line consumes it. Ad segments are counted and dropped but
// still consume a sequence number.
func (p *Parser) ParseMedia(text, source string, base *url.URL) (*models.Playlist, error) {
	lines := splitLines(text)
	if err := checkHeader(lines); err != nil {
		return nil, err
	}

	pl := &models.Playlist{
		Type:        models.PlaylistMedia,
		Version:     1,
		Source:      source,
		Fingerprint: Fingerprint(text),
	}

	var (
		val           string
		inf           *models.Segment
		infRange      *pendingRange
		discontinuity bool
		vod, ended    bool
		lastKept      = -1
		lastWasAd     bool
		sequence      int
		rangeEnd      = map[string]int64{}
	)

	applyRange := func(seg *models.Segment, r pendingRange) {
		offset := r.offset
		if !r.hasOffset {
			offset = rangeEnd[seg.URL]
		}
		seg.ByteRange = &models.ByteRange{Offset: offset, Length: r.length}
		rangeEnd[seg.URL] = offset + r.length
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		switch {
		case line == "" || strings.HasPrefix(line, tagHeader):
			continue
		case startsWith(line, tagVersion, &val):
			if v, err := strconv.Atoi(val); err == nil {
				pl.Version = v
			}
		case startsWith(line, tagTargetDuration, &val):
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				pl.TargetDuration = v
			}
		case startsWith(line, tagMediaSequence, &val):
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				pl.MediaSequence = v
			}
		case startsWith(line, tagDiscontinuitySequence, &val):
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				pl.DiscontinuitySequence = v
			}
		case startsWith(line, tagPlaylistType, &val):
			vod = strings.EqualFold(val, "VOD")
		case line == tagEndList:
			ended = true
		case line == tagDiscontinuity:
			discontinuity = true
		case startsWith(line, tagInf, &val):
			d, title, err := parseExtInf(val)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", models.ErrParse, lineNo, err)
			}
			inf = &models.Segment{Duration: d, Title: title}
			infRange = nil
		case startsWith(line, tagByteRange, &val):
			r, err := parseByteRange(val)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", models.ErrParse, lineNo, err)
			}
			switch {
			case inf != nil:
				// Standard placement: between EXTINF and its URI.
				infRange = &r
			case lastKept >= 0 && !lastWasAd:
				applyRange(&pl.Segments[lastKept], r)
			}
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if inf == nil {
				continue
			}
			u, err := resolveURL(line, base)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			seg := *inf
			seg.URL = u
			seg.Sequence = sequence
			sequence++
			if infRange != nil {
				applyRange(&seg, *infRange)
			}
			inf, infRange = nil, nil

			if p.isAd(u) {
				pl.AdCount++
				lastWasAd = true
				continue
			}
			seg.Discontinuity = discontinuity
			discontinuity = false
			pl.Segments = append(pl.Segments, seg)
			lastKept = len(pl.Segments) - 1
			lastWasAd = false
		}
	}

	pl.IsLive = !vod && !ended

	if len(pl.Segments) == 0 {
		return nil, fmt.Errorf("%w: no usable segments in %s (%d ads filtered)", models.ErrEmpty, source, pl.AdCount)
	}
	return pl, nil
}

// ParseMaster parses a master playlist. Variants whose URL is an ad are
// dropped without being counted.
func (p *Parser) ParseMaster(text, source string, base *url.URL) (*models.Playlist, error) {
	lines := splitLines(text)
	if err := checkHeader(lines); err != nil {
		return nil, err
	}

	pl := &models.Playlist{
		Type:        models.PlaylistMaster,
		Version:     1,
		Source:      source,
		Fingerprint: Fingerprint(text),
	}

	var (
		val     string
		pending *models.Variant
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		switch {
		case line == "" || strings.HasPrefix(line, tagHeader):
			continue
		case startsWith(line, tagVersion, &val):
			if v, err := strconv.Atoi(val); err == nil {
				pl.Version = v
			}
		case startsWith(line, tagStreamInf, &val):
			v, err := parseStreamInf(val)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", models.ErrParse, lineNo, err)
			}
			pending = &v
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				continue
			}
			u, err := resolveURL(line, base)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			v := *pending
			pending = nil
			if p.isAd(u) {
				continue
			}
			v.URL = u
			pl.Variants = append(pl.Variants, v)
		}
	}

	if len(pl.Variants) == 0 {
		return nil, fmt.Errorf("%w: no usable variants in %s", models.ErrEmpty, source)
	}
	return pl, nil
}

func parseStreamInf(val string) (models.Variant, error) {
	var v models.Variant
	attrs := parseAttributeList(val)
	if bw, ok := attrs["BANDWIDTH"]; ok {
		n, err := strconv.ParseInt(bw, 10, 64)
		if err != nil || n < 0 {
			return v, fmt.Errorf("invalid BANDWIDTH %q", bw)
		}
		v.Bandwidth = n
	}
	if res, ok := attrs["RESOLUTION"]; ok {
		w, h, found := strings.Cut(strings.ToLower(res), "x")
		width, errW := strconv.Atoi(w)
		height, errH := strconv.Atoi(h)
		if !found || errW != nil || errH != nil {
			return v, fmt.Errorf("invalid RESOLUTION %q", res)
		}
		v.Resolution = &models.Resolution{Width: width, Height: height}
	}
	v.Codecs = attrs["CODECS"]
	return v, nil
}

// bestVariant returns the index of the highest-bandwidth variant, ties going
// to the first listed.
func bestVariant(variants []models.Variant) int {
	best := 0
	for i, v := range variants {
		if v.Bandwidth > variants[best].Bandwidth {
			best = i
		}
	}
	return best
}
