package session

import (
	"fmt"
	"m3u8dl/internal/download"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"math"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var allowedFormats = map[string]bool{
	"mp4": true,
	"ts":  true,
	"mkv": true,
	"avi": true,
	"flv": true,
}

const outputTimeLayout = "2006-01-02_15-04-05"

// OutputPath returns the output file name. Without a name the current
// time is used; a name without an extension gets the format's.
func OutputPath(name, format string, now time.Time) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		format = "mp4"
	}
	if !allowedFormats[format] {
		return "", fmt.Errorf("%w: unsupported output format %q", models.ErrConfig, format)
	}
	if name == "" {
		return now.Format(outputTimeLayout) + "." + format, nil
	}
	if filepath.Ext(name) == "" {
		return name + "." + format, nil
	}
	return name, nil
}

// FormatDuration renders seconds as HH:MM:SS.
func FormatDuration(seconds float64) string {
	total := int64(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Report is the end-of-run summary.
type Report struct {
	Source     string
	Kind       models.PlaylistType
	Variant    string
	Duration   float64
	Total      int
	Ads        int
	Cached     int
	Downloaded int
	Failed     int
	Bytes      int64
	Elapsed    time.Duration
	Output     string
}

// NewReport summarizes a resolution and its download outcome.
func NewReport(source string, res *models.NestedResolution, outcome *download.Outcome, output string) Report {
	pl := res.SelectedPlaylist()
	r := Report{
		Source:     source,
		Kind:       models.PlaylistMedia,
		Duration:   pl.TotalDuration(),
		Total:      len(pl.Segments) + pl.AdCount,
		Ads:        pl.AdCount,
		Cached:     outcome.Cached,
		Downloaded: outcome.Downloaded,
		Failed:     outcome.Failed,
		Bytes:      outcome.Bytes,
		Elapsed:    outcome.Elapsed,
		Output:     output,
	}
	if res.Master != nil {
		r.Kind = models.PlaylistMaster
		r.Variant = res.Master.Variants[res.Selected].Info()
	}
	return r
}

// Lines renders the report as label/value rows.
func (r Report) Lines() []string {
	title := cases.Title(language.English)
	rows := [][2]string{
		{"source", r.Source},
		{"playlist type", title.String(r.Kind.String())},
	}
	if r.Variant != "" {
		rows = append(rows, [2]string{"selected variant", r.Variant})
	}
	rows = append(rows,
		[2]string{"duration", FormatDuration(r.Duration)},
		[2]string{"total segments", fmt.Sprint(r.Total)},
		[2]string{"ads filtered", fmt.Sprint(r.Ads)},
		[2]string{"cached", fmt.Sprint(r.Cached)},
		[2]string{"downloaded", fmt.Sprint(r.Downloaded)},
		[2]string{"failed", fmt.Sprint(r.Failed)},
		[2]string{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
	)
	if r.Output != "" {
		rows = append(rows, [2]string{"output", r.Output})
	}

	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = fmt.Sprintf("%-17s %s", title.String(row[0])+":", row[1])
	}
	return lines
}

// Log writes the report through log.
func (r Report) Log(log logger.Logger) {
	for _, line := range r.Lines() {
		if r.Failed > 0 {
			log.Warnf("%s", line)
		} else {
			log.Infof("%s", line)
		}
	}
}
