package merge

import (
	"fmt"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegMuxer remuxes segments with ffmpeg's concat demuxer. When the binary
// is missing or exits non-zero it falls back to raw concatenation.
type FFmpegMuxer struct {
	binary   string
	fallback Muxer
	logger   logger.Logger
}

// NewFFmpegMuxer creates the muxer. An empty binary means "ffmpeg" on PATH.
func NewFFmpegMuxer(binary string, log logger.Logger) *FFmpegMuxer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegMuxer{
		binary:   binary,
		fallback: NewConcatMuxer(log),
		logger:   log,
	}
}

// New picks the muxing strategy.
func New(ffmpegPath string, simple bool, log logger.Logger) Muxer {
	if simple {
		return NewConcatMuxer(log)
	}
	return NewFFmpegMuxer(ffmpegPath, log)
}

func (m *FFmpegMuxer) Mux(items []Item, output string) error {
	bin, err := exec.LookPath(m.binary)
	if err != nil {
		m.logger.Warnf("ffmpeg not available (%v), falling back to concatenation", err)
		return m.fallback.Mux(items, output)
	}

	if err := m.run(bin, items, output); err != nil {
		m.logger.Warnf("%v, falling back to concatenation", err)
		os.Remove(output)
		return m.fallback.Mux(items, output)
	}

	m.logger.Infof("Remuxed %d segments into %s with ffmpeg", len(items), output)
	return nil
}

func (m *FFmpegMuxer) run(bin string, items []Item, output string) error {
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create output dir: %v", models.ErrIO, err)
		}
	}

	list, err := writeFileList(items)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		"-y",
		output,
	}
	cmd := exec.Command(bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// writeFileList writes an ffmpeg concat list with absolute paths.
func writeFileList(items []Item) (string, error) {
	f, err := os.CreateTemp("", "m3u8dl_filelist_*.txt")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create file list: %v", models.ErrIO, err)
	}
	var sb strings.Builder
	for _, item := range sorted(items) {
		path, err := filepath.Abs(item.Path)
		if err != nil {
			path = item.Path
		}
		sb.WriteString(fmt.Sprintf("file '%s'\n", strings.ReplaceAll(path, "'", `'\''`)))
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: failed to write file list: %v", models.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: failed to write file list: %v", models.ErrIO, err)
	}
	return f.Name(), nil
}
