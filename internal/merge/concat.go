package merge

import (
	"fmt"
	"io"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Item is one cached segment handed to a muxer.
type Item struct {
	Sequence int
	Path     string
}

// Muxer writes ordered segments into a single output file.
type Muxer interface {
	Mux(items []Item, output string) error
}

// MissingSegmentsError names the segments that were not available for muxing.
type MissingSegmentsError struct {
	Sequences []int
}

func (e *MissingSegmentsError) Error() string {
	parts := make([]string, len(e.Sequences))
	for i, seq := range e.Sequences {
		parts[i] = fmt.Sprint(seq)
	}
	return fmt.Sprintf("%d segments missing: [%s]", len(e.Sequences), strings.Join(parts, " "))
}

// sorted returns a copy of items in ascending sequence order.
func sorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b Item) int { return a.Sequence - b.Sequence })
	return out
}

// ConcatMuxer appends the raw segment bytes in sequence order.
type ConcatMuxer struct {
	logger logger.Logger
}

func NewConcatMuxer(log logger.Logger) *ConcatMuxer {
	return &ConcatMuxer{logger: log}
}

func (m *ConcatMuxer) Mux(items []Item, output string) error {
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create output dir: %v", models.ErrIO, err)
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", models.ErrIO, output, err)
	}

	var written int64
	for _, item := range sorted(items) {
		n, err := appendFile(out, item.Path)
		if err != nil {
			out.Close()
			os.Remove(output)
			return fmt.Errorf("%w: segment %d: %v", models.ErrIO, item.Sequence, err)
		}
		written += n
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", models.ErrIO, output, err)
	}

	m.logger.Infof("Concatenated %d segments into %s (%d bytes)", len(items), output, written)
	return nil
}

func appendFile(dst io.Writer, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(dst, f)
}
