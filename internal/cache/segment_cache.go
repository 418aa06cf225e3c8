package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"m3u8dl/internal/logger"
	"m3u8dl/internal/models"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const dirPrefix = "m3u8dl_"

// SegmentCache stores downloaded segments on disk, one directory per playlist
// fingerprint and one file per segment sequence. Each segment maps to its own
// path, so concurrent workers never write the same file and no lock is needed.
type SegmentCache struct {
	root   string
	logger logger.Logger
}

// New creates a cache rooted at root. An empty root means the OS temp dir.
func New(root string, log logger.Logger) *SegmentCache {
	if root == "" {
		root = os.TempDir()
	}
	return &SegmentCache{
		root:   root,
		logger: log,
	}
}

// Dir returns the directory holding every segment of one playlist fingerprint.
func (sc *SegmentCache) Dir(fingerprint string) string {
	return filepath.Join(sc.root, dirPrefix+fingerprint)
}

// Path returns the file a segment is cached under.
func (sc *SegmentCache) Path(fingerprint string, sequence int) string {
	return filepath.Join(sc.Dir(fingerprint), fmt.Sprintf("%08d.ts", sequence))
}

// Exists reports whether a completed segment file is present.
func (sc *SegmentCache) Exists(fingerprint string, sequence int) bool {
	info, err := os.Stat(sc.Path(fingerprint, sequence))
	return err == nil && info.Mode().IsRegular()
}

// Load reads a cached segment. The boolean is false on a miss.
func (sc *SegmentCache) Load(fingerprint string, sequence int) ([]byte, bool) {
	data, err := os.ReadFile(sc.Path(fingerprint, sequence))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			sc.logger.Warnf("Failed to read cached segment %d: %v", sequence, err)
		}
		return nil, false
	}
	return data, true
}

// Store writes a segment under a unique temporary name and renames it into
// place, so a partially written file is never reported as a hit.
func (sc *SegmentCache) Store(fingerprint string, sequence int, data []byte) error {
	dir := sc.Dir(fingerprint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: failed to create cache dir %s: %v", models.ErrIO, dir, err)
	}

	final := sc.Path(fingerprint, sequence)
	tmp := final + "." + uuid.NewString() + ".part"
	if err := writeFileSync(tmp, data); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to write segment %d: %v", models.ErrIO, sequence, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to commit segment %d: %v", models.ErrIO, sequence, err)
	}

	sc.logger.Debugf("Cached segment %d, size: %d bytes", sequence, len(data))
	return nil
}

// Purge removes the whole fingerprint directory. A directory that is already
// gone is logged and not treated as an error.
func (sc *SegmentCache) Purge(fingerprint string) error {
	dir := sc.Dir(fingerprint)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		sc.logger.Debugf("Cache dir %s already removed", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: failed to purge cache dir %s: %v", models.ErrIO, dir, err)
	}
	sc.logger.Infof("Removed cache dir %s", dir)
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
