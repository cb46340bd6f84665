package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// MaxArtifactAge matches the metadata TTL of processed artifacts.
const MaxArtifactAge = 24 * time.Hour

// SweepDirectory removes regular files older than maxAge from dir.
// Missing directories are not an error. Returns the number of files removed.
func SweepDirectory(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			log.Printf("Cleanup: could not remove %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// SweepOnStartup clears stale files from the upload and output directories.
func SweepOnStartup(dirs ...string) {
	for _, dir := range dirs {
		removed, err := SweepDirectory(dir, MaxArtifactAge, time.Now())
		if err != nil {
			log.Printf("Cleanup: sweep of %s failed: %v", dir, err)
			continue
		}
		if removed > 0 {
			log.Printf("Cleanup: removed %d stale files from %s", removed, dir)
		}
	}
}
