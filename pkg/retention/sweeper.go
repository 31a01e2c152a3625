// Package retention bounds disk usage of generated artifacts. A
// recurring sweep deletes video files older than the retention age from
// the output directory; existence on disk is the only record of an
// artifact, so deletion here is the system's sole garbage collection.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// ArtifactPattern matches the files the render pipeline writes. The
// sweeper only ever touches files matching this pattern, so stray files
// in a shared directory are left alone.
const ArtifactPattern = "gource_*.mp4"

// Sweeper deletes expired artifacts on a fixed interval.
type Sweeper struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(dir string, maxAge, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{dir: dir, maxAge: maxAge, interval: interval, log: log}
}

// Run sweeps on every tick until the context is cancelled. One pass
// runs immediately at startup so a restart doesn't defer cleanup by a
// full interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep performs one deletion pass and returns how many artifacts were
// removed. Failures on individual files are logged and do not stop the
// rest of the pass.
func (s *Sweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("retention sweep cannot read output dir", zap.String("dir", s.dir), zap.Error(err))
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(ArtifactPattern, entry.Name()); !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.log.Warn("retention sweep stat failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if now.Sub(info.ModTime()) <= s.maxAge {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("retention sweep delete failed", zap.String("file", path), zap.Error(err))
			continue
		}
		removed++
		s.log.Info("removed expired artifact",
			zap.String("file", path),
			zap.Duration("age", now.Sub(info.ModTime())))
	}
	return removed
}
