// Package orphanscan implements the background garbage-collection sweep
// named in the design notes (§9 "Orphan blob GC"): list the blob root, join
// against the metadata store's known blob ids, and remove any blob file
// that has outlived its metadata record by a safety window.
//
// Adapted from the teacher's internal/cleanup (periodic mtime-aged sweep
// over a directory) and internal/store/cas.go (content-addressed layout,
// per-key locking) — repurposed here from "age out an abandoned upload
// session" / "dedup a write" into "age out an unreferenced blob."
package orphanscan

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// KnownBlobIDs is satisfied by the metadata store: it must report every
// blob id currently referenced by a (possibly soft-deleted) file record for
// the given user, so the scanner never removes a blob that is merely
// pending permanent delete.
type KnownBlobIDs func(ctx context.Context, userID string) (map[string]bool, error)

// Scanner walks a blob store root and removes files whose owning blob id is
// not known to the metadata store and whose mtime predates SafetyWindow.
type Scanner struct {
	Root         string
	SafetyWindow time.Duration
	Known        KnownBlobIDs
	Logger       zerolog.Logger
}

// RunOnce performs a single sweep across every per-user subdirectory of
// Root. It is safe to call concurrently with active uploads: only files
// older than SafetyWindow are considered, so an in-flight stage/replace
// cannot be mistaken for an orphan.
func (s *Scanner) RunOnce(ctx context.Context) (removed int, err error) {
	userDirs, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-s.SafetyWindow)

	for _, userDir := range userDirs {
		if !userDir.IsDir() {
			continue
		}
		userID := userDir.Name()

		known, err := s.Known(ctx, userID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("user", userID).Msg("orphanscan: failed to load known blob ids")
			continue
		}

		dir := filepath.Join(s.Root, userID)
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			blobID := blobIDFromFilename(e.Name())
			if known[blobID] {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if err := os.Remove(path); err != nil {
				s.Logger.Warn().Err(err).Str("path", path).Msg("orphanscan: remove failed")
				continue
			}
			removed++
			s.Logger.Info().Str("path", path).Msg("orphanscan: removed orphan blob")
		}
	}
	if removed > 0 {
		s.Logger.Info().Int("removed", removed).Msg("orphanscan: cycle complete")
	}
	return removed, nil
}

// RunPeriodic starts a background goroutine that calls RunOnce on every
// interval until ctx is cancelled, with an immediate first pass at startup.
func (s *Scanner) RunPeriodic(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.RunOnce(ctx); err != nil {
			s.Logger.Warn().Err(err).Msg("orphanscan: initial pass failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil {
					s.Logger.Warn().Err(err).Msg("orphanscan: pass failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

// blobIDFromFilename strips the ".encrypted" suffix and any extension hint
// to recover the blob id portion of "<blob-id><ext>.encrypted".
func blobIDFromFilename(name string) string {
	name = trimSuffix(name, ".encrypted")
	if i := lastDot(name); i >= 0 {
		name = name[:i]
	}
	return name
}

func trimSuffix(s, suffix string) string {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
