package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"trendloop/internal/feed"
)

// Frame is one feed snapshot in a replay.
type Frame struct {
	Path     string
	Snapshot feed.Snapshot
}

// LoadDir reads every *.json snapshot in dir and returns them in replay order.
func LoadDir(dir string) ([]Frame, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReplay, dir)
	}

	frames := make([]Frame, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		snap, err := feed.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if snap.At.IsZero() {
			return nil, fmt.Errorf("%s: snapshot has no timestamp", path)
		}
		frames = append(frames, Frame{Path: path, Snapshot: snap})
	}

	SortFrames(frames)
	if err := ValidateOrdering(frames); err != nil {
		return nil, err
	}
	return frames, nil
}

// SortFrames sorts frames by (At, Path) in place.
func SortFrames(frames []Frame) {
	sort.SliceStable(frames, func(i, j int) bool {
		return compareFrames(frames[i], frames[j]) < 0
	})
}

// compareFrames returns -1 if a < b, 0 if equal, 1 if a > b.
func compareFrames(a, b Frame) int {
	if !a.Snapshot.At.Equal(b.Snapshot.At) {
		if a.Snapshot.At.Before(b.Snapshot.At) {
			return -1
		}
		return 1
	}
	if a.Path != b.Path {
		if a.Path < b.Path {
			return -1
		}
		return 1
	}
	return 0
}

// ValidateOrdering checks that snapshot times strictly increase. Two frames
// at the same instant would tick the book twice for one bar.
func ValidateOrdering(frames []Frame) error {
	for i := 1; i < len(frames); i++ {
		if !frames[i].Snapshot.At.After(frames[i-1].Snapshot.At) {
			return fmt.Errorf("%w: %s at %s does not follow %s",
				ErrInvalidOrdering, frames[i].Path, frames[i].Snapshot.At, frames[i-1].Path)
		}
	}
	return nil
}
