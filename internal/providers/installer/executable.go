package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// MarkExecutable sets mode 0755 on every regular file under dir whose
// slash-separated relative path matches one of the doublestar patterns.
// It returns how many files were changed.
func MarkExecutable(dir string, patterns []string) (int, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return 0, fmt.Errorf("invalid pattern %q", p)
		}
	}

	var changed atomic.Int64
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, rel); ok {
				if err := os.Chmod(path, 0755); err != nil {
					return fmt.Errorf("chmod %s: %w", rel, err)
				}
				changed.Add(1)
				return nil
			}
		}
		return nil
	})
	return int(changed.Load()), err
}
