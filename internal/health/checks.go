package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lectio/lectio/internal/media"
)

// MediaTools reports whether ffmpeg and ffprobe can be invoked. A watch
// deployment that lost its ffmpeg install should stop accepting recordings.
func MediaTools(tool *media.Tool) Checker {
	return Checker{
		Name:  "media-tools",
		Check: tool.Check,
	}
}

// WritableDir reports whether dir exists and accepts writes. Used for the
// transcript output directory and the watch inbox.
func WritableDir(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(_ context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("health: stat %s: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("health: %s is not a directory", dir)
			}
			probe := filepath.Join(dir, ".health-probe")
			if err := os.WriteFile(probe, nil, 0o600); err != nil {
				return fmt.Errorf("health: %s not writable: %w", dir, err)
			}
			_ = os.Remove(probe)
			return nil
		},
	}
}
