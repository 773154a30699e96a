package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// readier is anything that can report backend readiness; both the wake
// factory and the STT providers satisfy it.
type readier interface {
	Ready(ctx context.Context) error
}

// ReadyCheck builds a Checker from any provider exposing Ready.
func ReadyCheck(name string, r readier) Checker {
	return Checker{Name: name, Check: r.Ready}
}

// FuncCheck builds a Checker from a plain probe function, e.g. the Discord
// gateway connectivity closure.
func FuncCheck(name string, fn func(ctx context.Context) error) Checker {
	return Checker{Name: name, Check: fn}
}

// BinaryCheck verifies an external executable (ffmpeg, yt-dlp) is on PATH.
func BinaryCheck(name, binary string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if _, err := exec.LookPath(binary); err != nil {
				return fmt.Errorf("health: binary %q not found: %w", binary, err)
			}
			return nil
		},
	}
}

// WritableDirCheck verifies the song cache directory exists and is writable
// by creating and removing a probe file.
func WritableDirCheck(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("health: stat %q: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("health: %q is not a directory", dir)
			}
			probe := filepath.Join(dir, ".probe-"+uuid.NewString())
			if err := os.WriteFile(probe, nil, 0o600); err != nil {
				return fmt.Errorf("health: %q is not writable: %w", dir, err)
			}
			return os.Remove(probe)
		},
	}
}

// FileCheck verifies a configured asset (chirp, test sound) exists.
func FileCheck(name, path string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("health: stat %q: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("health: %q is a directory, want a file", path)
			}
			return nil
		},
	}
}
