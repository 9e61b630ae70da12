package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Workspace creates a fresh temporary directory, passes it to fn and removes it
// afterwards, including when fn panics.
func Workspace(prefix string, fn func(dir string) error) error {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return fmt.Errorf("sandbox: create workspace: %w", err)
	}

	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("sandbox: remove workspace failed", "dir", dir, "error", err)
		}
	}()

	return fn(dir)
}

// WriteFiles writes name -> content pairs below dir.
func WriteFiles(dir string, files map[string]string) error {
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("sandbox: mkdir for %s: %w", name, err)
		}

		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return fmt.Errorf("sandbox: write %s: %w", name, err)
		}
	}

	return nil
}
