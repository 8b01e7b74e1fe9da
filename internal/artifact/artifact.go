// Package artifact stores diagnostic screenshots.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/v0xg/playbot/internal/browser"
)

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// Name joins parts into a file-safe artifact name.
func Name(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(unsafeChars.ReplaceAllString(p, "_"), "_")
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return "screenshot"
	}
	return strings.Join(clean, "_")
}

// Store writes PNG screenshots as <dir>/<name>.png. A nil Store discards them.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save captures the current page and writes it under name.
func (s *Store) Save(ctx context.Context, page browser.Page, name string) (string, error) {
	if s == nil {
		return "", nil
	}
	data, err := page.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("capture screenshot: %w", err)
	}
	return s.Write(name, data)
}

// Write stores already-encoded PNG data under name.
func (s *Store) Write(name string, data []byte) (string, error) {
	if s == nil {
		return "", nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(s.dir, Name(name)+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}
