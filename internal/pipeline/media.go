package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MediaDir stores synthesized response audio under the data directory so the
// API can serve it back to the UI.
type MediaDir struct {
	dir string
}

// NewMediaDir creates (if needed) and wraps the media directory.
func NewMediaDir(dataDir string) (*MediaDir, error) {
	dir := filepath.Join(dataDir, "media")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	return &MediaDir{dir: dir}, nil
}

// SaveAudio writes WAV bytes under the given base name and returns the file name.
func (m *MediaDir) SaveAudio(name string, data []byte) (string, error) {
	name = sanitizeName(name) + ".wav"
	if err := os.WriteFile(filepath.Join(m.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing audio file: %w", err)
	}
	return name, nil
}

// Path resolves a stored media file name to its on-disk path. Names are
// sanitized so request input cannot escape the media directory.
func (m *MediaDir) Path(name string) string {
	return filepath.Join(m.dir, filepath.Base(name))
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, name)
}
