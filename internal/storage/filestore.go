package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vampirenirmal/raylm/internal/core"
)

const (
	scenesDir  = "scenes"
	rendersDir = "renders"

	// slugLen caps the sanitized prompt slice used in filenames.
	slugLen = 30

	timestampLayout = "20060102_150405"
)

// FileStore owns the persisted state layout: a scenes directory with the
// generated/repaired document text per run, and a renders directory with the
// output artifacts. Filenames derive deterministically from a timestamp and a
// sanitized slice of the prompt.
type FileStore struct {
	baseDir string
	backups bool
	logger  *slog.Logger
}

// NewFileStore creates the directory layout under baseDir.
func NewFileStore(baseDir string, backups bool, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{baseDir, filepath.Join(baseDir, scenesDir), filepath.Join(baseDir, rendersDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return &FileStore{
		baseDir: baseDir,
		backups: backups,
		logger:  logger.With("component", "storage"),
	}, nil
}

// ScenePath returns the history path for a scene document.
func (f *FileStore) ScenePath(prompt string, ts time.Time) string {
	name := fmt.Sprintf("scene_%s_%s.pov", ts.Format(timestampLayout), Slug(prompt, slugLen))
	return filepath.Join(f.baseDir, scenesDir, name)
}

// RenderPath returns the artifact path for a rendered output.
func (f *FileStore) RenderPath(prompt string, ts time.Time, ext string) string {
	name := fmt.Sprintf("render_%s_%s.%s", ts.Format(timestampLayout), Slug(prompt, slugLen), ext)
	return filepath.Join(f.baseDir, rendersDir, name)
}

// SaveScene writes a scene document, plus a backup copy when enabled. Backup
// failure is logged, not fatal.
func (f *FileStore) SaveScene(path, document string) error {
	if err := os.WriteFile(path, []byte(document), 0644); err != nil {
		return fmt.Errorf("saving scene: %w", err)
	}
	f.logger.Debug("scene saved", "path", path, "bytes", len(document))

	if f.backups {
		backupPath := strings.TrimSuffix(path, ".pov") + ".backup.pov"
		if err := os.WriteFile(backupPath, []byte(document), 0644); err != nil {
			f.logger.Warn("scene backup failed", "path", backupPath, "error", err)
		}
	}
	return nil
}

// SaveMetadata writes a performance record as a JSON sidecar next to the
// artifact.
func (f *FileStore) SaveMetadata(artifactPath string, rec *core.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	sidecar := strings.TrimSuffix(artifactPath, filepath.Ext(artifactPath)) + ".metadata.json"
	if err := os.WriteFile(sidecar, data, 0644); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	f.logger.Debug("metadata saved", "path", sidecar)
	return nil
}

var (
	slugStripRe    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapseRe = regexp.MustCompile(`[-\s]+`)
)

// Slug converts a prompt to a safe filename component: lowercase, punctuation
// stripped, whitespace runs collapsed to underscores, capped at maxLen.
func Slug(prompt string, maxLen int) string {
	s := slugStripRe.ReplaceAllString(strings.ToLower(prompt), "")
	s = slugCollapseRe.ReplaceAllString(s, "_")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.Trim(s, "_")
}
