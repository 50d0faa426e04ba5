package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/acme/simpledialer/internal/config"
)

// Store writes rendered reports to disk and prunes old ones.
type Store struct {
	dir       string
	retention time.Duration
}

// NewStore constructs a report store.
func NewStore(cfg config.ReportConfig) *Store {
	return &Store{dir: cfg.Directory, retention: cfg.Retention}
}

// Save writes the report and returns its path.
func (s *Store) Save(campaignID uuid.UUID, content string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("report store: mkdir: %w", err)
	}

	name := fmt.Sprintf("campaign_%s_%s.txt", campaignID, time.Now().UTC().Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("report store: write: %w", err)
	}
	return path, nil
}

// CleanupOld removes reports older than the retention window and returns
// how many were deleted.
func (s *Store) CleanupOld() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "campaign_*.txt"))
	if err != nil {
		return 0, fmt.Errorf("report store: glob: %w", err)
	}

	cutoff := time.Now().Add(-s.retention)
	deleted := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}
