// Package maintenance runs background upkeep for the daemon: daily
// timestamped backups of the profiles file with age-based pruning.
package maintenance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	backupPrefix = "profiles-"
	backupSuffix = ".json"

	// retention is how long backups are kept before pruning.
	retention = 90 * 24 * time.Hour
)

// Service manages the backup goroutine.
type Service struct {
	profilesPath string
	backupDir    string
}

// New creates a maintenance Service backing up profilesPath into backupDir.
func New(profilesPath, backupDir string) *Service {
	return &Service{
		profilesPath: profilesPath,
		backupDir:    backupDir,
	}
}

// Start runs the daily backup loop, firing at 2am local time. Blocks until
// ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	for {
		now := time.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.Add(24 * time.Hour)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			path, err := s.RunBackupNow()
			if err != nil {
				slog.Error("maintenance: backup failed", "err", err)
			} else {
				slog.Info("maintenance: backup created", "file", path)
			}
		}
	}
}

// RunBackupNow copies the profiles file into the backup directory under a
// date-stamped name and prunes expired backups. Returns the backup path.
func (s *Service) RunBackupNow() (string, error) {
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	src, err := os.Open(s.profilesPath)
	if err != nil {
		return "", fmt.Errorf("open profiles: %w", err)
	}
	defer src.Close()

	date := time.Now().Format("2006-01-02")
	destPath := filepath.Join(s.backupDir, backupPrefix+date+backupSuffix)
	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}

	pruneOldBackups(s.backupDir, retention)
	return destPath, nil
}

// ListBackups returns available backup files sorted by name (newest last,
// since names embed the date).
func (s *Service) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), backupSuffix) {
			files = append(files, filepath.Join(s.backupDir, e.Name()))
		}
	}
	return files, nil
}

// pruneOldBackups deletes backup files older than maxAge from backupDir.
func pruneOldBackups(backupDir string, maxAge time.Duration) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), backupPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(backupDir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("maintenance: failed to prune old backup", "file", path, "err", err)
			} else {
				slog.Info("maintenance: pruned old backup", "file", path)
			}
		}
	}
}
