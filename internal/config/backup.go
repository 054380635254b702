package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio"
)

const (
	// MaxBackups is how many copies `config init --force` keeps.
	MaxBackups = 3

	// BackupSuffix precedes the timestamp in a backup name:
	// config.yaml.bak.20260102-150405.000
	BackupSuffix = ".bak"

	backupStamp = "20060102-150405.000"
)

// Backup copies the file at path next to itself under a timestamped name and
// prunes all but the newest MaxBackups copies. It returns "" when path does
// not exist.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	dst := path + BackupSuffix + "." + time.Now().Format(backupStamp)
	if err := renameio.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if old, err := ListBackups(path); err == nil && len(old) > MaxBackups {
		for _, p := range old[MaxBackups:] {
			_ = os.Remove(p)
		}
	}
	return dst, nil
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	matches, err := filepath.Glob(globEscape(path) + BackupSuffix + ".*")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	// The timestamp format sorts lexically.
	slices.Sort(matches)
	slices.Reverse(matches)
	return matches, nil
}

// globEscape quotes the pattern characters filepath.Glob would interpret.
func globEscape(path string) string {
	out := make([]rune, 0, len(path))
	for _, r := range path {
		switch r {
		case '*', '?', '[', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
