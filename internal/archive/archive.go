package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupCollection copies the collection file into a backups directory next
// to it, named <name>-YYYYMMDD-HHMMSS.anki2, and returns the backup path
func BackupCollection(collectionPath string) (string, error) {
	info, err := os.Stat(collectionPath)
	if err != nil {
		return "", fmt.Errorf("collection does not exist: %s", collectionPath)
	}
	if info.IsDir() {
		return "", fmt.Errorf("collection path is a directory: %s", collectionPath)
	}

	backupDir := filepath.Join(filepath.Dir(collectionPath), "backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	base := filepath.Base(collectionPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	timestamp := time.Now().Format("20060102-150405")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s-%s%s", name, timestamp, ext))

	// Two runs within the same second
	if _, err := os.Stat(backupPath); err == nil {
		timestamp = time.Now().Format("20060102-150405.000000")
		backupPath = filepath.Join(backupDir, fmt.Sprintf("%s-%s%s", name, timestamp, ext))
	}

	if err := copyFile(collectionPath, backupPath); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to back up collection: %w", err)
	}

	return backupPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
