package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arax734/bookshare-app-sub001/internal/backup/stream"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// BackupService writes store snapshots.
type BackupService struct {
	store     *store.Store
	backupDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewBackupService creates a BackupService writing to backupDir.
func NewBackupService(s *store.Store, backupDir string, logger *slog.Logger) *BackupService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BackupService{
		store:     s,
		backupDir: backupDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Create writes every collection to a zip archive. An empty outputPath
// generates a timestamped name in the backup directory.
func (s *BackupService) Create(ctx context.Context, outputPath string) (*BackupResult, error) {
	start := s.now()

	if outputPath == "" {
		timestamp := start.Format("2006-01-02-150405")
		outputPath = filepath.Join(s.backupDir, fmt.Sprintf("backup-%s.bookshare.zip", timestamp))
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	s.logger.Info("creating backup", "output", outputPath)

	// Write to temp file, rename on success (atomic)
	tmpPath := outputPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath) // Clean up on failure
	defer f.Close()

	// Tee to SHA-256 hasher
	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := &Manifest{
		Version:   FormatVersion,
		CreatedAt: start.UTC(),
		Counts:    make(map[string]int, len(store.Collections)),
	}

	for _, name := range store.Collections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := s.exportCollection(ctx, zw, name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		manifest.Counts[name] = n
	}

	// Write manifest last (has final counts)
	w, err := zw.Create(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := json.NewEncoder(w).Encode(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}

	result := &BackupResult{
		Path:     outputPath,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: time.Since(start),
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"duration", result.Duration,
		"checksum", result.Checksum)

	return result, nil
}

func (s *BackupService) exportCollection(ctx context.Context, zw *zip.Writer, name string) (int, error) {
	w, err := stream.NewWriter(zw, collectionPath(name))
	if err != nil {
		return 0, err
	}
	err = s.store.Dump(ctx, name, func(_ string, raw []byte) error {
		return w.WriteRaw(raw)
	})
	return w.Count(), err
}
