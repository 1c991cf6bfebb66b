package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/Arax734/bookshare-app-sub001/internal/backup/stream"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// RestoreService restores from backups.
type RestoreService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRestoreService creates a RestoreService.
func NewRestoreService(s *store.Store, logger *slog.Logger) *RestoreService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RestoreService{store: s, logger: logger}
}

// Restore loads a backup file into the store. Full mode wipes the store
// first; merge mode keeps local documents whose id or unique key collides.
// Documents that fail to decode or validate are reported and skipped.
func (s *RestoreService) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid restore mode %q", opts.Mode)
	}

	s.logger.Info("starting restore",
		"path", path,
		"mode", opts.Mode,
		"dry_run", opts.DryRun)
	start := time.Now()

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()

	if _, err := readManifest(&zr.Reader); err != nil {
		return nil, err
	}

	if opts.Mode == RestoreModeFull && !opts.DryRun {
		if err := s.store.Reset(); err != nil {
			return nil, err
		}
	}

	result := &RestoreResult{
		Imported: make(map[string]int),
		Skipped:  make(map[string]int),
	}

	for _, name := range store.Collections {
		if err := s.restoreCollection(ctx, &zr.Reader, name, opts.DryRun, result); err != nil {
			return nil, fmt.Errorf("restore %s: %w", name, err)
		}
	}
	result.Duration = time.Since(start)

	s.logger.Info("restore complete",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"duration", result.Duration)

	return result, nil
}

func (s *RestoreService) restoreCollection(ctx context.Context, zr *zip.Reader, name string, dryRun bool, result *RestoreResult) error {
	rc, err := stream.OpenFile(zr, collectionPath(name))
	if errors.Is(err, stream.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for line, err := range stream.NewReader[json.RawMessage](rc).All() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			result.Errors = append(result.Errors, RestoreError{Collection: name, Line: line.No, Error: err.Error()})
			continue
		}
		if dryRun {
			result.Imported[name]++
			continue
		}

		err = s.store.Restore(ctx, name, line.Value)
		switch {
		case err == nil:
			result.Imported[name]++
		case store.IsAlreadyExists(err):
			result.Skipped[name]++
		default:
			result.Errors = append(result.Errors, RestoreError{Collection: name, Line: line.No, Error: err.Error()})
		}
	}
	return nil
}

// Validate checks a backup without importing.
func (s *RestoreService) Validate(path string) (*ValidationResult, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("failed to open backup: %v", err)},
		}, nil
	}
	defer zr.Close()

	result := &ValidationResult{Valid: true}

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}
	result.Manifest = manifest

	for _, name := range store.Collections {
		if _, ok := manifest.Counts[name]; !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("manifest has no count for %s", name))
		}
		rc, err := stream.OpenFile(&zr.Reader, collectionPath(name))
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("missing file: %s", collectionPath(name)))
			continue
		}
		rc.Close()
	}

	return result, nil
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := stream.OpenFile(zr, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	defer rc.Close()

	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, manifest.Version, FormatVersion)
	}
	return &manifest, nil
}
