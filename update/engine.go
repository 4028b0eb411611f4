package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/install"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrDeltaApplyFailed means a patch could not be applied; the
	// pre-patch tree has been restored and the record is unchanged.
	ErrDeltaApplyFailed = errors.New("delta apply failed")
	// ErrRefetchFailed means the full re-fetch fallback failed; the
	// record is unchanged.
	ErrRefetchFailed = errors.New("full re-fetch failed")
)

// Source answers version questions for tracked installs. Delta reports
// ok=false when no patch is offered between the two versions.
type Source interface {
	Latest(ctx context.Context, gameID int, platform string) (version string, full download.Request, err error)
	Delta(ctx context.Context, gameID int, platform, fromVersion, toVersion string) (patch download.Request, ok bool, err error)
}

// Fetcher is the slice of the download pipeline the engine needs.
type Fetcher interface {
	Fetch(ctx context.Context, req download.Request) (*download.Artifact, error)
}

// Installer re-installs a full payload over an existing root.
type Installer interface {
	Install(ctx context.Context, artifact *download.Artifact, root string, opts install.Options) (*db.Install, error)
}

// Engine brings tracked installs up to the latest published version,
// preferring deltas over full re-fetches.
type Engine struct {
	installs  db.InstallRepository
	source    Source
	fetcher   Fetcher
	installer Installer
	extractor install.Extractor
}

// NewEngine constructs an update engine. The zip extractor unpacks
// patch payloads.
func NewEngine(installs db.InstallRepository, source Source, fetcher Fetcher, installer Installer) *Engine {
	return &Engine{
		installs:  installs,
		source:    source,
		fetcher:   fetcher,
		installer: installer,
		extractor: install.ZipExtractor{},
	}
}

// Update brings one install record up to date. Equal versions are a
// no-op unless force is set. The returned record reflects the state on
// disk: unchanged on any failure.
func (e *Engine) Update(ctx context.Context, record db.Install, force, deltaAllowed bool) (db.Install, error) {
	latest, fullReq, err := e.source.Latest(ctx, record.GameID, record.Platform)
	if err != nil {
		return record, err
	}
	if latest == record.Version && !force {
		log.Info().Str("game", record.Name).Str("version", record.Version).Msg("Already up to date")
		return record, nil
	}

	if deltaAllowed && latest != record.Version {
		patchReq, ok, err := e.source.Delta(ctx, record.GameID, record.Platform, record.Version, latest)
		if err != nil {
			return record, err
		}
		if ok {
			return e.applyDelta(ctx, record, latest, patchReq)
		}
		log.Debug().Str("game", record.Name).Msg("No delta offered, re-fetching in full")
	}

	return e.refetch(ctx, record, latest, fullReq)
}

// applyDelta fetches the patch and overlays it onto the install root.
// Every touched file is backed up first; a failed overlay restores the
// backups so the tree matches the pre-patch state.
func (e *Engine) applyDelta(ctx context.Context, record db.Install, latest string, patchReq download.Request) (db.Install, error) {
	artifact, err := e.fetcher.Fetch(ctx, patchReq)
	if err != nil {
		return record, fmt.Errorf("%w: fetching patch: %v", ErrDeltaApplyFailed, err)
	}

	workDir := filepath.Join(filepath.Dir(filepath.Clean(record.Path)), ".gander-patch-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("path", workDir).Msg("Failed to remove patch workspace")
		}
	}()

	patchDir := filepath.Join(workDir, "patch")
	backupDir := filepath.Join(workDir, "backup")
	if err := e.extractor.Extract(ctx, artifact.Path, patchDir); err != nil {
		return record, fmt.Errorf("%w: unpacking patch: %v", ErrDeltaApplyFailed, err)
	}

	touched, err := overlay(patchDir, record.Path, backupDir)
	if err != nil {
		if restoreErr := restore(backupDir, record.Path, touched); restoreErr != nil {
			log.Error().Err(restoreErr).Str("game", record.Name).Msg("Failed to restore pre-patch tree")
		}
		return record, fmt.Errorf("%w: %v", ErrDeltaApplyFailed, err)
	}

	record.Version = latest
	if e.installs != nil {
		if err := e.installs.Upsert(ctx, record); err != nil {
			return record, fmt.Errorf("recording update: %w", err)
		}
	}
	log.Info().Str("game", record.Name).Str("version", latest).Msg("Delta applied")
	return record, nil
}

// refetch downloads the full payload and installs it over the root.
func (e *Engine) refetch(ctx context.Context, record db.Install, latest string, fullReq download.Request) (db.Install, error) {
	artifact, err := e.fetcher.Fetch(ctx, fullReq)
	if err != nil {
		return record, fmt.Errorf("%w: %v", ErrRefetchFailed, err)
	}

	updated, err := e.installer.Install(ctx, artifact, record.Path, install.Options{
		GameID:  record.GameID,
		Name:    record.Name,
		Version: latest,
		Windows: record.Platform == "windows",
	})
	if err != nil {
		return record, fmt.Errorf("%w: %v", ErrRefetchFailed, err)
	}
	log.Info().Str("game", record.Name).Str("version", latest).Msg("Re-installed at latest version")
	return *updated, nil
}

// overlay copies every file under patchDir into root, backing up any
// displaced file under backupDir first. It returns the relative paths
// it touched, including on failure, so the caller can restore.
func overlay(patchDir, root, backupDir string) ([]string, error) {
	var touched []string
	err := filepath.Walk(patchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(patchDir, path)
		if err != nil {
			return err
		}

		target := filepath.Join(root, rel)
		if _, err := os.Stat(target); err == nil {
			if err := copyFile(target, filepath.Join(backupDir, rel)); err != nil {
				return fmt.Errorf("backing up %s: %w", rel, err)
			}
		}

		touched = append(touched, rel)
		if err := copyFile(path, target); err != nil {
			return fmt.Errorf("overlaying %s: %w", rel, err)
		}
		return nil
	})
	return touched, err
}

// restore puts every touched file back: from backup when one exists,
// removed when the patch introduced it.
func restore(backupDir, root string, touched []string) error {
	var firstErr error
	for _, rel := range touched {
		backup := filepath.Join(backupDir, rel)
		target := filepath.Join(root, rel)
		if _, err := os.Stat(backup); err == nil {
			if err := copyFile(backup, target); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close source file")
		}
	}()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}
