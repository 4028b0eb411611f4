package install

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/download"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrExtractionFailed means the payload could not be unpacked; the
	// install root is untouched.
	ErrExtractionFailed = errors.New("installer extraction failed")
	// ErrInstallerProcessFailed means the installer process exited
	// non-zero; the install root is untouched and no record is written.
	ErrInstallerProcessFailed = errors.New("installer process failed")
)

// GameInfoFile is the per-install metadata file written into the root.
const GameInfoFile = "gameinfo"

// CommandRunner executes one external process to completion. The seam
// exists so tests can stand in for wine and installer scripts.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Options controls one install.
type Options struct {
	GameID  int
	Name    string
	Version string
	Windows bool // run the payload through wine instead of unpacking the native archive
	Desktop bool // write a desktop shortcut
	Menu    bool // write an application-menu shortcut
}

// GameInfo is the JSON document stored as the gameinfo file.
type GameInfo struct {
	Name        string    `json:"name"`
	GameID      int       `json:"gameId"`
	Version     string    `json:"version"`
	Platform    string    `json:"platform"`
	InstalledAt time.Time `json:"installedAt"`
}

// Manager turns verified artifacts into installed game trees plus their
// install records.
type Manager struct {
	installs  db.InstallRepository
	extractor Extractor
	runner    CommandRunner

	// DesktopDir and MenuDir override the shortcut locations, mainly
	// for tests.
	DesktopDir string
	MenuDir    string
}

// NewManager constructs a manager with the zip extractor and a real
// process runner.
func NewManager(installs db.InstallRepository) *Manager {
	return &Manager{installs: installs, extractor: ZipExtractor{}, runner: execRunner{}}
}

// NewManagerWith constructs a manager with explicit seams.
func NewManagerWith(installs db.InstallRepository, extractor Extractor, runner CommandRunner) *Manager {
	return &Manager{installs: installs, extractor: extractor, runner: runner}
}

// Install unpacks the artifact into root and records the install. The
// payload lands in a staging directory first and is renamed into place,
// so root never holds a half-extracted tree. Nothing is recorded when
// any step fails.
func (m *Manager) Install(ctx context.Context, artifact *download.Artifact, root string, opts Options) (*db.Install, error) {
	parent := filepath.Dir(filepath.Clean(root))
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return nil, err
	}

	staging := filepath.Join(parent, ".gander-stage-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Warn().Err(err).Str("path", staging).Msg("Failed to remove staging directory")
		}
	}()

	platform := "native"
	if opts.Windows {
		platform = "windows"
		if err := m.runWindowsInstaller(ctx, artifact.Path, staging); err != nil {
			return nil, err
		}
	} else {
		if err := m.extractor.Extract(ctx, artifact.Path, staging); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
	}

	tree := gameTree(staging)
	if err := writeGameInfo(tree, GameInfo{
		Name:        opts.Name,
		GameID:      opts.GameID,
		Version:     opts.Version,
		Platform:    platform,
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	if err := replaceTree(tree, root); err != nil {
		return nil, err
	}

	record := db.Install{
		GameID:   opts.GameID,
		Name:     opts.Name,
		Path:     root,
		Platform: platform,
		Version:  opts.Version,
	}
	if m.installs != nil {
		if err := m.installs.Upsert(ctx, record); err != nil {
			return nil, fmt.Errorf("recording install: %w", err)
		}
	}

	if opts.Desktop || opts.Menu {
		m.writeShortcuts(record, opts)
	}

	log.Info().Str("game", opts.Name).Str("path", root).Msg("Game installed")
	return &record, nil
}

// runWindowsInstaller drives the payload through wine in unattended mode
// with the staging directory as the installation target.
func (m *Manager) runWindowsInstaller(ctx context.Context, installerPath, staging string) error {
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return err
	}
	err := m.runner.Run(ctx, staging, "wine", installerPath,
		"/VERYSILENT", "/SUPPRESSMSGBOXES", "/NORESTART", "/DIR=Z:"+staging)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstallerProcessFailed, err)
	}
	return nil
}

// gameTree picks the game payload inside an unpacked installer. Native
// installers keep the game under data/noarch; anything else installs as
// unpacked.
func gameTree(staging string) string {
	noarch := filepath.Join(staging, "data", "noarch")
	if info, err := os.Stat(noarch); err == nil && info.IsDir() {
		return noarch
	}
	return staging
}

// replaceTree moves src into place at dst. Any previous tree is renamed
// aside first and only removed once the new one has landed, so a failed
// rename never leaves dst without a usable install.
func replaceTree(src, dst string) error {
	aside := dst + ".prev-" + uuid.NewString()
	displaced := false
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Rename(dst, aside); err != nil {
			return err
		}
		displaced = true
	}
	if err := os.Rename(src, dst); err != nil {
		if displaced {
			if restoreErr := os.Rename(aside, dst); restoreErr != nil {
				log.Error().Err(restoreErr).Str("path", aside).Msg("Failed to restore previous install tree")
			}
		}
		return err
	}
	if displaced {
		if err := os.RemoveAll(aside); err != nil {
			log.Warn().Err(err).Str("path", aside).Msg("Failed to remove previous install tree")
		}
	}
	return nil
}

func writeGameInfo(dir string, info GameInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, GameInfoFile), data, 0o644)
}

// ReadGameInfo loads the gameinfo record from an install root.
func ReadGameInfo(root string) (GameInfo, error) {
	data, err := os.ReadFile(filepath.Join(root, GameInfoFile))
	if err != nil {
		return GameInfo{}, err
	}
	var info GameInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return GameInfo{}, fmt.Errorf("unreadable gameinfo in %s: %w", root, err)
	}
	return info, nil
}

func (m *Manager) writeShortcuts(record db.Install, opts Options) {
	if opts.Desktop {
		dir := m.DesktopDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Warn().Err(err).Msg("Cannot locate home directory for desktop shortcut")
				return
			}
			dir = filepath.Join(home, "Desktop")
		}
		if err := WriteShortcut(record, dir); err != nil {
			log.Warn().Err(err).Msg("Failed to write desktop shortcut")
		}
	}
	if opts.Menu {
		dir := m.MenuDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Warn().Err(err).Msg("Cannot locate home directory for menu shortcut")
				return
			}
			dir = filepath.Join(home, ".local", "share", "applications")
		}
		if err := WriteShortcut(record, dir); err != nil {
			log.Warn().Err(err).Msg("Failed to write menu shortcut")
		}
	}
}
