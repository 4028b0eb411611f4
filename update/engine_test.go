package update_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/install"
	"github.com/ganderhq/gander/update"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memInstalls struct {
	rows map[int]db.Install
}

func (m *memInstalls) Upsert(ctx context.Context, rec db.Install) error {
	if m.rows == nil {
		m.rows = map[int]db.Install{}
	}
	m.rows[rec.GameID] = rec
	return nil
}

func (m *memInstalls) GetByGameID(ctx context.Context, id int) (*db.Install, error) {
	rec, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memInstalls) List(ctx context.Context) ([]db.Install, error) {
	out := make([]db.Install, 0, len(m.rows))
	for _, rec := range m.rows {
		out = append(out, rec)
	}
	return out, nil
}

type fakeSource struct {
	latest   string
	hasDelta bool
}

func (f *fakeSource) Latest(ctx context.Context, gameID int, platform string) (string, download.Request, error) {
	return f.latest, download.Request{URL: "https://payloads.test/full"}, nil
}

func (f *fakeSource) Delta(ctx context.Context, gameID int, platform, from, to string) (download.Request, bool, error) {
	return download.Request{URL: "https://payloads.test/patch"}, f.hasDelta, nil
}

type fakeFetcher struct {
	artifactPath string
	calls        int
	err          error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req download.Request) (*download.Artifact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &download.Artifact{Path: f.artifactPath}, nil
}

type fakeInstaller struct {
	installed *install.Options
	err       error
}

func (f *fakeInstaller) Install(ctx context.Context, artifact *download.Artifact, root string, opts install.Options) (*db.Install, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.installed = &opts
	return &db.Install{GameID: opts.GameID, Name: opts.Name, Path: root, Platform: "native", Version: opts.Version}, nil
}

func buildPatch(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "patch.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func installedRoot(t *testing.T, files map[string]string) (string, db.Install) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "games", "Starlight Drifter")
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root, db.Install{GameID: 7, Name: "Starlight Drifter", Path: root, Platform: "native", Version: "1.0"}
}

func TestUpdateEqualVersionsIsNoOp(t *testing.T) {
	_, record := installedRoot(t, nil)
	source := &fakeSource{latest: "1.0"}
	fetcher := &fakeFetcher{}
	engine := update.NewEngine(&memInstalls{}, source, fetcher, &fakeInstaller{})

	updated, err := engine.Update(context.Background(), record, false, true)
	require.NoError(t, err)
	assert.Equal(t, record, updated)
	assert.Zero(t, fetcher.calls)
}

func TestUpdateDeltaApplies(t *testing.T) {
	root, record := installedRoot(t, map[string]string{"game/data.pak": "old bytes", "start.sh": "#!/bin/sh\n"})
	patch := buildPatch(t, map[string]string{"game/data.pak": "new bytes", "game/new.pak": "fresh"})

	installs := &memInstalls{}
	engine := update.NewEngine(installs, &fakeSource{latest: "1.1", hasDelta: true}, &fakeFetcher{artifactPath: patch}, &fakeInstaller{})

	updated, err := engine.Update(context.Background(), record, false, true)
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Version)

	data, err := os.ReadFile(filepath.Join(root, "game", "data.pak"))
	require.NoError(t, err)
	assert.Equal(t, "new bytes", string(data))
	assert.FileExists(t, filepath.Join(root, "game", "new.pak"))

	stored, err := installs.GetByGameID(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "1.1", stored.Version)
}

func TestUpdateFailedDeltaRestoresTreeAndRecord(t *testing.T) {
	root, record := installedRoot(t, map[string]string{"aaa.txt": "original"})
	// zzz.txt collides with a directory in the root, so the overlay
	// fails after aaa.txt was already replaced.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "zzz.txt"), 0o755))
	patch := buildPatch(t, map[string]string{"aaa.txt": "patched", "zzz.txt": "collides"})

	installs := &memInstalls{}
	engine := update.NewEngine(installs, &fakeSource{latest: "1.1", hasDelta: true}, &fakeFetcher{artifactPath: patch}, &fakeInstaller{})

	updated, err := engine.Update(context.Background(), record, false, true)
	assert.ErrorIs(t, err, update.ErrDeltaApplyFailed)
	assert.Equal(t, record, updated, "failed delta leaves the record unchanged")

	data, readErr := os.ReadFile(filepath.Join(root, "aaa.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(data), "pre-patch tree is restored")
	assert.Empty(t, installs.rows, "no record written for a failed delta")
}

func TestUpdateNoDeltaRefetchesInFull(t *testing.T) {
	_, record := installedRoot(t, nil)
	installer := &fakeInstaller{}
	engine := update.NewEngine(&memInstalls{}, &fakeSource{latest: "2.0", hasDelta: false},
		&fakeFetcher{artifactPath: "/payloads/full.sh"}, installer)

	updated, err := engine.Update(context.Background(), record, false, true)
	require.NoError(t, err)
	assert.Equal(t, "2.0", updated.Version)
	require.NotNil(t, installer.installed)
	assert.Equal(t, "2.0", installer.installed.Version)
}

func TestUpdateRefetchFailure(t *testing.T) {
	_, record := installedRoot(t, nil)
	engine := update.NewEngine(&memInstalls{}, &fakeSource{latest: "2.0"},
		&fakeFetcher{err: assert.AnError}, &fakeInstaller{})

	updated, err := engine.Update(context.Background(), record, false, false)
	assert.ErrorIs(t, err, update.ErrRefetchFailed)
	assert.Equal(t, record, updated)
}

func TestBatchCollectsPerTitleOutcomes(t *testing.T) {
	_, current := installedRoot(t, nil)
	current.Version = "2.0"
	installs := &memInstalls{rows: map[int]db.Install{current.GameID: current}}

	engine := update.NewEngine(installs, &fakeSource{latest: "2.0"}, &fakeFetcher{}, &fakeInstaller{})
	result, err := update.Batch(context.Background(), engine, installs, false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{current.Name}, result.UpToDate)
	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Failed)
}
