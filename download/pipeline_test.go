package download_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/pkg/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "installer bytes installer bytes installer bytes"

func payloadCRC(t *testing.T) uint32 {
	t.Helper()
	crc := hasher.NewCRC32()
	_, err := crc.Write([]byte(payload))
	require.NoError(t, err)
	return crc.Sum32()
}

// redirectChain serves n redirect hops before the payload.
func redirectChain(t *testing.T, hops int) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var hop int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &hop)
		if hop < hops {
			http.Redirect(w, r, fmt.Sprintf("%s/hop/%d", srv.URL, hop+1), http.StatusFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		if r.Method != "HEAD" {
			fmt.Fprint(w, payload)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFollowsBoundedRedirects(t *testing.T) {
	srv := redirectChain(t, 3)
	dest := filepath.Join(t.TempDir(), "game.bin")

	p := download.NewPipeline(nil)
	art, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL + "/hop/0", Dest: dest,
		ExpectedCRC: payloadCRC(t), HasCRC: true,
	})
	require.NoError(t, err)
	assert.Equal(t, dest, art.Path)
	assert.Equal(t, int64(len(payload)), art.Size)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestFetchFollowsExactlyTenRedirects(t *testing.T) {
	srv := redirectChain(t, 10)
	dest := filepath.Join(t.TempDir(), "game.bin")

	p := download.NewPipeline(nil)
	art, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL + "/hop/0", Dest: dest,
		ExpectedCRC: payloadCRC(t), HasCRC: true,
	})
	require.NoError(t, err, "a chain at the bound still resolves; only exceeding it fails")
	assert.Equal(t, int64(len(payload)), art.Size)
}

func TestFetchGivesUpPastRedirectBound(t *testing.T) {
	srv := redirectChain(t, 11)
	dest := filepath.Join(t.TempDir(), "game.bin")

	p := download.NewPipeline(nil)
	_, err := p.Fetch(context.Background(), download.Request{URL: srv.URL + "/hop/0", Dest: dest})
	assert.ErrorIs(t, err, download.ErrTooManyRedirects)
	assert.NoFileExists(t, dest)
}

func TestFetchIntegrityMismatchLeavesNothing(t *testing.T) {
	srv := redirectChain(t, 0)
	dest := filepath.Join(t.TempDir(), "game.bin")

	p := download.NewPipeline(nil)
	_, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL + "/hop/0", Dest: dest,
		ExpectedCRC: payloadCRC(t) + 1, HasCRC: true,
	})
	assert.ErrorIs(t, err, download.ErrIntegrityMismatch)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+".part")
}

func TestFetchLengthFallbackMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Lie about the length so the written byte count disagrees.
		if r.Method != "HEAD" {
			fmt.Fprint(w, payload)
		}
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "game.bin")

	p := download.NewPipeline(nil)
	_, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL, Dest: dest, ExpectedSize: int64(len(payload)) + 100,
	})
	assert.ErrorIs(t, err, download.ErrIntegrityMismatch)
	assert.NoFileExists(t, dest)
}

func TestFetchIdempotentWhenDestVerifies(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "game.bin")
	require.NoError(t, os.WriteFile(dest, []byte(payload), 0o644))

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	p := download.NewPipeline(nil)
	art, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL, Dest: dest,
		ExpectedCRC: payloadCRC(t), HasCRC: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), art.Size)
	assert.Zero(t, hits.Load(), "verified destination must not trigger any request")
}

func TestFetchRestreamsWhenDestCorrupt(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "game.bin")
	require.NoError(t, os.WriteFile(dest, []byte("corrupted leftovers"), 0o644))

	srv := redirectChain(t, 0)
	p := download.NewPipeline(nil)
	art, err := p.Fetch(context.Background(), download.Request{
		URL: srv.URL + "/hop/0", Dest: dest,
		ExpectedCRC: payloadCRC(t), HasCRC: true,
	})
	require.NoError(t, err)
	assert.Equal(t, payloadCRC(t), art.CRC)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestFetchExtrasExistenceSkipAndNameFilter(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "HEAD" {
			hits.Add(1)
			fmt.Fprint(w, "extra content")
		}
	}))
	defer srv.Close()

	destDir := t.TempDir()
	// Final URL base name for /extras/soundtrack.zip is soundtrack.zip.
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "soundtrack.zip"), []byte("old"), 0o644))

	extras := []client.Extra{
		{Name: " soundtrack ", ManualURL: "/extras/soundtrack.zip"},
		{Name: "wallpapers", ManualURL: "/extras/wallpapers.zip"},
	}
	urlFor := func(manual string) string { return srv.URL + manual }

	p := download.NewPipeline(nil)

	// Trimmed-name exact match selects the soundtrack, which already
	// exists, so nothing is streamed and the stale bytes stay untouched.
	err := p.FetchExtras(context.Background(), extras, urlFor, "tok",
		download.ExtrasOptions{DestDir: destDir, NameFilter: "soundtrack", Workers: 2})
	require.NoError(t, err)
	assert.Zero(t, hits.Load())
	got, _ := os.ReadFile(filepath.Join(destDir, "soundtrack.zip"))
	assert.Equal(t, "old", string(got))

	// Unfiltered run fetches only the missing extra.
	err = p.FetchExtras(context.Background(), extras, urlFor, "tok",
		download.ExtrasOptions{DestDir: destDir, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
	assert.FileExists(t, filepath.Join(destDir, "wallpapers.zip"))
}

func TestFetchExtrasUnknownFilter(t *testing.T) {
	p := download.NewPipeline(nil)
	err := p.FetchExtras(context.Background(), []client.Extra{{Name: "x"}}, func(s string) string { return s }, "",
		download.ExtrasOptions{DestDir: t.TempDir(), NameFilter: "nope"})
	assert.ErrorIs(t, err, download.ErrNoSuchExtra)
}
