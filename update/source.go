package update

import (
	"context"
	"fmt"

	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/download"
)

// CatalogSource answers the engine's version questions from the live
// game-details document. The catalogue cache is bypassed so version
// checks never act on stale data.
type CatalogSource struct {
	api         catalog.API
	tokens      catalog.TokenSource
	urlFor      func(manualURL string) string
	downloadDir string
	language    string
}

// NewCatalogSource builds a source. urlFor resolves a manual download
// path into an absolute URL (the client's DownloadURL).
func NewCatalogSource(api catalog.API, tokens catalog.TokenSource, urlFor func(string) string, downloadDir, language string) *CatalogSource {
	return &CatalogSource{api: api, tokens: tokens, urlFor: urlFor, downloadDir: downloadDir, language: language}
}

func (s *CatalogSource) Latest(ctx context.Context, gameID int, platform string) (string, download.Request, error) {
	files, token, err := s.files(ctx, gameID, platform)
	if err != nil {
		return "", download.Request{}, err
	}
	for _, file := range files {
		if file.IsPatch() || file.ManualURL == nil {
			continue
		}
		return file.VersionOrUnknown(), s.request(file, token), nil
	}
	return "", download.Request{}, fmt.Errorf("no installer published for game %d (%s)", gameID, platform)
}

func (s *CatalogSource) Delta(ctx context.Context, gameID int, platform, fromVersion, toVersion string) (download.Request, bool, error) {
	files, token, err := s.files(ctx, gameID, platform)
	if err != nil {
		return download.Request{}, false, err
	}
	for _, file := range files {
		if !file.IsPatch() || file.ManualURL == nil {
			continue
		}
		if file.VersionOrUnknown() == toVersion {
			return s.request(file, token), true, nil
		}
	}
	return download.Request{}, false, nil
}

func (s *CatalogSource) files(ctx context.Context, gameID int, platform string) ([]client.PlatformFile, string, error) {
	token, err := s.tokens.AccessToken()
	if err != nil {
		return nil, "", err
	}
	details, _, err := s.api.GetGameDetails(ctx, token, gameID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", catalog.ErrCatalogUnavailable, err)
	}
	return details.FilesFor(s.language, platform == "windows"), token, nil
}

// request builds the pipeline request for one catalogue file. The payload
// host rejects unauthenticated downloads, so the token travels with it.
func (s *CatalogSource) request(file client.PlatformFile, token string) download.Request {
	req := download.Request{URL: s.urlFor(*file.ManualURL), DestDir: s.downloadDir, AccessToken: token}
	if crc, ok := file.CRC32(); ok {
		req.ExpectedCRC = crc
		req.HasCRC = true
	}
	return req
}
