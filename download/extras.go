package download

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/pkg/pool"
	"github.com/rs/zerolog/log"
)

// ErrNoSuchExtra means a name filter matched none of the title's extras.
var ErrNoSuchExtra = errors.New("no extra with that name")

// ExtrasOptions controls an extras fan-out. NameFilter, when non-empty,
// selects extras whose trimmed name equals it exactly (case-sensitive).
type ExtrasOptions struct {
	DestDir    string
	NameFilter string
	Workers    int
}

// FetchExtras downloads a title's extra payloads concurrently. Extras
// carry no upstream checksum, so the skip decision is existence-only: a
// file already present under its final name is never re-fetched or
// verified. Individual failures do not abort the batch; the joined
// failures are returned at the end.
func (p *Pipeline) FetchExtras(ctx context.Context, extras []client.Extra, urlFor func(string) string, accessToken string, opts ExtrasOptions) error {
	selected := extras
	if opts.NameFilter != "" {
		selected = nil
		for _, e := range extras {
			if strings.TrimSpace(e.Name) == opts.NameFilter {
				selected = append(selected, e)
			}
		}
		if len(selected) == 0 {
			return fmt.Errorf("%w: %q", ErrNoSuchExtra, opts.NameFilter)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	if err := os.MkdirAll(opts.DestDir, 0o750); err != nil {
		return err
	}

	workerFunc := func(ctx context.Context, extra client.Extra) error {
		finalURL, _, err := p.resolveFinalURL(ctx, urlFor(extra.ManualURL), accessToken)
		if err != nil {
			log.Warn().Err(err).Str("extra", extra.Name).Msg("Failed to resolve extra URL")
			return fmt.Errorf("extra %q: %w", extra.Name, err)
		}

		dest := filepath.Join(opts.DestDir, extraFileName(finalURL, extra.Name))
		if _, err := os.Stat(dest); err == nil {
			log.Info().Str("extra", extra.Name).Str("dest", dest).Msg("Extra already present, skipping")
			return nil
		}

		if _, err := p.stream(ctx, Request{Dest: dest, AccessToken: accessToken}, finalURL); err != nil {
			log.Warn().Err(err).Str("extra", extra.Name).Msg("Failed to download extra")
			return fmt.Errorf("extra %q: %w", extra.Name, err)
		}
		return nil
	}

	return errors.Join(pool.Run(ctx, selected, opts.Workers, workerFunc)...)
}

// extraFileName takes the final resolved URL's base name, falling back to
// a sanitized extra name when the URL carries none.
func extraFileName(finalURL, extraName string) string {
	fallback := strings.ReplaceAll(strings.TrimSpace(extraName), " ", "_")
	return urlBaseName(finalURL, fallback)
}

// urlBaseName extracts the file name from a URL path.
func urlBaseName(rawURL, fallback string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return fallback
}
