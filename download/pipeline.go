package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ganderhq/gander/pkg/hasher"
	"github.com/rs/zerolog/log"
)

var (
	// ErrTooManyRedirects means the payload URL kept redirecting past the
	// configured bound without ever serving content.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrIntegrityMismatch means the streamed payload failed checksum or
	// length verification. The partial file is removed before this is
	// returned.
	ErrIntegrityMismatch = errors.New("payload integrity mismatch")
)

const (
	defaultMaxRedirects = 10
	partSuffix          = ".part"
	progressInterval    = 250 * time.Millisecond
)

// Request describes one payload to fetch. ExpectedCRC is only consulted
// when HasCRC is set; ExpectedSize is the declared-length fallback used
// when no checksum is available (0 disables it). When Dest is empty the
// file name is taken from the final resolved URL and placed in DestDir.
type Request struct {
	URL          string
	Dest         string
	DestDir      string
	AccessToken  string
	ExpectedCRC  uint32
	HasCRC       bool
	ExpectedSize int64
}

// Artifact is a verified on-disk payload. It is only ever constructed
// after verification succeeds, so holding one implies the file at Path
// matched its declared checksum or length.
type Artifact struct {
	Path string
	Size int64
	CRC  uint32
}

// ProgressReporter receives byte-level progress for one fetch. Calls are
// throttled by the pipeline; implementations need not rate-limit.
type ProgressReporter interface {
	Start(label string, total int64)
	Advance(n int64)
	Done()
}

// Pipeline fetches payloads with integrity verification. The zero value
// is not usable; construct with NewPipeline.
type Pipeline struct {
	httpClient   *http.Client
	maxRedirects int
	reporter     ProgressReporter
}

// NewPipeline constructs a pipeline. reporter may be nil for silent
// operation.
func NewPipeline(reporter ProgressReporter) *Pipeline {
	return &Pipeline{
		httpClient: &http.Client{
			Timeout: 0, // payloads are large; rely on ctx for cancellation
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxRedirects: defaultMaxRedirects,
		reporter:     reporter,
	}
}

// Fetch downloads one payload. When the destination already exists and
// verifies against the request, no bytes are streamed and the existing
// file is returned as the artifact. A failed stream never leaves a file
// at the destination path, and the pipeline never retries on its own.
func (p *Pipeline) Fetch(ctx context.Context, req Request) (*Artifact, error) {
	if req.Dest != "" {
		if art, ok := p.verifyExisting(req); ok {
			log.Info().Str("dest", req.Dest).Msg("Payload already present and verified, skipping")
			return art, nil
		}
	}

	finalURL, declaredSize, err := p.resolveFinalURL(ctx, req.URL, req.AccessToken)
	if err != nil {
		return nil, err
	}
	if req.ExpectedSize == 0 && declaredSize > 0 {
		req.ExpectedSize = declaredSize
	}
	if req.Dest == "" {
		req.Dest = filepath.Join(req.DestDir, urlBaseName(finalURL, "payload.bin"))
		if art, ok := p.verifyExisting(req); ok {
			log.Info().Str("dest", req.Dest).Msg("Payload already present and verified, skipping")
			return art, nil
		}
	}

	return p.stream(ctx, req, finalURL)
}

// verifyExisting reports whether the destination already holds a payload
// satisfying the request.
func (p *Pipeline) verifyExisting(req Request) (*Artifact, bool) {
	info, err := os.Stat(req.Dest)
	if err != nil || info.IsDir() {
		return nil, false
	}

	if req.HasCRC {
		crc, err := hasher.FileCRC32(req.Dest)
		if err != nil || crc != req.ExpectedCRC {
			return nil, false
		}
		return &Artifact{Path: req.Dest, Size: info.Size(), CRC: crc}, true
	}
	if req.ExpectedSize > 0 {
		if info.Size() != req.ExpectedSize {
			return nil, false
		}
		return &Artifact{Path: req.Dest, Size: info.Size()}, true
	}
	return nil, false
}

// resolveFinalURL follows Location headers manually and returns the first
// URL that answers with content along with its declared length (0 when
// unknown). Up to maxRedirects redirects are followed; one more gives up.
func (p *Pipeline) resolveFinalURL(ctx context.Context, rawURL, accessToken string) (string, int64, error) {
	current := rawURL
	for hop := 0; hop <= p.maxRedirects; hop++ {
		httpReq, err := http.NewRequestWithContext(ctx, "HEAD", current, nil)
		if err != nil {
			return "", 0, err
		}
		if accessToken != "" {
			httpReq.Header.Set("Authorization", "Bearer "+accessToken)
		}

		resp, err := p.httpClient.Do(httpReq)
		if err != nil {
			return "", 0, err
		}
		closeBody(resp)

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			next := resp.Header.Get("Location")
			if next == "" {
				return "", 0, fmt.Errorf("redirect without Location from %s", current)
			}
			if parsed, err := resp.Request.URL.Parse(next); err == nil {
				next = parsed.String()
			}
			log.Debug().Str("from", current).Str("to", next).Msg("Following redirect")
			current = next
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", 0, fmt.Errorf("unexpected status %s for %s", resp.Status, current)
		}

		size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
		return current, size, nil
	}
	return "", 0, fmt.Errorf("%w: gave up after %d redirects resolving %s", ErrTooManyRedirects, p.maxRedirects, rawURL)
}

// stream downloads finalURL into req.Dest via a temp file, verifying
// while streaming.
func (p *Pipeline) stream(ctx context.Context, req Request, finalURL string) (*Artifact, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return nil, err
	}
	if req.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AccessToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, finalURL)
	}

	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o750); err != nil {
		return nil, err
	}

	tempPath := req.Dest + partSuffix
	out, err := os.Create(tempPath)
	if err != nil {
		return nil, err
	}

	crc := hasher.NewCRC32()
	writer := io.MultiWriter(out, crc)

	if p.reporter != nil {
		p.reporter.Start(filepath.Base(req.Dest), resp.ContentLength)
	}
	written, copyErr := p.copyWithProgress(ctx, writer, resp.Body)
	if p.reporter != nil {
		p.reporter.Done()
	}

	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		removeTemp(tempPath)
		return nil, fmt.Errorf("streaming %s: %w", finalURL, copyErr)
	}

	if req.HasCRC && crc.Sum32() != req.ExpectedCRC {
		removeTemp(tempPath)
		return nil, fmt.Errorf("%w: crc32 %08x, want %08x", ErrIntegrityMismatch, crc.Sum32(), req.ExpectedCRC)
	}
	if !req.HasCRC && req.ExpectedSize > 0 && written != req.ExpectedSize {
		removeTemp(tempPath)
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrIntegrityMismatch, written, req.ExpectedSize)
	}

	if err := os.Rename(tempPath, req.Dest); err != nil {
		removeTemp(tempPath)
		return nil, err
	}
	log.Info().Str("dest", req.Dest).Int64("bytes", written).Msg("Payload downloaded and verified")
	return &Artifact{Path: req.Dest, Size: written, CRC: crc.Sum32()}, nil
}

// copyWithProgress copies src into dst, forwarding throttled progress and
// honoring ctx cancellation between chunks.
func (p *Pipeline) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 128*1024)
	var written, pending int64
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			pending += int64(n)
			if p.reporter != nil && time.Since(lastReport) >= progressInterval {
				p.reporter.Advance(pending)
				pending = 0
				lastReport = time.Now()
			}
		}
		if readErr == io.EOF {
			if p.reporter != nil && pending > 0 {
				p.reporter.Advance(pending)
			}
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove partial download")
	}
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024*1024))
	if err := resp.Body.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close response body")
	}
}
