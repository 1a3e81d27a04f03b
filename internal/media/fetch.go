// Package media loads media bytes from URLs, data URLs, QR code refs and
// local files.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// DefaultMaxBytes bounds a single fetch
const DefaultMaxBytes = 2 << 30

// QRPrefix marks a ref rendered as a QR code PNG of the text after it
const QRPrefix = "qr:"

// DefaultQRSize is the edge length in pixels of generated QR codes
const DefaultQRSize = 256

// ErrTooLarge is returned when a source exceeds the size limit
var ErrTooLarge = errors.New("media exceeds size limit")

// Fetcher resolves references to bytes. Relative paths resolve against
// BaseDir.
type Fetcher struct {
	logger   zerolog.Logger
	client   *http.Client
	BaseDir  string
	MaxBytes int64
	QRSize   int
}

// NewFetcher creates a fetcher using client, or a client with timeout
// when client is nil
func NewFetcher(logger zerolog.Logger, client *http.Client, timeout time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		logger:   logger.With().Str("component", "media").Logger(),
		client:   client,
		MaxBytes: DefaultMaxBytes,
		QRSize:   DefaultQRSize,
	}
}

// Fetch returns the bytes behind ref
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errors.New("empty media reference")
	}

	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err = decodeDataURL(ref)
	case strings.HasPrefix(ref, QRPrefix):
		data, err = f.encodeQR(strings.TrimPrefix(ref, QRPrefix))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, err = f.fetchHTTP(ctx, ref)
	default:
		data, err = f.readFile(ref)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("ref", describe(ref)).
		Int("bytes", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("media fetched")
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media url: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", describe(ref), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", describe(ref), resp.StatusCode)
	}
	return f.readLimited(resp.Body)
}

func (f *Fetcher) encodeQR(text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("empty qr code text")
	}
	size := f.QRSize
	if size <= 0 {
		size = DefaultQRSize
	}
	data, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return data, nil
}

func (f *Fetcher) readFile(ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()
	return f.readLimited(file)
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// decodeDataURL handles "data:[<mediatype>][;base64],<data>"
func decodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data url")
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed data url payload: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data url payload: %w", err)
	}
	return []byte(text), nil
}

// describe shortens refs for logs; data URLs can be megabytes long
func describe(ref string) string {
	if strings.HasPrefix(ref, "data:") {
		header, _, _ := strings.Cut(ref, ",")
		return header + ",..."
	}
	return ref
}
