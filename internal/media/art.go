package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

const (
	defaultArtFetchTimeout = 5 * time.Second
	defaultArtMaxBytes     = 8 << 20
	artCacheSize           = 32

	// maxArtPixels bounds the decoded size of a cover, whatever its
	// compressed size.
	maxArtPixels = 4096 * 4096
)

// ArtLoader resolves cover-art URLs published by players into images.
// Supported schemes are file, http, https and data.
type ArtLoader struct {
	client   *http.Client
	maxBytes int64

	mu    sync.Mutex
	cache map[string]image.Image
	order []string
}

// NewArtLoader creates an art loader. Zero values select the defaults.
func NewArtLoader(fetchTimeout time.Duration, maxBytes int64) *ArtLoader {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultArtFetchTimeout
	}
	if maxBytes <= 0 {
		maxBytes = defaultArtMaxBytes
	}
	return &ArtLoader{
		client:   &http.Client{Timeout: fetchTimeout},
		maxBytes: maxBytes,
		cache:    make(map[string]image.Image),
	}
}

// Load returns the image at rawURL. Results are cached by URL.
func (l *ArtLoader) Load(ctx context.Context, rawURL string) (image.Image, error) {
	if img, ok := l.cached(rawURL); ok {
		return img, nil
	}

	data, err := l.read(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	img, err := decodeArt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode art %s: %w", truncateURL(rawURL), err)
	}

	l.store(rawURL, img)
	return img, nil
}

func (l *ArtLoader) read(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "data:") {
		data, err := decodeDataURL(rawURL)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > l.maxBytes {
			return nil, fmt.Errorf("art exceeds %d bytes", l.maxBytes)
		}
		return data, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid art url: %w", err)
	}

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open art: %w", err)
		}
		defer f.Close()
		return l.readLimited(f)

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch art: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch art: %s", resp.Status)
		}
		return l.readLimited(resp.Body)
	}

	return nil, fmt.Errorf("unsupported art url scheme %q", u.Scheme)
}

func (l *ArtLoader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read art: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("art exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

func (l *ArtLoader) cached(key string) (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	img, ok := l.cache[key]
	return img, ok
}

func (l *ArtLoader) store(key string, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[key]; ok {
		return
	}
	if len(l.order) >= artCacheSize {
		delete(l.cache, l.order[0])
		l.order = l.order[1:]
	}
	l.cache[key] = img
	l.order = append(l.order, key)
}

// decodeArt checks the payload is an image of sane dimensions before handing
// it to the decoders.
func decodeArt(data []byte) (image.Image, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("not an image (%s)", mtype.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxArtPixels {
		return nil, fmt.Errorf("art dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, maxArtPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>
func decodeDataURL(rawURL string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if strings.HasSuffix(header, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("malformed data url: %w", err)
	}
	return []byte(decoded), nil
}

func truncateURL(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
