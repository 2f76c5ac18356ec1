// Package media loads advertisement photos for outbound chat messages.
// Loading is best-effort: callers fall back to text-only on any MediaError.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
)

// MaxPhotoBytes caps a single downloaded photo.
const MaxPhotoBytes = 8 << 20

// Photo is an image ready to attach to a chat message.
type Photo struct {
	Data     []byte
	MIME     string
	FileName string
}

// MediaError reports a failed photo load.
type MediaError struct {
	URL string
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("load media %s: %v", e.URL, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// Loader fetches photos over HTTP(S), from Cloud Storage (gs:// URLs) or
// from local files under a media root (file:// URLs). Relative paths resolve
// against a base URL.
type Loader struct {
	client  *http.Client
	storage *storage.Client
	base    *url.URL
	root    string
	logger  *slog.Logger
}

// NewLoader creates a loader. storageClient may be nil, in which case gs:// URLs fail.
// baseURL may be empty, in which case relative paths fail. mediaRoot may be
// empty, in which case file:// URLs fail.
func NewLoader(httpClient *http.Client, storageClient *storage.Client, baseURL, mediaRoot string, logger *slog.Logger) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	l := &Loader{
		client:  httpClient,
		storage: storageClient,
		logger:  logger,
	}
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		l.base = u
	}
	if mediaRoot != "" {
		root, err := filepath.Abs(mediaRoot)
		if err == nil {
			if resolved, evalErr := filepath.EvalSymlinks(root); evalErr == nil {
				root = resolved
			}
			l.root = root
		} else {
			logger.Warn("Ignoring media root", "media_root", mediaRoot, "error", err)
		}
	}
	return l
}

// Load fetches the photo at rawURL.
func (l *Loader) Load(ctx context.Context, rawURL string) (*Photo, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &MediaError{URL: rawURL, Err: err}
	}

	if u.Scheme == "" && u.Path != "" && l.base != nil {
		u = l.base.ResolveReference(u)
	}

	var p *Photo
	switch u.Scheme {
	case "http", "https":
		p, err = l.loadHTTP(ctx, u.String())
	case "gs":
		p, err = l.loadStorage(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "file":
		p, err = l.loadLocal(u.Path)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		l.logger.Warn("Photo load failed", "url", rawURL, "error", err)
		return nil, &MediaError{URL: rawURL, Err: err}
	}
	if p.FileName == "" {
		p.FileName = fileName(u.Path)
	}
	return p, nil
}

// First loads the first photo of an ad, or returns nil if there is none or it failed.
func (l *Loader) First(ctx context.Context, urls []string) *Photo {
	if len(urls) == 0 {
		return nil
	}
	p, err := l.Load(ctx, urls[0])
	if err != nil {
		return nil
	}
	return p
}

func (l *Loader) loadHTTP(ctx context.Context, rawURL string) (*Photo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	startTime := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			l.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	l.logger.Debug("Photo request completed",
		"url", rawURL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(startTime).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return newPhoto(data, resp.Header.Get("Content-Type"))
}

func (l *Loader) loadStorage(ctx context.Context, bucket, object string) (*Photo, error) {
	if l.storage == nil {
		return nil, errors.New("cloud storage not configured")
	}
	if bucket == "" || object == "" {
		return nil, errors.New("gs:// URL needs bucket and object")
	}

	var data []byte
	var contentType string
	err := retry.Do(
		func() error {
			r, openErr := l.storage.Bucket(bucket).Object(object).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(fmt.Errorf("open storage reader: %w", openErr))
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					l.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = readLimited(r)
			contentType = r.Attrs.ContentType
			return readErr
		},
		retry.Attempts(2),
		retry.Delay(time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			l.logger.Info("Retrying photo read after error", "attempt", n, "bucket", bucket, "object", object, "error", retryErr)
		}),
	)
	if err != nil {
		return nil, err
	}
	return newPhoto(data, contentType)
}

// loadLocal reads path only if it resolves, symlinks included, to a file under the media root.
func (l *Loader) loadLocal(path string) (*Photo, error) {
	if l.root == "" {
		return nil, errors.New("local files are disabled")
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(l.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("%s is outside the media root", path)
	}
	return loadFile(resolved)
}

func loadFile(path string) (*Photo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := readLimited(f)
	if err != nil {
		return nil, err
	}
	return newPhoto(data, "")
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", MaxPhotoBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("empty body")
	}
	return data, nil
}

func newPhoto(data []byte, contentType string) (*Photo, error) {
	mime := contentType
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("not an image: %s", mime)
	}
	return &Photo{Data: data, MIME: mime}, nil
}

func fileName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return "photo"
	}
	return p
}
