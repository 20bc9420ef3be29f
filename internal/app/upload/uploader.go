// Package upload moves a picked image from a local reference into object
// storage and hands back its public URL.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

// DefaultMaxBytes is the upload ceiling (5 MiB).
const DefaultMaxBytes int64 = 5 * 1024 * 1024

// User-visible notices.
const (
	NoticeNotAccessible = "Selected file not accessible."
	NoticeTooLarge      = "Image too large (max 5 MB)."
	NoticeFailed        = "Upload failed."
	NoticeNoURL         = "Uploaded but URL unavailable (private bucket)."
)

var (
	errTooLarge    = errors.New("attachment exceeds size ceiling")
	errBlockedHost = errors.New("remote address not allowed")
)

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// Uploader implements the attachment upload step of the send pipeline.
type Uploader struct {
	store    domain.ObjectStore
	client   *http.Client
	cacheDir string
	maxBytes int64
	now      func() time.Time
}

type Option func(*Uploader)

func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

func WithCacheDir(dir string) Option {
	return func(u *Uploader) { u.cacheDir = dir }
}

func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

func New(store domain.ObjectStore, opts ...Option) *Uploader {
	u := &Uploader{
		store:    store,
		client:   newRemoteClient(),
		cacheDir: filepath.Join(os.TempDir(), "anima-cache"),
		maxBytes: DefaultMaxBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// CacheDir is where staged and materialized files are written.
func (u *Uploader) CacheDir() string { return u.cacheDir }

// Upload never returns an error: every failure is logged, reported through
// notify and surfaces as ok=false. Cached copies of ref are removed once the
// upload settles.
func (u *Uploader) Upload(ctx context.Context, ref string, notify func(string)) (string, bool) {
	log := observability.LoggerFromContext(ctx).With("component", "uploader")
	if notify == nil {
		notify = func(string) {}
	}

	if strings.TrimSpace(ref) == "" {
		log.Warn("no file provided")
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("upload panicked", "panic", r)
			notify(NoticeFailed)
		}
	}()

	defer u.Release(ref)

	data, ext, err := u.load(ctx, ref)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			log.Warn("upload aborted", "error", err)
			notify(NoticeTooLarge)
		} else {
			log.Warn("attachment not readable", "ref", ref, "error", err)
			notify(NoticeNotAccessible)
		}
		return "", false
	}

	key, contentType := ObjectName(u.now(), ext)
	log.Info("uploading", "key", key, "content_type", contentType, "bytes", len(data))

	url, err := u.store.UploadObject(ctx, key, data, contentType)
	if err != nil {
		log.Error("object storage upload failed", "key", key, "error", err)
		notify(NoticeFailed)
		return "", false
	}
	if url == "" {
		log.Warn("uploaded without public url", "key", key)
		notify(NoticeNoURL)
		return "", false
	}

	log.Info("upload success", "key", key, "url", url)
	return url, true
}

// load materializes ref and returns its bytes and extension, enforcing the
// size ceiling before anything is read into memory.
func (u *Uploader) load(ctx context.Context, ref string) ([]byte, string, error) {
	if strings.HasPrefix(ref, "data:") {
		return u.loadDataURI(ref)
	}

	path := u.materialize(ctx, ref)
	if path != ref {
		defer u.Release(path)
	}
	path = strings.TrimPrefix(path, "file://")

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > u.maxBytes {
		return nil, "", fmt.Errorf("%w: %d > %d", errTooLarge, info.Size(), u.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("read %s: empty file", path)
	}
	return data, Extension(path), nil
}

func (u *Uploader) loadDataURI(ref string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", errors.New("data uri is not base64")
	}

	approx := int64(len(payload)) * 3 / 4
	if approx > u.maxBytes {
		return nil, "", fmt.Errorf("%w: approx %d > %d", errTooLarge, approx, u.maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data uri: %w", err)
	}
	if len(data) == 0 {
		return nil, "", errors.New("decode data uri: empty payload")
	}

	mime, _, _ := strings.Cut(header, ";")
	_, sub, _ := strings.Cut(mime, "/")
	return data, normalizeExt(sub), nil
}

// materialize copies a remote handle into the cache so it can be read like a
// local file. On failure the original ref is returned unchanged.
func (u *Uploader) materialize(ctx context.Context, ref string) string {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return ref
	}
	log := observability.LoggerFromContext(ctx)

	dest := filepath.Join(u.cacheDir, fmt.Sprintf("upload-%d.%s", u.now().UnixMilli(), Extension(ref)))
	if err := u.download(ctx, ref, dest); err != nil {
		log.Warn("failed to copy remote handle, using original ref", "ref", ref, "error", err)
		return ref
	}
	return dest
}

func (u *Uploader) download(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	// One byte past the ceiling is enough for the later stat to reject it.
	_, err = io.Copy(f, io.LimitReader(resp.Body, u.maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Stage writes an incoming attachment into the cache directory and returns a
// local reference for Conversation.Stage.
func (u *Uploader) Stage(r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(u.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	dest := filepath.Join(u.cacheDir, fmt.Sprintf("staged-%s.%s", uuid.NewString(), Extension(filename)))

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	// Oversized files are still staged; the ceiling is applied at send time.
	if _, err := io.Copy(f, io.LimitReader(r, u.maxBytes+1)); err != nil {
		f.Close()
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return dest, nil
}

// Release deletes ref when it is a file inside the cache directory. Anything
// else is left alone.
func (u *Uploader) Release(ref string) {
	path, ok := u.cachedPath(ref)
	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Logger().Warn("failed to remove cached attachment", "path", path, "error", err)
	}
}

func (u *Uploader) cachedPath(ref string) (string, bool) {
	if ref == "" || u.cacheDir == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	path, err := filepath.Abs(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		return "", false
	}
	dir, err := filepath.Abs(u.cacheDir)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// newRemoteClient fetches remote handles over public addresses only. The check
// runs on every dial, so redirects and DNS answers are covered too.
func newRemoteClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: publicOnly,
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !isPublic(ip) {
		return fmt.Errorf("%w: %s", errBlockedHost, ip)
	}
	return nil
}

func isPublic(ip netip.Addr) bool {
	ip = ip.Unmap()
	switch {
	case !ip.IsValid(),
		ip.IsUnspecified(),
		ip.IsLoopback(),
		ip.IsPrivate(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(),
		ip.IsMulticast(),
		sharedAddressSpace.Contains(ip):
		return false
	}
	return true
}
