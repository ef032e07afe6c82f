package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"genstudio/internal/transport"
)

const maxDownloadBytes = 256 << 20

// Fetcher downloads generated files by their (possibly relative) download
// URL. Credentials are only sent to the backend origin. Bodies are kept in
// an LRU keyed by absolute URL and, for backend URLs, by the credentials
// that fetched them.
type Fetcher struct {
	base   *url.URL
	client *http.Client
	cache  *lru.Cache[string, []byte]
}

func NewFetcher(baseURL string, client *http.Client, cacheEntries int) (*Fetcher, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cacheEntries <= 0 {
		cacheEntries = 64
	}
	cache, err := lru.New[string, []byte](cacheEntries)
	if err != nil {
		return nil, err
	}
	return &Fetcher{base: base, client: client, cache: cache}, nil
}

// Resolve turns a download URL into an absolute URL against the backend.
func (f *Fetcher) Resolve(downloadURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(downloadURL))
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	if ref.String() == "" {
		return "", fmt.Errorf("download url is empty")
	}
	return f.base.ResolveReference(ref).String(), nil
}

func (f *Fetcher) Fetch(ctx context.Context, downloadURL string, creds transport.Credentials) ([]byte, error) {
	abs, err := f.Resolve(downloadURL)
	if err != nil {
		return nil, err
	}
	trusted, err := f.sameOrigin(abs)
	if err != nil {
		return nil, err
	}
	key := abs
	if trusted {
		key = abs + "#" + credentialTag(creds)
	}
	if body, ok := f.cache.Get(key); ok {
		return append([]byte(nil), body...), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, abs, nil)
	if err != nil {
		return nil, err
	}
	if trusted {
		creds.Apply(req.Header)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", abs, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: %w", abs, &transport.HTTPError{StatusCode: resp.StatusCode, Body: string(raw)})
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	if len(body) > maxDownloadBytes {
		return nil, fmt.Errorf("fetch %s: download exceeds %d bytes", abs, maxDownloadBytes)
	}
	f.cache.Add(key, body)
	return append([]byte(nil), body...), nil
}

func (f *Fetcher) sameOrigin(abs string) (bool, error) {
	u, err := url.Parse(abs)
	if err != nil {
		return false, fmt.Errorf("parse download url: %w", err)
	}
	return strings.EqualFold(u.Scheme, f.base.Scheme) && strings.EqualFold(u.Host, f.base.Host), nil
}

func credentialTag(creds transport.Credentials) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(creds.APIKey) + "\x00" + strings.TrimSpace(creds.UserID)))
	return hex.EncodeToString(sum[:8])
}
