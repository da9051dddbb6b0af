package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxBytes caps a single source download. Icons are small; a
	// source past this is either not an icon or not worth decoding.
	DefaultMaxBytes = 12 << 20
	DefaultTimeout  = 15 * time.Second
)

var (
	ErrInvalidURL  = errors.New("invalid source url")
	ErrBlockedHost = errors.New("source host is not allowed")
	ErrTooLarge    = errors.New("source exceeds byte limit")
)

// UpstreamError reports a non-2xx response from the origin. The status is
// preserved so the HTTP layer can propagate it.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status=%d", e.Status)
}

// Payload is one downloaded source image.
type Payload struct {
	Bytes       []byte
	ContentType string
}

type Config struct {
	MaxBytes     int64
	Timeout      time.Duration
	AllowedHosts []string
}

// Fetcher downloads source images with a byte cap, a time budget and a
// private-address guard. One Fetcher is shared across requests; it holds
// no per-request state.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
	allowed    map[string]struct{}
	resolve    func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewFetcher(cfg Config) *Fetcher {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedHosts))
	for _, host := range cfg.AllowedHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			allowed[host] = struct{}{}
		}
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return guardHost(req.Context(), req.URL, allowed, net.DefaultResolver.LookupIPAddr)
			},
		},
		maxBytes: maxBytes,
		allowed:  allowed,
		resolve:  net.DefaultResolver.LookupIPAddr,
	}
}

// Fetch downloads rawURL and returns its bytes plus the declared content
// type. The host guard runs before any connection is made.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Payload, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	if err := guardHost(ctx, u, f.allowed, f.resolve); err != nil {
		return Payload{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Payload{}, fmt.Errorf("build source request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Payload{}, &UpstreamError{Status: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		return Payload{}, fmt.Errorf("%w: content-length %d", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Payload{}, fmt.Errorf("read source body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return Payload{}, fmt.Errorf("%w: body exceeds %d bytes", ErrTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return Payload{Bytes: data, ContentType: contentType}, nil
}

// IsTimeout reports whether err was caused by the fetch deadline rather
// than a refused or failed request.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func guardHost(ctx context.Context, u *url.URL, allowed map[string]struct{}, resolve func(ctx context.Context, host string) ([]net.IPAddr, error)) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlockedHost, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	if _, ok := allowed[host]; ok {
		return nil
	}
	if host == "localhost" {
		return fmt.Errorf("%w: %s", ErrBlockedHost, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isForbiddenIP(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedHost, host)
		}
		return nil
	}

	addrs, err := resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve source host %s: %w", host, err)
	}
	for _, addr := range addrs {
		if isForbiddenIP(addr.IP) {
			return fmt.Errorf("%w: %s resolves to %s", ErrBlockedHost, host, addr.IP)
		}
	}
	return nil
}

func isForbiddenIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() ||
		ip.IsUnspecified()
}
