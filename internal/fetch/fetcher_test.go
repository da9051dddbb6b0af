package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestFetchBlocksLoopbackWithoutRequest(t *testing.T) {
	requested := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer srv.Close()

	f := NewFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrBlockedHost) {
		t.Fatalf("expected ErrBlockedHost, got %v", err)
	}
	if requested {
		t.Fatal("expected no request to be issued for a blocked host")
	}
}

func TestFetchBlocksPrivateAndSpecialAddresses(t *testing.T) {
	f := NewFetcher(Config{})
	for _, raw := range []string{
		"http://127.0.0.1/icon.png",
		"http://10.1.2.3/icon.png",
		"http://192.168.0.10/icon.png",
		"http://169.254.169.254/latest/meta-data",
		"http://0.0.0.0/icon.png",
		"http://localhost/icon.png",
		"ftp://icons.example.com/icon.png",
	} {
		if _, err := f.Fetch(context.Background(), raw); !errors.Is(err, ErrBlockedHost) {
			t.Fatalf("expected ErrBlockedHost for %s, got %v", raw, err)
		}
	}
}

func TestFetchAllowlistOverridesGuard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}

	f := NewFetcher(Config{AllowedHosts: []string{u.Hostname()}})
	payload, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch returned error: %v", err)
	}
	if string(payload.Bytes) != "png-bytes" {
		t.Fatalf("unexpected payload %q", payload.Bytes)
	}
	if payload.ContentType != "image/png" {
		t.Fatalf("unexpected content type %q", payload.ContentType)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := NewFetcher(Config{MaxBytes: 1024, AllowedHosts: []string{u.Hostname()}})
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestFetchRejectsDeclaredOversizeBeforeRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := NewFetcher(Config{MaxBytes: 1024, AllowedHosts: []string{u.Hostname()}})
	if _, err := f.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge from content-length check, got %v", err)
	}
}

func TestFetchSurfacesUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	f := NewFetcher(Config{AllowedHosts: []string{u.Hostname()}})
	_, err := f.Fetch(context.Background(), srv.URL)

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusGone {
		t.Fatalf("expected status 410, got %d", upstream.Status)
	}
}

func TestGuardHostForbiddenResolution(t *testing.T) {
	resolveTo := func(ips ...string) func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return func(ctx context.Context, host string) ([]net.IPAddr, error) {
			addrs := make([]net.IPAddr, 0, len(ips))
			for _, ip := range ips {
				addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
			}
			return addrs, nil
		}
	}

	u, _ := url.Parse("http://icons.example.com/icon.png")

	if err := guardHost(context.Background(), u, nil, resolveTo("93.184.216.34")); err != nil {
		t.Fatalf("expected public address to pass, got %v", err)
	}
	if err := guardHost(context.Background(), u, nil, resolveTo("93.184.216.34", "10.0.0.8")); !errors.Is(err, ErrBlockedHost) {
		t.Fatalf("expected rebinding to private address to fail, got %v", err)
	}
}
