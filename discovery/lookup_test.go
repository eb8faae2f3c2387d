package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestLookupCollectsBackendsSortedByName(t *testing.T) {
	cfg := Config{
		ScanTimeout: 35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			if service != DefaultService {
				t.Errorf("unexpected service: %q", service)
			}
			entries <- testServiceEntry("zeta", 3000, []string{"scheme=https", "path=api"}, "10.0.0.9")
			entries <- testServiceEntry("alpha", 8080, nil, "10.0.0.2")
			entries <- testServiceEntry("broken", 0, nil, "10.0.0.3")
			<-ctx.Done()
			return ctx.Err()
		},
	}

	backends, err := Lookup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(backends) != 2 {
		t.Fatalf("expected 2 backends, got %d: %+v", len(backends), backends)
	}
	if backends[0].Name != "alpha" || backends[0].BaseURL() != "http://10.0.0.2:8080" {
		t.Fatalf("unexpected first backend: %+v (%s)", backends[0], backends[0].BaseURL())
	}
	if got := backends[1].BaseURL(); got != "https://10.0.0.9:3000/api" {
		t.Fatalf("unexpected second base URL: %s", got)
	}
}

func TestResolveBaseURLWithoutBackends(t *testing.T) {
	cfg := Config{
		ScanTimeout: 20 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			<-ctx.Done()
			return nil
		},
	}

	if _, err := ResolveBaseURL(context.Background(), cfg); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

func TestLookupReturnsBrowseError(t *testing.T) {
	browseErr := errors.New("multicast unavailable")
	cfg := Config{
		ScanTimeout: time.Second,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			return browseErr
		},
	}

	if _, err := Lookup(context.Background(), cfg); !errors.Is(err, browseErr) {
		t.Fatalf("expected browse error, got %v", err)
	}
}

func TestBackendBaseURLFallsBackToHostName(t *testing.T) {
	backend := Backend{HostName: "moob.local.", Port: 3000, Scheme: "http"}
	if got := backend.BaseURL(); got != "http://moob.local:3000" {
		t.Fatalf("unexpected base URL: %s", got)
	}

	backend = Backend{Addresses: []string{"fe80::1"}, Port: 3000, Scheme: "http"}
	if got := backend.BaseURL(); got != "http://[fe80::1]:3000" {
		t.Fatalf("unexpected IPv6 base URL: %s", got)
	}
}

func testServiceEntry(instance string, port int, txt []string, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local.",
		Port:     port,
		Text:     append([]string{"version=1"}, txt...),
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}
