package discovery

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ErrNoBackend is returned when a lookup window ends without a usable backend.
var ErrNoBackend = errors.New("no MOOB backend found on the local network")

// Backend is one advertised backend instance.
type Backend struct {
	Name      string
	HostName  string
	Port      int
	Scheme    string
	BasePath  string
	Version   int
	Addresses []string
}

// BaseURL returns the API base URL for the backend, preferring the first
// advertised address over the host name.
func (b Backend) BaseURL() string {
	host := strings.TrimSuffix(b.HostName, ".")
	if len(b.Addresses) > 0 {
		host = b.Addresses[0]
	}
	u := url.URL{
		Scheme: b.Scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(b.Port)),
		Path:   b.BasePath,
	}
	return strings.TrimRight(u.String(), "/")
}

// Lookup browses for one scan window and returns every backend seen,
// sorted by name.
func Lookup(ctx context.Context, config Config) ([]Backend, error) {
	cfg := config.withDefaults()

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, err
		}
		browse = resolver.Browse
	}

	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	collected := make(map[string]Backend)
	var collectedMu sync.Mutex
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for {
			select {
			case <-scanCtx.Done():
				return
			case entry := <-entries:
				if entry == nil {
					continue
				}
				backend, ok := parseEntry(entry)
				if !ok {
					continue
				}
				collectedMu.Lock()
				collected[backend.Name+"|"+backend.BaseURL()] = backend
				collectedMu.Unlock()
			}
		}
	}()

	if err := browse(scanCtx, cfg.Service, cfg.Domain, entries); err != nil &&
		!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	<-scanCtx.Done()
	<-collectorDone

	// The caller's own cancellation is an error; the scan window ending is not.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collectedMu.Lock()
	out := make([]Backend, 0, len(collected))
	for _, backend := range collected {
		out = append(out, backend)
	}
	collectedMu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].BaseURL() < out[j].BaseURL()
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ResolveBaseURL returns the base URL of the first backend Lookup finds.
func ResolveBaseURL(ctx context.Context, config Config) (string, error) {
	backends, err := Lookup(ctx, config)
	if err != nil {
		return "", err
	}
	if len(backends) == 0 {
		return "", ErrNoBackend
	}
	return backends[0].BaseURL(), nil
}

func parseEntry(entry *zeroconf.ServiceEntry) (Backend, bool) {
	if entry.Port <= 0 {
		return Backend{}, false
	}
	txt := txtToMap(entry.Text)

	scheme := strings.ToLower(txt["scheme"])
	switch scheme {
	case "":
		scheme = "http"
	case "http", "https":
	default:
		return Backend{}, false
	}

	version := 0
	if txt["version"] != "" {
		if parsed, err := strconv.Atoi(txt["version"]); err == nil {
			version = parsed
		}
	}

	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[string]struct{})
	for _, ip := range append(entry.AddrIPv4, entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		addresses = append(addresses, raw)
	}

	if len(addresses) == 0 && strings.TrimSpace(entry.HostName) == "" {
		return Backend{}, false
	}

	name := strings.TrimSpace(entry.Instance)
	if name == "" {
		name = strings.TrimSuffix(entry.HostName, ".")
	}

	basePath := txt["path"]
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	return Backend{
		Name:      name,
		HostName:  entry.HostName,
		Port:      entry.Port,
		Scheme:    scheme,
		BasePath:  basePath,
		Version:   version,
		Addresses: addresses,
	}, true
}

func txtToMap(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, entry := range text {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(parts[1])
	}
	return out
}
