// Package socket establishes plain or TLS connections to an ingestion endpoint.
//
// Each Dial returns an independent connection bound to one (scheme, host,
// port) triple. There is no pooling and no internal retry: reconnecting is
// the caller's policy, built from repeated Dial calls.
package socket

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Schemes accepted by ParseEndpoint.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Default ports per scheme.
const (
	DefaultHTTPPort  = 80
	DefaultHTTPSPort = 443
)

// ErrUnsupportedScheme is returned for endpoints that are neither http nor https.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Endpoint is a resolved connection target.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	// Path is the request path, "/" when the URI has none.
	Path string
}

// TLS returns true if the endpoint requires a TLS session.
func (e Endpoint) TLS() bool {
	return e.Scheme == SchemeHTTPS
}

// Address returns host:port suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// HostHeader returns the Host header value, omitting the default port.
func (e Endpoint) HostHeader() string {
	if e.Port == defaultPort(e.Scheme) {
		if strings.Contains(e.Host, ":") {
			return "[" + e.Host + "]"
		}
		return e.Host
	}
	return e.Address()
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s%s", e.Scheme, e.Address(), e.Path)
}

// ParseEndpoint parses a URI such as "https://host", "http://host:8080/path".
// The port defaults to 80 for http and 443 for https.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeHTTP && scheme != SchemeHTTPS {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: missing host", raw)
	}

	port := defaultPort(scheme)
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid endpoint %q: bad port %q", raw, p)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return Endpoint{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

func defaultPort(scheme string) int {
	if scheme == SchemeHTTPS {
		return DefaultHTTPSPort
	}
	return DefaultHTTPPort
}
