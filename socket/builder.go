package socket

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/streamerr"
)

// DefaultConnectTimeout bounds address resolution, connect and handshake.
const DefaultConnectTimeout = 10 * time.Second

// Config configures a Builder.
type Config struct {
	// ConnectTimeout bounds resolution, TCP connect and the TLS handshake.
	// Zero uses DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// ReadTimeout, if set, is applied as a fresh read deadline before every Read.
	ReadTimeout time.Duration

	// WriteTimeout, if set, is applied as a fresh write deadline before every Write.
	WriteTimeout time.Duration

	// RootCAs overrides the system trust store. Only verification is customized;
	// no client certificate is ever presented.
	RootCAs *x509.CertPool

	// Resolver resolves host names. Nil uses net.DefaultResolver.
	Resolver *net.Resolver

	// Logger is optional.
	Logger *log.Logger
}

// Builder creates connected sockets.
type Builder struct {
	config   Config
	resolver *net.Resolver
	logger   *log.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Builder{config: cfg, resolver: resolver, logger: cfg.Logger}
}

// CreateSocket parses raw and dials it.
func (b *Builder) CreateSocket(ctx context.Context, raw string) (net.Conn, error) {
	ep, err := ParseEndpoint(raw)
	if err != nil {
		return nil, streamerr.New(streamerr.KindConnection, "socket.parse", err)
	}
	return b.Dial(ctx, ep)
}

// Dial resolves ep.Host, connects, and for https endpoints completes a TLS
// handshake that verifies the chain and matches the certificate to ep.Host.
// Every failure is a *streamerr.Error with KindConnection.
func (b *Builder) Dial(ctx context.Context, ep Endpoint) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.ConnectTimeout)
	defer cancel()

	addr, err := b.resolve(ctx, ep.Host)
	if err != nil {
		return nil, b.fail(ep, "socket.resolve", err)
	}

	var dialer net.Dialer
	target := net.JoinHostPort(addr.String(), strconv.Itoa(ep.Port))
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, b.fail(ep, "socket.connect", err)
	}

	if ep.TLS() {
		tlsConn := tls.Client(conn, b.tlsConfig(ep.Host))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, b.fail(ep, "socket.handshake", err)
		}
		conn = tlsConn
	}

	if b.logger != nil {
		b.logger.Debug("socket connected", map[string]any{
			"endpoint": ep.String(),
			"remote":   target,
			"tls":      ep.TLS(),
		})
	}

	if b.config.ReadTimeout > 0 || b.config.WriteTimeout > 0 {
		return &deadlineConn{Conn: conn, read: b.config.ReadTimeout, write: b.config.WriteTimeout}, nil
	}
	return conn, nil
}

func (b *Builder) tlsConfig(host string) *tls.Config {
	return &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
		RootCAs:    b.config.RootCAs,
	}
}

// resolve returns the first address for host. IP literals resolve to themselves.
func (b *Builder) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := b.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errors.New("no addresses for host " + host)
	}
	return addrs[0].IP, nil
}

func (b *Builder) fail(ep Endpoint, op string, err error) error {
	if b.logger != nil {
		b.logger.Warn("socket failed", map[string]any{
			"endpoint": ep.String(),
			"op":       op,
			"error":    err.Error(),
		})
	}
	return streamerr.New(streamerr.KindConnection, op, fmt.Errorf("%s: %w", ep.Address(), err))
}

// deadlineConn refreshes idle deadlines before each Read and Write.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
