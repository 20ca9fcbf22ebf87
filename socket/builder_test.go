package socket

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/fragstream/iox"
	"github.com/pithecene-io/fragstream/streamerr"
)

func tlsServer(t *testing.T) (*httptest.Server, *x509.CertPool) {
	t.Helper()
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	t.Cleanup(ts.Close)

	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	return ts, pool
}

func endpointFor(t *testing.T, scheme, host, rawURL string) Endpoint {
	t.Helper()
	_, port, err := net.SplitHostPort(strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://"))
	if err != nil {
		t.Fatalf("split %q: %v", rawURL, err)
	}
	ep, err := ParseEndpoint(scheme + "://" + net.JoinHostPort(host, port))
	if err != nil {
		t.Fatalf("ParseEndpoint: %v", err)
	}
	return ep
}

func TestDial_TLSVerifiedHandshake(t *testing.T) {
	ts, pool := tlsServer(t)
	b := NewBuilder(Config{RootCAs: pool, ConnectTimeout: 5 * time.Second})

	conn, err := b.Dial(t.Context(), endpointFor(t, "https", "127.0.0.1", ts.URL))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer iox.DiscardClose(conn)

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		t.Fatalf("conn type = %T, want *tls.Conn", conn)
	}
	state := tlsConn.ConnectionState()
	if !state.HandshakeComplete {
		t.Error("handshake not complete")
	}
	if state.Version < tls.VersionTLS12 {
		t.Errorf("negotiated version %x below TLS 1.2", state.Version)
	}

	// The connection is usable for a raw HTTP exchange.
	if _, err := io.WriteString(conn, "GET / HTTP/1.1\r\nHost: 127.0.0.1\r\nConnection: close\r\n\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	defer iox.DiscardClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDial_UntrustedCertificate(t *testing.T) {
	ts, _ := tlsServer(t)
	b := NewBuilder(Config{RootCAs: x509.NewCertPool()})

	_, err := b.Dial(t.Context(), endpointFor(t, "https", "127.0.0.1", ts.URL))
	if !streamerr.Is(err, streamerr.KindConnection) {
		t.Fatalf("Dial error = %v, want KindConnection", err)
	}
}

func TestDial_HostnameMismatch(t *testing.T) {
	ts, pool := tlsServer(t)
	b := NewBuilder(Config{RootCAs: pool})

	// The httptest certificate covers example.com and loopback IPs, not "localhost".
	_, err := b.Dial(t.Context(), endpointFor(t, "https", "localhost", ts.URL))
	if !streamerr.Is(err, streamerr.KindConnection) {
		t.Fatalf("Dial error = %v, want KindConnection", err)
	}
}

func TestDial_Plain(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	b := NewBuilder(Config{})
	conn, err := b.Dial(t.Context(), endpointFor(t, "http", "127.0.0.1", ts.URL))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer iox.DiscardClose(conn)
	if _, ok := conn.(*tls.Conn); ok {
		t.Error("plain endpoint produced a TLS connection")
	}
}

func TestDial_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	b := NewBuilder(Config{ConnectTimeout: 2 * time.Second})
	_, err = b.CreateSocket(t.Context(), "http://"+addr)
	if !streamerr.Is(err, streamerr.KindConnection) {
		t.Fatalf("error = %v, want KindConnection", err)
	}
	if !streamerr.IsFatal(err) {
		t.Error("connection failure must be fatal")
	}
}

func TestCreateSocket_BadEndpoint(t *testing.T) {
	b := NewBuilder(Config{})
	_, err := b.CreateSocket(t.Context(), "ftp://host")
	if !streamerr.Is(err, streamerr.KindConnection) {
		t.Errorf("error = %v, want KindConnection", err)
	}
}

func TestDial_IndependentConnections(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	b := NewBuilder(Config{})
	ep := endpointFor(t, "http", "127.0.0.1", ts.URL)
	c1, err := b.Dial(context.Background(), ep)
	if err != nil {
		t.Fatalf("first Dial: %v", err)
	}
	defer iox.DiscardClose(c1)
	c2, err := b.Dial(context.Background(), ep)
	if err != nil {
		t.Fatalf("second Dial: %v", err)
	}
	defer iox.DiscardClose(c2)

	if c1.LocalAddr().String() == c2.LocalAddr().String() {
		t.Error("expected distinct connections")
	}
}

func TestDial_DeadlineConnWrapsWhenTimeoutsSet(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	b := NewBuilder(Config{ReadTimeout: 50 * time.Millisecond})
	conn, err := b.Dial(t.Context(), endpointFor(t, "http", "127.0.0.1", ts.URL))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer iox.DiscardClose(conn)

	if _, ok := conn.(*deadlineConn); !ok {
		t.Fatalf("conn type = %T, want *deadlineConn", conn)
	}

	// Nothing was sent, so the server stays silent and the read times out.
	_, err = conn.Read(make([]byte, 1))
	var netErr net.Error
	if err == nil {
		t.Fatal("expected read timeout")
	}
	if ne, ok := err.(net.Error); ok {
		netErr = ne
	}
	if netErr == nil || !netErr.Timeout() {
		t.Errorf("read error = %v, want timeout", err)
	}
}
