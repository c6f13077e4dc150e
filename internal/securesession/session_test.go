package securesession

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/openthread/otcommissioner/internal/endpoint"
)

func TestClampedTimeoutBounds(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, HandshakeTimeoutMin},
		{1 * time.Second, HandshakeTimeoutMin},
		{30 * time.Second, 30 * time.Second},
		{5 * time.Minute, HandshakeTimeoutMax},
	}
	for _, c := range cases {
		cfg := Config{HandshakeTimeout: c.in}
		if got := cfg.clampedTimeout(); got != c.want {
			t.Errorf("clampedTimeout(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestRoleAndStateStrings(t *testing.T) {
	if RoleClient.String() != "client" || RoleServer.String() != "server" {
		t.Fatalf("unexpected Role strings: %q, %q", RoleClient, RoleServer)
	}
	if StateOpen.String() != "open" || StateConnected.String() != "connected" {
		t.Fatalf("unexpected State strings")
	}
}

func TestCipherSuiteSelectionPSK(t *testing.T) {
	pskSession := &Session{cfg: Config{PSK: []byte("pskd")}}
	if len(pskSession.cipherSuites()) != 1 || pskSession.cipherSuites()[0] != pskCipherSuite() {
		t.Fatalf("PSK session must select the PSK cipher suite")
	}
}

func TestSessionInitialStateIsOpen(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	s := NewSession(conn, peer, Config{Role: RoleClient, PSK: []byte("test")})
	if s.State() != StateOpen {
		t.Fatalf("State() = %v, want open", s.State())
	}
	if s.PeerAddr() != "127.0.0.1" {
		t.Fatalf("PeerAddr() = %q, want 127.0.0.1", s.PeerAddr())
	}
	if s.PeerPort() != 1 {
		t.Fatalf("PeerPort() = %d, want 1", s.PeerPort())
	}
}

func TestSendBeforeHandshakeReturnsInvalidState(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	peer := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}
	s := NewSession(conn, peer, Config{Role: RoleClient, PSK: []byte("test")})
	err = s.Send(context.Background(), []byte("hi"), endpoint.SubtypeApplication)
	if err == nil {
		t.Fatal("expected an error sending before the handshake completes")
	}
}

func TestHandshakeOverLoopback(t *testing.T) {
	clientConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket client: %v", err)
	}
	defer clientConn.Close()
	serverConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket server: %v", err)
	}
	defer serverConn.Close()

	psk := []byte("N0RESIST")
	client := NewSession(clientConn, serverConn.LocalAddr(), Config{Role: RoleClient, PSK: psk, HandshakeTimeout: HandshakeTimeoutMin})
	server := NewSession(serverConn, clientConn.LocalAddr(), Config{Role: RoleServer, PSK: psk, HandshakeTimeout: HandshakeTimeoutMin})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- server.Accept(ctx) }()
	go func() { errCh <- client.Connect(ctx) }()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			t.Fatalf("handshake side failed: %v", err)
		}
	}

	if client.State() != StateConnected || server.State() != StateConnected {
		t.Fatalf("expected both sides connected, got client=%v server=%v", client.State(), server.State())
	}
	if len(client.Kek()) != 16 || len(server.Kek()) != 16 {
		t.Fatalf("expected a 16-byte KEK on both sides")
	}
}
