package endpoint

import (
	"context"
	"net"
	"testing"
	"time"
)

type recordingReceiver struct {
	ch chan []byte
}

func newRecordingReceiver() *recordingReceiver {
	return &recordingReceiver{ch: make(chan []byte, 8)}
}

func (r *recordingReceiver) HandleDatagram(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.ch <- cp
}

func waitFor(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
		return nil
	}
}

func TestUDPSocketRoundTripBetweenTwoPeers(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP a: %v", err)
	}
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP b: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx, nil)
	go b.Serve(ctx, nil)

	bAddr := b.LocalAddr().(*net.UDPAddr)
	aAddr := a.LocalAddr().(*net.UDPAddr)

	recvOnB := newRecordingReceiver()
	peerAOnB := b.Peer(aAddr)
	peerAOnB.SetReceiver(recvOnB)

	recvOnA := newRecordingReceiver()
	peerBOnA := a.Peer(bAddr)
	peerBOnA.SetReceiver(recvOnA)

	if err := peerBOnA.Send(context.Background(), []byte("hello"), SubtypeApplication); err != nil {
		t.Fatalf("Send a->b: %v", err)
	}
	got := waitFor(t, recvOnB.ch)
	if string(got) != "hello" {
		t.Fatalf("b received %q, want %q", got, "hello")
	}

	if err := peerAOnB.Send(context.Background(), []byte("world"), SubtypeApplication); err != nil {
		t.Fatalf("Send b->a: %v", err)
	}
	got = waitFor(t, recvOnA.ch)
	if string(got) != "world" {
		t.Fatalf("a received %q, want %q", got, "world")
	}
}

func TestUDPSocketPeerIsStableAcrossLookups(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer a.Close()

	addr := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}
	p1 := a.Peer(addr)
	p2 := a.Peer(addr)
	if p1 != p2 {
		t.Fatal("Peer() must return the same PeerEndpoint for the same address")
	}

	a.Forget(addr)
	p3 := a.Peer(addr)
	if p3 == p1 {
		t.Fatal("Peer() after Forget() must return a fresh PeerEndpoint")
	}
}

func TestUDPSocketUnknownPeerCallback(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP a: %v", err)
	}
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP b: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Serve(ctx, nil)

	unknownCh := make(chan []byte, 1)
	go a.Serve(ctx, func(_ *net.UDPAddr, data []byte) { unknownCh <- data })

	bAddr := b.LocalAddr().(*net.UDPAddr)
	peerAOnB := b.Peer(a.LocalAddr().(*net.UDPAddr))
	if err := peerAOnB.Send(context.Background(), []byte("ping"), SubtypeApplication); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = bAddr

	got := waitFor(t, unknownCh)
	if string(got) != "ping" {
		t.Fatalf("unknown-peer callback got %q, want %q", got, "ping")
	}
}

func TestPeerEndpointPeerAddrAndPort(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer a.Close()

	addr, err := ParseUDPAddr("127.0.0.1", 5683)
	if err != nil {
		t.Fatalf("ParseUDPAddr: %v", err)
	}
	pe := a.Peer(addr)
	if pe.PeerAddr() != "127.0.0.1" {
		t.Fatalf("PeerAddr() = %q, want 127.0.0.1", pe.PeerAddr())
	}
	if pe.PeerPort() != 5683 {
		t.Fatalf("PeerPort() = %d, want 5683", pe.PeerPort())
	}
}

func TestParseUDPAddrRejectsInvalidHost(t *testing.T) {
	if _, err := ParseUDPAddr("not-an-ip", 1234); err == nil {
		t.Fatal("expected an error for an invalid IP literal")
	}
}
