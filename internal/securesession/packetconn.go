package securesession

import (
	"net"
	"time"
)

// packetConnAdapter presents a connected net.PacketConn/peer pair as a
// net.Conn, which is the shape pion/dtls.Client/Server expect. Every read
// silently drops datagrams from any address other than peer, since a
// single Session owns exactly one DTLS association.
type packetConnAdapter struct {
	pc   net.PacketConn
	peer net.Addr
}

func (a *packetConnAdapter) Read(b []byte) (int, error) {
	for {
		n, addr, err := a.pc.ReadFrom(b)
		if err != nil {
			return n, err
		}
		if addr.String() == a.peer.String() {
			return n, nil
		}
	}
}

func (a *packetConnAdapter) Write(b []byte) (int, error) {
	return a.pc.WriteTo(b, a.peer)
}

func (a *packetConnAdapter) Close() error                      { return a.pc.Close() }
func (a *packetConnAdapter) LocalAddr() net.Addr                { return a.pc.LocalAddr() }
func (a *packetConnAdapter) RemoteAddr() net.Addr               { return a.peer }
func (a *packetConnAdapter) SetDeadline(t time.Time) error      { return a.pc.SetDeadline(t) }
func (a *packetConnAdapter) SetReadDeadline(t time.Time) error  { return a.pc.SetReadDeadline(t) }
func (a *packetConnAdapter) SetWriteDeadline(t time.Time) error { return a.pc.SetWriteDeadline(t) }
