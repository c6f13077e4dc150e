package udpproxy

import (
	"encoding/binary"

	"github.com/openthread/otcommissioner/internal/coerr"
)

// payloadHeaderLen is the src-port(2) + dst-port(2) prefix carried by every
// UDP_TX.ntf/UDP_RX.ntf payload, ahead of the opaque tunneled CoAP bytes.
const payloadHeaderLen = 4

// defaultMmPort (kDefaultMmPort) is the well-known UDP port mesh-management
// CoAP resources listen on inside the Thread network; it is both the
// commissioner's fixed source port on the tunnel and, on the way back, the
// only destination port the proxy will accept.
const defaultMmPort uint16 = 61631

// encodeTunnelPayload builds the UDP_TX.ntf payload: src-port || dst-port ||
// opaque-coap-bytes.
func encodeTunnelPayload(srcPort, dstPort uint16, coapBytes []byte) []byte {
	out := make([]byte, payloadHeaderLen+len(coapBytes))
	binary.BigEndian.PutUint16(out[0:2], srcPort)
	binary.BigEndian.PutUint16(out[2:4], dstPort)
	copy(out[4:], coapBytes)
	return out
}

// decodeTunnelPayload splits a UDP_RX.ntf payload back into its source port,
// destination port, and the opaque CoAP bytes it carries.
func decodeTunnelPayload(payload []byte) (srcPort, dstPort uint16, coapBytes []byte, err error) {
	if len(payload) < payloadHeaderLen {
		return 0, 0, nil, coerr.New(coerr.BadFormat, "udpproxy: payload %d bytes shorter than %d-byte header", len(payload), payloadHeaderLen)
	}
	srcPort = binary.BigEndian.Uint16(payload[0:2])
	dstPort = binary.BigEndian.Uint16(payload[2:4])
	coapBytes = payload[4:]
	return srcPort, dstPort, coapBytes, nil
}
