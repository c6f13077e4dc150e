package commissioner

import (
	"context"
	"time"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/meshcop"
	"github.com/openthread/otcommissioner/internal/tlv"
)

const maxNetworkNameLength = 16

// requireActive rejects the call unless the commissioner currently holds an
// accepted petition.
func (c *Commissioner) requireActive() error {
	if c.State() != StateActive {
		return coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	return nil
}

func (c *Commissioner) sessionIDTLV() tlv.TLV {
	var buf [2]byte
	buf[0] = byte(c.sessionID >> 8)
	buf[1] = byte(c.sessionID)
	return tlv.TLV{Type: tlv.TypeCommissionerSessionID, Value: buf[:]}
}

// channelMaskTLV wraps a 32-bit channel bitmask as a single page-0
// (2.4 GHz) ChannelMask TLV entry.
func channelMaskTLV(mask uint32) tlv.TLV {
	var raw [4]byte
	raw[0] = byte(mask >> 24)
	raw[1] = byte(mask >> 16)
	raw[2] = byte(mask >> 8)
	raw[3] = byte(mask)
	value := meshcop.EncodeChannelMask([]meshcop.ChannelMaskEntry{{Page: meshcop.Page24GHz, Mask: raw[:]}})
	return tlv.TLV{Type: tlv.TypeChannelMask, Value: value}
}

// dstOrLocator resolves an explicit destination, falling back to a mesh
// anycast locator when the caller leaves dst zero-valued.
func dstOrLocator(dst address.Address, locator uint16) proxyTarget {
	if dst.Len() == 0 {
		return proxyTarget{locator: locator, useLocator: true}
	}
	return proxyTarget{addr: dst}
}

type proxyTarget struct {
	useLocator bool
	locator    uint16
	addr       address.Address
}

// sendToTarget tunnels a request either to a fixed anycast locator or to an
// explicit address; sendProxyRequest itself picks confirmable/non-confirmable
// based on whether that address is a mesh multicast address.
func (c *Commissioner) sendToTarget(ctx context.Context, uriPath string, target proxyTarget, payload []byte) error {
	if target.useLocator {
		_, err := c.sendProxyRequestToLocator(ctx, uriPath, target.locator, payload)
		return err
	}
	_, err := c.sendProxyRequest(ctx, uriPath, target.addr, payload)
	return err
}

// AnnounceBegin sends MGMT_ANNOUNCE_BEGIN.req so the named channels announce
// the network's presence aCount times, aPeriod apart. dst may be a unicast
// router address or a mesh multicast address; multicast sends are fire-and-
// forget (non-confirmable).
func (c *Commissioner) AnnounceBegin(ctx context.Context, channelMask uint32, count uint8, period uint16, dst address.Address) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	tlvs := []tlv.TLV{
		c.sessionIDTLV(),
		channelMaskTLV(channelMask),
		{Type: tlv.TypeCount, Value: []byte{count}},
		{Type: tlv.TypePeriod, Value: []byte{byte(period >> 8), byte(period)}},
	}
	payload, err := c.signedPayload(tlvs)
	if err != nil {
		return err
	}
	return c.sendToTarget(ctx, announceBeginPath, proxyTarget{addr: dst}, payload)
}

// PanIdQuery sends MGMT_PANID_QUERY.req, asking routers on the given
// channels whether panID is already in use. Results arrive asynchronously
// via Handler.OnPanIdConflict.
func (c *Commissioner) PanIdQuery(ctx context.Context, channelMask uint32, panID uint16, dst address.Address) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	tlvs := []tlv.TLV{
		c.sessionIDTLV(),
		channelMaskTLV(channelMask),
		{Type: tlv.TypePANID, Value: []byte{byte(panID >> 8), byte(panID)}},
	}
	payload, err := c.signedPayload(tlvs)
	if err != nil {
		return err
	}
	return c.sendToTarget(ctx, panIdQueryPath, proxyTarget{addr: dst}, payload)
}

// EnergyScan sends MGMT_ED_SCAN.req. Results arrive asynchronously via
// Handler.OnEnergyReport.
func (c *Commissioner) EnergyScan(ctx context.Context, channelMask uint32, count uint8, period, scanDuration uint16, dst address.Address) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	tlvs := []tlv.TLV{
		c.sessionIDTLV(),
		channelMaskTLV(channelMask),
		{Type: tlv.TypeCount, Value: []byte{count}},
		{Type: tlv.TypePeriod, Value: []byte{byte(period >> 8), byte(period)}},
		{Type: tlv.TypeScanDuration, Value: []byte{byte(scanDuration >> 8), byte(scanDuration)}},
	}
	payload, err := c.signedPayload(tlvs)
	if err != nil {
		return err
	}
	return c.sendToTarget(ctx, edScanPath, proxyTarget{addr: dst}, payload)
}

// RegisterMulticastListener sends MLR.req to the primary Backbone Router,
// asking it to forward the given IPv6 multicast addresses for timeout
// seconds. Returns the Thread Status TLV's reported registration result.
func (c *Commissioner) RegisterMulticastListener(ctx context.Context, addrs []address.Address, timeout time.Duration) (uint8, error) {
	if err := c.requireActive(); err != nil {
		return 0, err
	}
	if len(addrs) == 0 {
		return 0, coerr.New(coerr.InvalidArgs, "commissioner: multicast address list cannot be empty")
	}
	raw := make([]byte, 0, len(addrs)*16)
	for _, a := range addrs {
		if a.Len() != 16 || !a.IsMulticast() {
			return 0, coerr.New(coerr.InvalidArgs, "commissioner: %s is not a valid IPv6 multicast address", a.String())
		}
		raw = append(raw, a.Bytes()...)
	}

	var sessBuf [2]byte
	sessBuf[0] = byte(c.sessionID >> 8)
	sessBuf[1] = byte(c.sessionID)
	secs := uint32(timeout / time.Second)

	tlvs := []tlv.TLV{
		{Type: tlv.TypeThreadCommissionerSessionID, Value: sessBuf[:]},
		{Type: tlv.TypeThreadTimeout, Value: []byte{byte(secs >> 24), byte(secs >> 16), byte(secs >> 8), byte(secs)}},
		{Type: tlv.TypeThreadIPv6Addresses, Value: raw},
	}
	payload, err := c.signedPayload(tlvs)
	if err != nil {
		return 0, err
	}
	resp, err := c.sendProxyRequestToLocator(ctx, mlrPath, primaryBbrAloc16, payload)
	if err != nil {
		return 0, err
	}
	decoded, err := tlv.Decode(tlv.ScopeThread, resp.Payload)
	if err != nil {
		return 0, coerr.Wrap(coerr.BadFormat, err)
	}
	status, ok := tlv.NewTlvSet(decoded).Get(tlv.TypeThreadStatus)
	if !ok || len(status.Value) != 1 {
		return 0, coerr.New(coerr.BadFormat, "commissioner: MLR.rsp missing Status TLV")
	}
	return status.Value[0], nil
}

func (c *Commissioner) requireActiveCCMMode(action string) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	if !c.cfg.EnableCCM {
		return coerr.New(coerr.InvalidState, "commissioner: %s requires CCM mode", action)
	}
	return nil
}

// CommandReenroll asks a CCM-joined device at dst to re-run the joiner
// Enrollment procedure.
func (c *Commissioner) CommandReenroll(ctx context.Context, dst address.Address) error {
	if err := c.requireActiveCCMMode("re-enrolling a device"); err != nil {
		return err
	}
	_, err := c.sendProxyRequest(ctx, reenrollPath, dst, nil)
	return err
}

// CommandDomainReset asks a CCM-joined device at dst to clear its domain
// membership and return to the Disabled role.
func (c *Commissioner) CommandDomainReset(ctx context.Context, dst address.Address) error {
	if err := c.requireActiveCCMMode("resetting a device's domain"); err != nil {
		return err
	}
	_, err := c.sendProxyRequest(ctx, domainResetPath, dst, nil)
	return err
}

// CommandMigrate asks a CCM-joined device at dst to migrate into the named
// destination network.
func (c *Commissioner) CommandMigrate(ctx context.Context, dst address.Address, dstNetworkName string) error {
	if err := c.requireActiveCCMMode("migrating a device"); err != nil {
		return err
	}
	if len(dstNetworkName) > maxNetworkNameLength {
		return coerr.New(coerr.InvalidArgs, "commissioner: network name length %d exceeds %d", len(dstNetworkName), maxNetworkNameLength)
	}
	tlvs := []tlv.TLV{
		c.sessionIDTLV(),
		{Type: tlv.TypeNetworkName, Value: []byte(dstNetworkName)},
	}
	payload, err := c.signedPayload(tlvs)
	if err != nil {
		return err
	}
	resp, err := c.sendProxyRequest(ctx, netMigratePath, dst, payload)
	if err != nil {
		return err
	}
	return c.handleStateResponse(resp, false)
}

// DiagGetQuery sends DIAG_GET.qry for the given diagnostic TLV types, either
// to an explicit address or, when dst is the zero Address, to the leader's
// anycast locator (a single request, not a multicast). Answers arrive asynchronously via
// Handler.OnDiagGetAnswer (one per responding router).
func (c *Commissioner) DiagGetQuery(ctx context.Context, dst address.Address, diagTypes []uint8) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	payload, err := c.diagPayload(diagTypes)
	if err != nil {
		return err
	}
	target := dstOrLocator(dst, leaderAloc16)
	return c.sendToTarget(ctx, diagQueryPath, target, payload)
}

// DiagGetReset asks routers to clear the named diagnostic counters/records.
func (c *Commissioner) DiagGetReset(ctx context.Context, dst address.Address, diagTypes []uint8) error {
	if err := c.requireActive(); err != nil {
		return err
	}
	payload, err := c.diagPayload(diagTypes)
	if err != nil {
		return err
	}
	target := dstOrLocator(dst, leaderAloc16)
	return c.sendToTarget(ctx, diagResetPath, target, payload)
}

func (c *Commissioner) diagPayload(diagTypes []uint8) ([]byte, error) {
	tlvs := []tlv.TLV{{Type: tlv.TypeDiagTypeList, Value: diagTypes}}
	signed, err := c.signRequest(tlvs, false)
	if err != nil {
		return nil, err
	}
	return tlv.EncodeAll(signed), nil
}
