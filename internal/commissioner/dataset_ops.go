package commissioner

import (
	"context"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/dataset"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// activeFieldTLVTypes/pendingFieldTLVTypes map a dataset.Bit to the TLV type
// byte a Get-TLV request lists to ask for that field, mirroring the way
// EncodeActive/EncodePending map the same bits to value TLVs on write.
var activeFieldTLVTypes = map[dataset.Bit]uint8{
	dataset.BitActiveTimestamp:    tlv.TypeActiveTimestamp,
	dataset.BitChannel:            tlv.TypeChannel,
	dataset.BitChannelMask:        tlv.TypeChannelMask,
	dataset.BitExtendedPANID:      tlv.TypeExtendedPANID,
	dataset.BitMeshLocalPrefix:    tlv.TypeMeshLocalPrefix,
	dataset.BitNetworkMasterKey:   tlv.TypeNetworkMasterKey,
	dataset.BitNetworkName:        tlv.TypeNetworkName,
	dataset.BitPANID:              tlv.TypePANID,
	dataset.BitPSKc:               tlv.TypePSKc,
	dataset.BitSecurityPolicy:     tlv.TypeSecurityPolicy,
}

var pendingFieldTLVTypes = map[dataset.Bit]uint8{
	dataset.BitPendingTimestamp: tlv.TypePendingTimestamp,
	dataset.BitDelayTimer:       tlv.TypeDelayTimer,
}

var commissionerFieldTLVTypes = map[dataset.Bit]uint8{
	dataset.BitCommissionerSessionID: tlv.TypeCommissionerSessionID,
	dataset.BitBorderAgentLocator:    tlv.TypeBorderAgentLocator,
	dataset.BitSteeringData:          tlv.TypeSteeringData,
	dataset.BitCommissionerID:        tlv.TypeCommissionerID,
	dataset.BitJoinerUDPPort:         tlv.TypeJoinerUDPPort,
}

var bbrFieldTLVTypes = map[dataset.Bit]uint8{
	dataset.BitRegistrarIPv6Address: tlv.TypeRegistrarIPv6Address,
	dataset.BitDomainName:           tlv.TypeDomainName,
}

// buildGetTLVs returns a single-element (or empty, when flags requests
// nothing) slice carrying the Get TLV for the requested fields; an empty
// Get TLV is never sent, since the border agent treats its absence as
// "return every field" for these resources.
func buildGetTLVs(flags uint32, tables ...map[dataset.Bit]uint8) []tlv.TLV {
	var types []byte
	for _, table := range tables {
		for bit, t := range table {
			if bit.Has(flags) {
				types = append(types, t)
			}
		}
	}
	if len(types) == 0 {
		return nil
	}
	return []tlv.TLV{{Type: tlv.TypeGet, Value: types}}
}

// GetActiveDataset requests the Active Operational Dataset fields named by
// flags directly on the outer border-agent session (the mesh-local prefix
// needed to route through the UDP proxy isn't known before this call).
func (c *Commissioner) GetActiveDataset(ctx context.Context, flags uint32) (*dataset.ActiveDataset, error) {
	if c.State() != StateActive {
		return nil, coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	payload := tlv.EncodeAll(buildGetTLVs(flags, activeFieldTLVTypes))
	resp, err := c.sendOuterRequest(ctx, activeGetPath, true, payload)
	if err != nil {
		return nil, err
	}
	fresh, err := dataset.DecodeActive(resp.Payload)
	if err != nil {
		return nil, err
	}
	dataset.MergeActive(&c.active, fresh)
	out := c.active
	return &out, nil
}

// SetActiveDataset writes d's populated fields, enforcing that
// ActiveTimestamp is present and that Channel/PANID/MeshLocalPrefix/
// NetworkMasterKey (changed only via the Pending dataset) are absent.
func (c *Commissioner) SetActiveDataset(ctx context.Context, d *dataset.ActiveDataset) error {
	if c.State() != StateActive {
		return coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	if !dataset.BitActiveTimestamp.Has(d.PresentFlags) {
		return coerr.New(coerr.InvalidArgs, "commissioner: SetActiveDataset requires ActiveTimestamp")
	}
	for _, forbidden := range []dataset.Bit{dataset.BitChannel, dataset.BitPANID, dataset.BitMeshLocalPrefix, dataset.BitNetworkMasterKey} {
		if forbidden.Has(d.PresentFlags) {
			return coerr.New(coerr.InvalidArgs, "commissioner: SetActiveDataset forbids Channel/PANID/MeshLocalPrefix/NetworkMasterKey")
		}
	}

	payload, err := c.sessionSignedDatasetPayload(dataset.EncodeActive(d))
	if err != nil {
		return err
	}
	_, err = c.sendProxyRequestToLocator(ctx, activeSetPath, leaderAloc16, payload)
	return err
}

// GetPendingDataset mirrors GetActiveDataset for the Pending Operational
// Dataset, also sent directly on the outer session.
func (c *Commissioner) GetPendingDataset(ctx context.Context, flags uint32) (*dataset.PendingDataset, error) {
	if c.State() != StateActive {
		return nil, coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	payload := tlv.EncodeAll(buildGetTLVs(flags, activeFieldTLVTypes, pendingFieldTLVTypes))
	resp, err := c.sendOuterRequest(ctx, pendingGetPath, true, payload)
	if err != nil {
		return nil, err
	}
	fresh, err := dataset.DecodePending(resp.Payload)
	if err != nil {
		return nil, err
	}
	dataset.MergePending(&c.pending, fresh)
	out := c.pending
	return &out, nil
}

// SetPendingDataset writes d, enforcing ActiveTimestamp+PendingTimestamp+
// DelayTimer are all present, via the UDP proxy to the leader locator.
func (c *Commissioner) SetPendingDataset(ctx context.Context, d *dataset.PendingDataset) error {
	if c.State() != StateActive {
		return coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	if !dataset.BitActiveTimestamp.Has(d.PresentFlags) || !dataset.BitPendingTimestamp.Has(d.PresentFlags) || !dataset.BitDelayTimer.Has(d.PresentFlags) {
		return coerr.New(coerr.InvalidArgs, "commissioner: SetPendingDataset requires ActiveTimestamp, PendingTimestamp and DelayTimer")
	}

	payload, err := c.sessionSignedDatasetPayload(dataset.EncodePending(d))
	if err != nil {
		return err
	}
	_, err = c.sendProxyRequestToLocator(ctx, pendingSetPath, leaderAloc16, payload)
	return err
}

// GetCommissionerDataset requests the Commissioner Dataset via the UDP
// proxy, merging the response into the cached copy.
func (c *Commissioner) GetCommissionerDataset(ctx context.Context, flags uint32) (*dataset.CommissionerDataset, error) {
	if c.State() != StateActive {
		return nil, coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	payload, err := c.signedPayload(buildGetTLVs(flags, commissionerFieldTLVTypes))
	if err != nil {
		return nil, err
	}
	resp, err := c.sendProxyRequestToLocator(ctx, commissionerGetPath, leaderAloc16, payload)
	if err != nil {
		return nil, err
	}
	fresh, err := dataset.DecodeCommissioner(resp.Payload)
	if err != nil {
		return nil, err
	}
	dataset.MergeCommissioner(&c.commissioner, fresh)
	out := c.commissioner
	return &out, nil
}

// SetCommissionerDataset writes d's populated fields (after stripping the
// read-only SessionID/BorderAgentLocator) via the UDP proxy.
func (c *Commissioner) SetCommissionerDataset(ctx context.Context, d *dataset.CommissionerDataset) error {
	if c.State() != StateActive {
		return coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	d.StripReadOnly()
	if d.PresentFlags == 0 {
		return coerr.New(coerr.InvalidArgs, "commissioner: SetCommissionerDataset has no fields left after stripping read-only ones")
	}

	payload, err := c.sessionSignedDatasetPayload(dataset.EncodeCommissioner(d))
	if err != nil {
		return err
	}
	_, err = c.sendProxyRequestToLocator(ctx, commissionerSetPath, leaderAloc16, payload)
	return err
}

// GetBBRDataset requests the Backbone-Router Dataset; CCM-mode only.
func (c *Commissioner) GetBBRDataset(ctx context.Context, flags uint32) (*dataset.BBRDataset, error) {
	if err := c.requireActiveCCM(); err != nil {
		return nil, err
	}
	payload, err := c.signedPayload(buildGetTLVs(flags, bbrFieldTLVTypes))
	if err != nil {
		return nil, err
	}
	resp, err := c.sendProxyRequestToLocator(ctx, bbrGetPath, leaderAloc16, payload)
	if err != nil {
		return nil, err
	}
	fresh, err := dataset.DecodeBBR(resp.Payload)
	if err != nil {
		return nil, err
	}
	dataset.MergeBBR(&c.bbr, fresh)
	out := c.bbr
	return &out, nil
}

// SetBBRDataset writes d (after stripping the read-only RegistrarIPv6Address);
// CCM-mode only.
func (c *Commissioner) SetBBRDataset(ctx context.Context, d *dataset.BBRDataset) error {
	if err := c.requireActiveCCM(); err != nil {
		return err
	}
	d.StripReadOnly()

	payload, err := c.sessionSignedDatasetPayload(dataset.EncodeBBR(d))
	if err != nil {
		return err
	}
	_, err = c.sendProxyRequestToLocator(ctx, bbrSetPath, leaderAloc16, payload)
	return err
}

func (c *Commissioner) requireActiveCCM() error {
	if c.State() != StateActive {
		return coerr.New(coerr.InvalidState, "commissioner: requires state Active, got %s", c.State())
	}
	if !c.cfg.EnableCCM {
		return coerr.New(coerr.InvalidState, "commissioner: this operation requires CCM mode")
	}
	return nil
}

// sendOuterRequest sends a confirmable/non-confirmable POST directly on the
// outer border-agent session (bypassing the UDP proxy).
func (c *Commissioner) sendOuterRequest(ctx context.Context, uriPath string, confirmable bool, payload []byte) (*coap.Message, error) {
	req := newRequest(uriPath, confirmable, payload)
	return awaitResponse(ctx, func(h coap.ResponseHandler) error {
		return c.outer.SendRequest(ctx, c.secure, req, h)
	})
}

// sendProxyRequestToLocator tunnels a confirmable POST through the UDP
// proxy to a Thread mesh locator (anycast or unicast RLOC16) on the default
// management port.
func (c *Commissioner) sendProxyRequestToLocator(ctx context.Context, uriPath string, locator uint16, payload []byte) (*coap.Message, error) {
	req := newRequest(uriPath, true, payload)
	resp, err := awaitResponse(ctx, func(h coap.ResponseHandler) error {
		return c.proxy.SendRequestToLocator(ctx, req, locator, defaultMmPort, h)
	})
	if err != nil {
		return nil, err
	}
	if err := checkCoapResponseCode(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// sendProxyRequest tunnels a confirmable (unicast) or non-confirmable
// (multicast) POST through the UDP proxy to an explicit address.
func (c *Commissioner) sendProxyRequest(ctx context.Context, uriPath string, dst address.Address, payload []byte) (*coap.Message, error) {
	confirmable := !dst.IsMulticast()
	req := newRequest(uriPath, confirmable, payload)
	resp, err := awaitResponse(ctx, func(h coap.ResponseHandler) error {
		return c.proxy.SendRequest(ctx, req, dst, defaultMmPort, h)
	})
	if err != nil || resp == nil {
		return resp, err
	}
	if err := checkCoapResponseCode(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Commissioner) signedPayload(tlvs []tlv.TLV) ([]byte, error) {
	signed, err := c.signRequest(tlvs, false)
	if err != nil {
		return nil, err
	}
	return tlv.EncodeAll(signed), nil
}

// sessionSignedDatasetPayload prepends the CommissionerSessionId TLV every
// dataset SET (but not GET) request carries, ahead of the dataset's own
// TLVs and the signature.
func (c *Commissioner) sessionSignedDatasetPayload(encoded []byte) ([]byte, error) {
	var sessBuf [2]byte
	sessBuf[0] = byte(c.sessionID >> 8)
	sessBuf[1] = byte(c.sessionID)

	tlvs := []tlv.TLV{{Type: tlv.TypeCommissionerSessionID, Value: sessBuf[:]}}
	rest, err := tlv.Decode(tlv.ScopeMeshCoP, encoded)
	if err != nil {
		return nil, err
	}
	tlvs = append(tlvs, rest...)
	return c.signedPayload(tlvs)
}
