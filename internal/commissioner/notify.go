package commissioner

import (
	"context"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/dataset"
	"github.com/openthread/otcommissioner/internal/meshcop"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// handleDatasetChanged serves MGMT_DATASET_CHANGED.ntf: the leader tells the
// commissioner its cached mesh-local prefix may be stale, so the proxy's
// cached copy is dropped and lazily refetched on the next proxied send.
func (c *Commissioner) handleDatasetChanged(_ context.Context, _ *coap.Message) (*coap.Message, error) {
	c.proxy.ClearMeshLocalPrefix()
	if c.handler.OnDatasetChanged != nil {
		c.handler.OnDatasetChanged()
	}
	return nil, nil
}

// handlePanIdConflict serves MGMT_PANID_CONFLICT.ans: ChannelMask and PanId
// are both mandatory.
func (c *Commissioner) handlePanIdConflict(_ context.Context, req *coap.Message) (*coap.Message, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, req.Payload)
	if err != nil {
		return nil, coerr.Wrap(coerr.BadFormat, err)
	}
	set := tlv.NewTlvSet(tlvs)

	maskTLV, ok := set.Get(tlv.TypeChannelMask)
	if !ok {
		return nil, coerr.New(coerr.BadFormat, "commissioner: PAN ID conflict notification missing ChannelMask TLV")
	}
	mask, err := meshcop.DecodeChannelMask(maskTLV.Value)
	if err != nil {
		return nil, coerr.Wrap(coerr.BadFormat, err)
	}

	panTLV, ok := set.Get(tlv.TypePANID)
	if !ok || len(panTLV.Value) != 2 {
		return nil, coerr.New(coerr.BadFormat, "commissioner: PAN ID conflict notification missing PanId TLV")
	}
	panID := uint16(panTLV.Value[0])<<8 | uint16(panTLV.Value[1])

	if c.handler.OnPanIdConflict != nil {
		c.handler.OnPanIdConflict(fromMeshcopChannelMask(mask), panID)
	}
	return nil, nil
}

// handleEnergyReport serves MGMT_ED_REPORT.ans: ChannelMask and EnergyList
// are both optional, so a missing pair is simply reported empty.
func (c *Commissioner) handleEnergyReport(_ context.Context, req *coap.Message) (*coap.Message, error) {
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, req.Payload)
	if err != nil {
		return nil, coerr.Wrap(coerr.BadFormat, err)
	}
	set := tlv.NewTlvSet(tlvs)

	var mask []dataset.ChannelMaskEntry
	if maskTLV, ok := set.Get(tlv.TypeChannelMask); ok {
		decoded, err := meshcop.DecodeChannelMask(maskTLV.Value)
		if err != nil {
			return nil, coerr.Wrap(coerr.BadFormat, err)
		}
		mask = fromMeshcopChannelMask(decoded)
	}

	var energy []int8
	if energyTLV, ok := set.Get(tlv.TypeEnergyList); ok {
		energy = make([]int8, len(energyTLV.Value))
		for i, v := range energyTLV.Value {
			energy[i] = int8(v)
		}
	}

	if c.handler.OnEnergyReport != nil {
		c.handler.OnEnergyReport(mask, energy)
	}
	return nil, nil
}

// handleDiagGetAnswer serves DIAG_GET.ans, the unsolicited reply a multicast
// DiagGetQuery elicits from each responding router.
func (c *Commissioner) handleDiagGetAnswer(_ context.Context, req *coap.Message) (*coap.Message, error) {
	diag, err := meshcop.DecodeNetworkDiagTlvs(req.Payload)
	if err != nil {
		return nil, coerr.Wrap(coerr.BadFormat, err)
	}
	if c.handler.OnDiagGetAnswer != nil {
		c.handler.OnDiagGetAnswer(diag)
	}
	return nil, nil
}

func fromMeshcopChannelMask(entries []meshcop.ChannelMaskEntry) []dataset.ChannelMaskEntry {
	out := make([]dataset.ChannelMaskEntry, len(entries))
	for i, e := range entries {
		out[i] = dataset.ChannelMaskEntry{Page: e.Page, Mask: e.Mask}
	}
	return out
}
