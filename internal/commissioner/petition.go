package commissioner

import (
	"context"

	"github.com/openthread/otcommissioner/internal/coap"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/tlv"
)

const (
	stateAccept int8 = 1
	stateReject int8 = -1
)

// Petition sends MGMT_COMMISSIONER_PETITION.req to the border agent,
// identifying this commissioner by its configured ID. On acceptance the
// state transitions Connected -> Active and the keep-alive timer is armed;
// on rejection the existing commissioner's ID (if echoed) is discoverable
// via coerr.Rejected and the state reverts to Disabled.
func (c *Commissioner) Petition(ctx context.Context) error {
	if c.State() != StateConnected {
		return coerr.New(coerr.InvalidState, "commissioner: Petition requires state Connected, got %s", c.State())
	}
	c.setState(StatePetitioning)

	tlvs := []tlv.TLV{{Type: tlv.TypeCommissionerID, Value: []byte(c.cfg.ID)}}
	tlvs, err := c.signRequest(tlvs, true)
	if err != nil {
		c.setState(StateDisabled)
		return err
	}

	req := newRequest(petitionPath, true, tlv.EncodeAll(tlvs))
	resp, err := awaitResponse(ctx, func(h coap.ResponseHandler) error {
		return c.outer.SendRequest(ctx, c.secure, req, h)
	})
	if err != nil {
		c.setState(StateDisabled)
		return err
	}

	if err := c.handlePetitionResponse(resp); err != nil {
		c.setState(StateDisabled)
		return err
	}

	c.setState(StateActive)
	c.armKeepAlive()
	logger.Info("commissioner: petition accepted", "session_id", c.sessionID)
	return nil
}

func (c *Commissioner) handlePetitionResponse(resp *coap.Message) error {
	if err := checkCoapResponseCode(resp); err != nil {
		return err
	}
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, resp.Payload)
	if err != nil {
		return coerr.Wrap(coerr.BadFormat, err)
	}
	set := tlv.NewTlvSet(tlvs)

	stateTLV, ok := set.Get(tlv.TypeState)
	if !ok {
		return coerr.New(coerr.BadFormat, "commissioner: petition response missing State TLV")
	}
	if int8(stateTLV.Value[0]) != stateAccept {
		if existing, ok := set.Get(tlv.TypeCommissionerID); ok {
			return coerr.New(coerr.Rejected, "commissioner: petition rejected, existing commissioner id %q", string(existing.Value))
		}
		return coerr.New(coerr.Rejected, "commissioner: petition rejected")
	}

	sessTLV, ok := set.Get(tlv.TypeCommissionerSessionID)
	if !ok {
		return coerr.New(coerr.BadFormat, "commissioner: petition response missing CommissionerSessionId TLV")
	}
	c.sessionID = uint16(sessTLV.Value[0])<<8 | uint16(sessTLV.Value[1])
	return nil
}

// Resign sends a keep-alive carrying State=reject, stops the keep-alive
// timer, and unconditionally transitions to Disabled.
func (c *Commissioner) Resign(ctx context.Context) error {
	if c.State() == StateActive {
		_ = c.sendKeepAlive(ctx, false)
	}
	if c.keepAliveHandle != 0 {
		c.wheel.Cancel(c.keepAliveHandle)
		c.keepAliveHandle = 0
	}
	c.setState(StateDisabled)
	return nil
}

func (c *Commissioner) armKeepAlive() {
	c.keepAliveHandle = c.wheel.After(c.cfg.KeepAliveInterval, func() {
		ctx, cancel := withTimeout(context.Background(), c.cfg.KeepAliveInterval)
		defer cancel()
		if err := c.sendKeepAlive(ctx, true); err != nil {
			logger.Warn("commissioner: keep-alive failed, disconnecting", logger.Err(err))
			if c.handler.OnKeepAliveResponse != nil {
				c.handler.OnKeepAliveResponse(err)
			}
			c.Disconnect()
			return
		}
		if c.handler.OnKeepAliveResponse != nil {
			c.handler.OnKeepAliveResponse(nil)
		}
		c.armKeepAlive()
	})
}

// sendKeepAlive builds and sends MGMT_COMMISSIONER_KEEP_ALIVE.req. keepAlive
// selects State=accept (session renewal) versus State=reject (resign); the
// signature never carries the token TLV on this path, matching the
// original's SignRequest(..., /*appendToken=*/false) call for keep-alives.
func (c *Commissioner) sendKeepAlive(ctx context.Context, keepAlive bool) error {
	state := stateReject
	if keepAlive {
		state = stateAccept
	}
	var sessBuf [2]byte
	sessBuf[0] = byte(c.sessionID >> 8)
	sessBuf[1] = byte(c.sessionID)

	tlvs := []tlv.TLV{
		{Type: tlv.TypeState, Value: []byte{byte(state)}},
		{Type: tlv.TypeCommissionerSessionID, Value: sessBuf[:]},
	}
	tlvs, err := c.signRequest(tlvs, false)
	if err != nil {
		return err
	}

	req := newRequest(keepAlivePath, true, tlv.EncodeAll(tlvs))
	resp, err := awaitResponse(ctx, func(h coap.ResponseHandler) error {
		return c.outer.SendRequest(ctx, c.secure, req, h)
	})
	if err != nil {
		if !keepAlive && coerr.Is(err, coerr.Rejected) {
			// Expected: a reject-state keep-alive (a resign) is itself
			// answered with State=reject, which decodes as Rejected below.
			return nil
		}
		return err
	}

	if err := c.handleStateResponse(resp, true); err != nil {
		if !keepAlive && coerr.Is(err, coerr.Rejected) {
			return nil
		}
		return err
	}
	return nil
}

// handleStateResponse validates the CoAP response code and, when
// stateTlvMandatory, the State TLV; a non-Accept State decodes as
// coerr.Rejected.
func (c *Commissioner) handleStateResponse(resp *coap.Message, stateTlvMandatory bool) error {
	if err := checkCoapResponseCode(resp); err != nil {
		return err
	}
	tlvs, err := tlv.Decode(tlv.ScopeMeshCoP, resp.Payload)
	if err != nil {
		return coerr.Wrap(coerr.BadFormat, err)
	}
	set := tlv.NewTlvSet(tlvs)

	stateTLV, ok := set.Get(tlv.TypeState)
	if !ok {
		if stateTlvMandatory {
			return coerr.New(coerr.BadFormat, "commissioner: response missing State TLV")
		}
		return nil
	}
	if int8(stateTLV.Value[0]) != stateAccept {
		return coerr.New(coerr.Rejected, "commissioner: request rejected")
	}
	return nil
}
