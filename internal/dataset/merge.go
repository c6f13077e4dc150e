package dataset

// MergeActive updates dst field-by-field from src using src.PresentFlags:
// a GET response only carries the fields it was asked for, so any field
// whose bit is unset in src is left untouched in dst.
func MergeActive(dst, src *ActiveDataset) {
	if BitActiveTimestamp.Has(src.PresentFlags) {
		dst.ActiveTimestamp = src.ActiveTimestamp
		dst.PresentFlags = Set(dst.PresentFlags, BitActiveTimestamp)
	}
	if BitChannel.Has(src.PresentFlags) {
		dst.Channel = src.Channel
		dst.PresentFlags = Set(dst.PresentFlags, BitChannel)
	}
	if BitChannelMask.Has(src.PresentFlags) {
		dst.ChannelMask = src.ChannelMask
		dst.PresentFlags = Set(dst.PresentFlags, BitChannelMask)
	}
	if BitExtendedPANID.Has(src.PresentFlags) {
		dst.ExtendedPANID = src.ExtendedPANID
		dst.PresentFlags = Set(dst.PresentFlags, BitExtendedPANID)
	}
	if BitMeshLocalPrefix.Has(src.PresentFlags) {
		dst.MeshLocalPrefix = src.MeshLocalPrefix
		dst.PresentFlags = Set(dst.PresentFlags, BitMeshLocalPrefix)
	}
	if BitNetworkMasterKey.Has(src.PresentFlags) {
		dst.NetworkMasterKey = src.NetworkMasterKey
		dst.PresentFlags = Set(dst.PresentFlags, BitNetworkMasterKey)
	}
	if BitNetworkName.Has(src.PresentFlags) {
		dst.NetworkName = src.NetworkName
		dst.PresentFlags = Set(dst.PresentFlags, BitNetworkName)
	}
	if BitPANID.Has(src.PresentFlags) {
		dst.PANID = src.PANID
		dst.PresentFlags = Set(dst.PresentFlags, BitPANID)
	}
	if BitPSKc.Has(src.PresentFlags) {
		dst.PSKc = src.PSKc
		dst.PresentFlags = Set(dst.PresentFlags, BitPSKc)
	}
	if BitSecurityPolicy.Has(src.PresentFlags) {
		dst.SecurityPolicy = src.SecurityPolicy
		dst.PresentFlags = Set(dst.PresentFlags, BitSecurityPolicy)
	}
}

// MergePending merges the embedded ActiveDataset plus PendingTimestamp and
// DelayTimer, using the same preserve-if-absent rule.
func MergePending(dst, src *PendingDataset) {
	MergeActive(&dst.ActiveDataset, &src.ActiveDataset)
	if BitPendingTimestamp.Has(src.PresentFlags) {
		dst.PendingTimestamp = src.PendingTimestamp
		dst.PresentFlags = Set(dst.PresentFlags, BitPendingTimestamp)
	}
	if BitDelayTimer.Has(src.PresentFlags) {
		dst.DelayTimer = src.DelayTimer
		dst.PresentFlags = Set(dst.PresentFlags, BitDelayTimer)
	}
}

// MergeCommissioner merges a Commissioner dataset response into dst. Unlike
// every other dataset, SteeringData and JoinerUDPPort are *cleared* in dst
// when absent from src rather than preserved; see DESIGN.md for why this
// one dataset diverges from the usual preserve-if-absent rule used for
// everything else below.
func MergeCommissioner(dst, src *CommissionerDataset) {
	if BitCommissionerSessionID.Has(src.PresentFlags) {
		dst.SessionID = src.SessionID
		dst.PresentFlags = Set(dst.PresentFlags, BitCommissionerSessionID)
	}
	if BitBorderAgentLocator.Has(src.PresentFlags) {
		dst.BorderAgentLocator = src.BorderAgentLocator
		dst.PresentFlags = Set(dst.PresentFlags, BitBorderAgentLocator)
	}
	if BitCommissionerID.Has(src.PresentFlags) {
		dst.CommissionerID = src.CommissionerID
		dst.PresentFlags = Set(dst.PresentFlags, BitCommissionerID)
	}

	if BitSteeringData.Has(src.PresentFlags) {
		dst.SteeringData = src.SteeringData
		dst.PresentFlags = Set(dst.PresentFlags, BitSteeringData)
	} else {
		dst.SteeringData = nil
		dst.PresentFlags = Clear(dst.PresentFlags, BitSteeringData)
	}
	if BitJoinerUDPPort.Has(src.PresentFlags) {
		dst.JoinerUDPPort = src.JoinerUDPPort
		dst.PresentFlags = Set(dst.PresentFlags, BitJoinerUDPPort)
	} else {
		dst.JoinerUDPPort = 0
		dst.PresentFlags = Clear(dst.PresentFlags, BitJoinerUDPPort)
	}
}

// MergeBBR merges a Backbone-Router dataset response into dst, preserving
// absent fields as usual.
func MergeBBR(dst, src *BBRDataset) {
	if BitRegistrarIPv6Address.Has(src.PresentFlags) {
		dst.RegistrarIPv6Address = src.RegistrarIPv6Address
		dst.PresentFlags = Set(dst.PresentFlags, BitRegistrarIPv6Address)
	}
	if BitRegistrarHostName.Has(src.PresentFlags) {
		dst.RegistrarHostName = src.RegistrarHostName
		dst.PresentFlags = Set(dst.PresentFlags, BitRegistrarHostName)
	}
	if BitDomainName.Has(src.PresentFlags) {
		dst.DomainName = src.DomainName
		dst.PresentFlags = Set(dst.PresentFlags, BitDomainName)
	}
}
