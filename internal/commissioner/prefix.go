package commissioner

import (
	"context"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/dataset"
	"github.com/openthread/otcommissioner/internal/tlv"
)

// fetchMeshLocalPrefix implements udpproxy.MeshLocalPrefixFetcher: it asks
// for MeshLocalPrefix alone, directly on the outer border-agent session,
// since the proxy that would otherwise carry this request needs the very
// prefix it is fetching to address the mesh.
func (c *Commissioner) fetchMeshLocalPrefix(ctx context.Context, done func(prefix [8]byte, err error)) {
	payload := tlv.EncodeAll(buildGetTLVs(dataset.BitMeshLocalPrefix, activeFieldTLVTypes))
	resp, err := c.sendOuterRequest(ctx, activeGetPath, true, payload)
	if err != nil {
		done([8]byte{}, err)
		return
	}
	fresh, err := dataset.DecodeActive(resp.Payload)
	if err != nil {
		done([8]byte{}, err)
		return
	}
	if !dataset.BitMeshLocalPrefix.Has(fresh.PresentFlags) {
		done([8]byte{}, coerr.New(coerr.BadFormat, "commissioner: border agent did not report a mesh-local prefix"))
		return
	}
	dataset.MergeActive(&c.active, fresh)
	done(fresh.MeshLocalPrefix, nil)
}
