// Package commissioner implements the commissioning state machine: petition,
// keep-alive, dataset management, and the management commands (announce,
// PAN-ID query, energy scan, multicast listener registration, CCM
// reenroll/domain-reset/migrate, network diagnostics) that an external
// Thread commissioner issues once it has petitioned a border agent.
package commissioner

import (
	"crypto/tls"
	"time"

	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/pkg/metrics"
)

// KeepAliveInterval bounds, enforced at config construction per the Open
// Question decision recorded in DESIGN.md: these bounds are never widened.
const (
	KeepAliveIntervalMin = 30 * time.Second
	KeepAliveIntervalMax = 45 * time.Second
)

const maxIDLength = 64
const maxDomainNameLength = 16

// Config configures a Commissioner before Connect is called. Either PSKc
// (non-CCM) or Certificate/TrustAnchor (CCM) must be set, matching the two
// DTLS cipher-suite families the secure session advertises.
type Config struct {
	ID                string
	EnableCCM         bool
	DomainName        string
	KeepAliveInterval time.Duration
	MaxConnectionNum  int

	// PSKc authenticates the border-agent handshake in non-CCM mode.
	PSKc [16]byte

	// CCM-mode (domain) identity.
	PrivateKey  *tls.Certificate
	TrustAnchor [][]byte

	// CommissionerToken is an optional, externally-obtained COM_TOK bound
	// to PrivateKey's certificate; if absent, the first signed request in a
	// session also carries the freshly-issued token.
	CommissionerToken []byte

	ProxyMode              bool
	EnableDTLSDebugLogging bool

	// Metrics, when set, wires observability into the CoAP engines, secure
	// sessions, and joiner-proxy subsystem Connect builds. A zero-valued
	// Metrics (every field nil) disables collection with zero overhead,
	// matching every individual component's own nil-means-disabled
	// convention.
	Metrics Metrics
}

// Metrics groups the optional observability sinks Connect wires into the
// subsystems it builds.
type Metrics struct {
	Coap    metrics.CoapMetrics
	Session metrics.SessionMetrics
	Joiner  metrics.JoinerMetrics
}

// Validate checks the field constraints enumerated for configuration, and
// fills KeepAliveInterval with its default when unset.
func (c *Config) Validate() error {
	if len(c.ID) == 0 || len(c.ID) > maxIDLength {
		return coerr.New(coerr.InvalidArgs, "commissioner: id must be 1..%d bytes", maxIDLength)
	}
	if c.EnableCCM {
		if len(c.DomainName) == 0 || len(c.DomainName) > maxDomainNameLength {
			return coerr.New(coerr.InvalidArgs, "commissioner: domain_name must be 1..%d bytes in CCM mode", maxDomainNameLength)
		}
		if c.PrivateKey == nil || len(c.TrustAnchor) == 0 {
			return coerr.New(coerr.InvalidArgs, "commissioner: certificate and trust_anchor are required in CCM mode")
		}
	} else if c.PSKc == ([16]byte{}) {
		return coerr.New(coerr.InvalidArgs, "commissioner: pskc is required when CCM is disabled")
	}

	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = KeepAliveIntervalMin
	}
	if c.KeepAliveInterval < KeepAliveIntervalMin || c.KeepAliveInterval > KeepAliveIntervalMax {
		return coerr.New(coerr.InvalidArgs, "commissioner: keep_alive_interval must be within [%s, %s]", KeepAliveIntervalMin, KeepAliveIntervalMax)
	}
	return nil
}

// State is a Commissioner's lifecycle stage.
type State uint8

const (
	StateDisabled State = iota
	StateConnected
	StatePetitioning
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateConnected:
		return "connected"
	case StatePetitioning:
		return "petitioning"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}
