// Package facade wraps internal/commissioner.Commissioner behind a
// thread-safe boundary: exactly one goroutine (the reactor) ever touches
// the Commissioner, and every public method here is safe to call from any
// goroutine concurrently. Synchronous methods enqueue a closure and block
// on a one-shot result channel; asynchronous variants enqueue a closure
// that invokes the caller's callback exactly once and return immediately.
package facade

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/openthread/otcommissioner/internal/address"
	"github.com/openthread/otcommissioner/internal/commissioner"
	"github.com/openthread/otcommissioner/internal/coerr"
	"github.com/openthread/otcommissioner/internal/dataset"
	"github.com/openthread/otcommissioner/internal/joiner"
)

// Config is commissioner.Config, re-exported so callers need import only
// this package to construct a Facade.
type Config = commissioner.Config

// Handler is commissioner.Handler, re-exported for the same reason.
type Handler = commissioner.Handler

// job is a closure submitted to the reactor. Exactly one goroutine ever
// runs job.fn, in submission order.
type job struct {
	fn func()
}

// Facade is the multi-producer single-consumer entry point onto a
// Commissioner: any number of caller goroutines may submit jobs, but only
// the reactor goroutine spawned by New ever drains them.
type Facade struct {
	core *commissioner.Commissioner

	queue  chan job
	closed chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New constructs a Commissioner in state Disabled and starts its reactor
// goroutine. Call Close to stop the reactor once the Facade is no longer
// needed; an open Facade whose Commissioner is still Connected should be
// Disconnected first.
func New(cfg Config, handler Handler) (*Facade, error) {
	core, err := commissioner.New(cfg, handler)
	if err != nil {
		return nil, err
	}

	f := &Facade{
		core:   core,
		queue:  make(chan job, 64),
		closed: make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f, nil
}

// run is the reactor: the only goroutine that ever invokes methods on the
// wrapped Commissioner. Jobs run strictly in submission order; a job that
// blocks (e.g. awaiting a CoAP response) delays every job queued after it,
// matching the "single event-loop thread" ordering guarantee.
func (f *Facade) run() {
	defer f.wg.Done()
	for {
		select {
		case j := <-f.queue:
			j.fn()
		case <-f.closed:
			f.drain()
			return
		}
	}
}

// drain runs every job still queued at Close time to completion, so a
// caller blocked in a Sync* call unblocks with a real result instead of
// hanging forever.
func (f *Facade) drain() {
	for {
		select {
		case j := <-f.queue:
			j.fn()
		default:
			return
		}
	}
}

// Close stops the reactor. Jobs already queued are run (allowing an
// in-flight Disconnect to complete); jobs submitted after Close returns an
// error instead of blocking forever.
func (f *Facade) Close() {
	f.closeOnce.Do(func() {
		close(f.closed)
	})
	f.wg.Wait()
}

// submitSync enqueues fn and blocks the calling goroutine until the reactor
// has run it, returning its result. ctx cancellation unblocks the caller
// with coerr.Cancelled but does not remove fn from the queue; the reactor
// still runs it (and discards the result) to keep queue order intact.
func submitSync[T any](ctx context.Context, f *Facade, fn func() (T, error)) (T, error) {
	var zero T
	done := make(chan struct {
		val T
		err error
	}, 1)

	select {
	case <-f.closed:
		return zero, coerr.New(coerr.InvalidState, "facade: reactor is closed")
	default:
	}

	select {
	case f.queue <- job{fn: func() {
		val, err := fn()
		done <- struct {
			val T
			err error
		}{val, err}
	}}:
	case <-f.closed:
		return zero, coerr.New(coerr.InvalidState, "facade: reactor is closed")
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, coerr.Wrap(coerr.Cancelled, ctx.Err())
	}
}

// submitAsync enqueues fn and returns immediately; the reactor runs fn and
// invokes the caller-supplied callback exactly once with its result.
func submitAsync[T any](f *Facade, fn func() (T, error), callback func(T, error)) {
	j := job{fn: func() {
		val, err := fn()
		if callback != nil {
			callback(val, err)
		}
	}}
	select {
	case <-f.closed:
		if callback != nil {
			var zero T
			callback(zero, coerr.New(coerr.InvalidState, "facade: reactor is closed"))
		}
		return
	default:
	}
	select {
	case f.queue <- j:
	case <-f.closed:
		if callback != nil {
			var zero T
			callback(zero, coerr.New(coerr.InvalidState, "facade: reactor is closed"))
		}
	}
}

// State reports the Commissioner's current lifecycle stage. Reading state
// does not mutate it, so this bypasses the queue rather than waiting
// behind any in-flight job.
func (f *Facade) State() commissioner.State {
	return f.core.State()
}

// Connect opens the DTLS association with the border agent at addr:port.
func (f *Facade) Connect(ctx context.Context, addr string, port uint16) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.Connect(ctx, addr, port)
	})
	return err
}

// ConnectAsync is the asynchronous form of Connect; done is invoked exactly
// once with the result.
func (f *Facade) ConnectAsync(ctx context.Context, addr string, port uint16, done func(error)) {
	submitAsync(f, func() (struct{}, error) {
		return struct{}{}, f.core.Connect(ctx, addr, port)
	}, func(_ struct{}, err error) {
		if done != nil {
			done(err)
		}
	})
}

// Disconnect tears down the session unconditionally.
func (f *Facade) Disconnect(ctx context.Context) {
	_, _ = submitSync(ctx, f, func() (struct{}, error) {
		f.core.Disconnect()
		return struct{}{}, nil
	})
}

// Petition sends MGMT_COMMISSIONER_PETITION.req.
func (f *Facade) Petition(ctx context.Context) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.Petition(ctx)
	})
	return err
}

// PetitionAsync is the asynchronous form of Petition.
func (f *Facade) PetitionAsync(ctx context.Context, done func(error)) {
	submitAsync(f, func() (struct{}, error) {
		return struct{}{}, f.core.Petition(ctx)
	}, func(_ struct{}, err error) {
		if done != nil {
			done(err)
		}
	})
}

// Resign sends a keep-alive carrying State=reject and returns to Disabled.
func (f *Facade) Resign(ctx context.Context) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.Resign(ctx)
	})
	return err
}

// GetActiveDataset fetches the subset of the active dataset named by flags.
func (f *Facade) GetActiveDataset(ctx context.Context, flags uint32) (*dataset.ActiveDataset, error) {
	return submitSync(ctx, f, func() (*dataset.ActiveDataset, error) {
		return f.core.GetActiveDataset(ctx, flags)
	})
}

// SetActiveDataset pushes a new active dataset to the network.
func (f *Facade) SetActiveDataset(ctx context.Context, d *dataset.ActiveDataset) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.SetActiveDataset(ctx, d)
	})
	return err
}

// SetActiveDatasetAsync is the asynchronous form of SetActiveDataset.
func (f *Facade) SetActiveDatasetAsync(ctx context.Context, d *dataset.ActiveDataset, done func(error)) {
	submitAsync(f, func() (struct{}, error) {
		return struct{}{}, f.core.SetActiveDataset(ctx, d)
	}, func(_ struct{}, err error) {
		if done != nil {
			done(err)
		}
	})
}

// GetPendingDataset fetches the subset of the pending dataset named by flags.
func (f *Facade) GetPendingDataset(ctx context.Context, flags uint32) (*dataset.PendingDataset, error) {
	return submitSync(ctx, f, func() (*dataset.PendingDataset, error) {
		return f.core.GetPendingDataset(ctx, flags)
	})
}

// SetPendingDataset pushes a new pending dataset to the network.
func (f *Facade) SetPendingDataset(ctx context.Context, d *dataset.PendingDataset) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.SetPendingDataset(ctx, d)
	})
	return err
}

// GetCommissionerDataset fetches the subset of the commissioner dataset
// named by flags.
func (f *Facade) GetCommissionerDataset(ctx context.Context, flags uint32) (*dataset.CommissionerDataset, error) {
	return submitSync(ctx, f, func() (*dataset.CommissionerDataset, error) {
		return f.core.GetCommissionerDataset(ctx, flags)
	})
}

// SetCommissionerDataset pushes a new commissioner dataset to the border
// agent.
func (f *Facade) SetCommissionerDataset(ctx context.Context, d *dataset.CommissionerDataset) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.SetCommissionerDataset(ctx, d)
	})
	return err
}

// GetBBRDataset fetches the subset of the BBR (CCM) dataset named by flags.
func (f *Facade) GetBBRDataset(ctx context.Context, flags uint32) (*dataset.BBRDataset, error) {
	return submitSync(ctx, f, func() (*dataset.BBRDataset, error) {
		return f.core.GetBBRDataset(ctx, flags)
	})
}

// SetBBRDataset pushes a new BBR dataset to the network.
func (f *Facade) SetBBRDataset(ctx context.Context, d *dataset.BBRDataset) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.SetBBRDataset(ctx, d)
	})
	return err
}

// AnnounceBegin sends MGMT_ANNOUNCE_BEGIN.req.
func (f *Facade) AnnounceBegin(ctx context.Context, channelMask uint32, count uint8, period uint16, dst address.Address) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.AnnounceBegin(ctx, channelMask, count, period, dst)
	})
	return err
}

// PanIdQuery sends MGMT_PANID_QUERY.req. Results arrive via
// Handler.OnPanIdConflict, not through this method's return value.
func (f *Facade) PanIdQuery(ctx context.Context, channelMask uint32, panID uint16, dst address.Address) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.PanIdQuery(ctx, channelMask, panID, dst)
	})
	return err
}

// EnergyScan sends MGMT_ED_SCAN.req. Results arrive via
// Handler.OnEnergyReport.
func (f *Facade) EnergyScan(ctx context.Context, channelMask uint32, count uint8, period, scanDuration uint16, dst address.Address) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.EnergyScan(ctx, channelMask, count, period, scanDuration, dst)
	})
	return err
}

// RegisterMulticastListener sends MLR.req to the primary Backbone Router.
func (f *Facade) RegisterMulticastListener(ctx context.Context, addrs []address.Address, timeout time.Duration) (uint8, error) {
	return submitSync(ctx, f, func() (uint8, error) {
		return f.core.RegisterMulticastListener(ctx, addrs, timeout)
	})
}

// CommandReenroll asks a CCM-joined device at dst to re-run Enrollment.
func (f *Facade) CommandReenroll(ctx context.Context, dst address.Address) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.CommandReenroll(ctx, dst)
	})
	return err
}

// CommandDomainReset asks a CCM-joined device at dst to clear its domain
// membership.
func (f *Facade) CommandDomainReset(ctx context.Context, dst address.Address) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.CommandDomainReset(ctx, dst)
	})
	return err
}

// CommandMigrate asks a CCM-joined device at dst to migrate into
// dstNetworkName.
func (f *Facade) CommandMigrate(ctx context.Context, dst address.Address, dstNetworkName string) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.CommandMigrate(ctx, dst, dstNetworkName)
	})
	return err
}

// DiagGetQuery sends DIAG_GET.qry. Answers arrive via
// Handler.OnDiagGetAnswer, one per responding router.
func (f *Facade) DiagGetQuery(ctx context.Context, dst address.Address, diagTypes []uint8) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.DiagGetQuery(ctx, dst, diagTypes)
	})
	return err
}

// DiagGetReset asks routers to clear the named diagnostic counters/records.
func (f *Facade) DiagGetReset(ctx context.Context, dst address.Address, diagTypes []uint8) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.DiagGetReset(ctx, dst, diagTypes)
	})
	return err
}

// JoinerSession reports the in-progress joiner-proxy session for joinerID,
// if one currently exists. Reading the session map does not mutate it, so
// like State this bypasses the queue.
func (f *Facade) JoinerSession(joinerID []byte) (*joiner.Session, bool) {
	return f.core.JoinerSession(joinerID)
}

// RemoveJoinerSession discards the in-progress joiner-proxy session for
// joinerID, if any.
func (f *Facade) RemoveJoinerSession(ctx context.Context, joinerID []byte) {
	_, _ = submitSync(ctx, f, func() (struct{}, error) {
		f.core.RemoveJoinerSession(joinerID)
		return struct{}{}, nil
	})
}

// SetCCMCredentials replaces the CCM certificate and trust anchor in use,
// for picking up a rotated certificate detected by a config-file watcher
// without restarting the process.
func (f *Facade) SetCCMCredentials(ctx context.Context, cert *tls.Certificate, trustAnchor [][]byte) error {
	_, err := submitSync(ctx, f, func() (struct{}, error) {
		return struct{}{}, f.core.SetCCMCredentials(cert, trustAnchor)
	})
	return err
}
