package universe

import (
	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/observability"
	"github.com/danmuck/unimaster/internal/protocol"
	"github.com/danmuck/unimaster/internal/transport"
)

// DefaultAffirmTimeoutTicks is how many consecutive ticks an instance may
// sit on unaffirmed transfers before it is forced down and its work
// redirected.
const DefaultAffirmTimeoutTicks = 1000

// Engine runs the zone-transfer affirmation handshake and its timeout
// policy over instances held by the Registry.
type Engine struct {
	registry *Registry
	sender   transport.Sender

	timeoutTicks int
}

func NewEngine(registry *Registry, sender transport.Sender) *Engine {
	return &Engine{
		registry:     registry,
		sender:       sender,
		timeoutTicks: DefaultAffirmTimeoutTicks,
	}
}

// SetTimeoutTicks overrides the affirmation timeout threshold.
func (e *Engine) SetTimeoutTicks(n int) {
	if n > 0 {
		e.timeoutTicks = n
	}
}

// RequestTransfer routes one transfer toward a live instance for
// (zone, clone): queued if the target is not ready, affirmed immediately
// otherwise. Returns nil once cluster shutdown has begun.
func (e *Engine) RequestTransfer(zone, clone uint32, req TransferRequest) (*Instance, error) {
	in, err := e.registry.GetOrCreate(zone, clone)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, nil
	}
	if !in.Ready {
		in.QueueRequest(req)
		log.Debug().Msgf("universe.engine queued request=%d zone=%d clone=%d instance=%d", req.ID, zone, clone, in.InstanceID)
		return in, nil
	}
	e.affirm(in, req)
	return in, nil
}

// ReadyInstance marks an instance ready and promotes its queued requests to
// affirming in FIFO order. A repeat call with an empty queue is a no-op.
func (e *Engine) ReadyInstance(in *Instance) {
	in.Ready = true
	for _, req := range in.drainPending() {
		e.affirm(in, req)
	}
}

// AffirmTransfer completes bookkeeping for one affirmed request and hands
// the original request back so the caller can answer the requester.
func (e *Engine) AffirmTransfer(in *Instance, requestID uint64) (TransferRequest, bool) {
	return in.takeAffirmation(requestID)
}

// SignalShutdown asks an instance to stop and marks it shutting down.
func (e *Engine) SignalShutdown(in *Instance) {
	if in.ShuttingDown {
		return
	}
	in.ShuttingDown = true
	if in.Peer == "" {
		return
	}
	if err := e.sender.Send(in.Peer, protocol.EncodeShutdown()); err != nil {
		log.Warn().Msgf("universe.engine shutdown send failed zone=%d instance=%d err=%v", in.ZoneID, in.InstanceID, err)
	}
}

// TickAffirmations ages every instance with unaffirmed transfers and forces
// down the ones that crossed the threshold, redirecting their work.
// Decisions are collected during iteration and applied after, because the
// redirect itself mutates the registry.
func (e *Engine) TickAffirmations() {
	var expired []*Instance
	for _, in := range e.registry.All() {
		if in.PendingAffirmations() == 0 {
			in.affirmationTicks = 0
			continue
		}
		in.affirmationTicks++
		if in.affirmationTicks >= e.timeoutTicks && !in.ShuttingDown {
			expired = append(expired, in)
		}
	}
	for _, in := range expired {
		log.Warn().Msgf("universe.engine affirmation timeout zone=%d clone=%d instance=%d pending=%d", in.ZoneID, in.CloneID, in.InstanceID, in.PendingAffirmations())
		e.SignalShutdown(in)
		e.redirect(in)
	}
}

// Sweep removes every instance that confirmed shutdown.
func (e *Engine) Sweep() {
	for _, in := range e.registry.All() {
		if in.ShutdownComplete() {
			e.Remove(in)
		}
	}
}

// Remove drains an instance's queues back into the cluster, then discards
// it. Redirect always precedes removal, no matter which path got here.
func (e *Engine) Remove(in *Instance) {
	// Still registered while its queues drain; the flag keeps redirect from
	// picking it as its own substitute.
	in.ShuttingDown = true
	e.redirect(in)
	e.registry.detach(in)
	log.Info().Msgf("universe.engine removed zone=%d clone=%d instance=%d port=%d", in.ZoneID, in.CloneID, in.InstanceID, in.Port)
}

// redirect re-queues all queued and affirming work onto substitutes for the
// same (zone, clone). Requests are dropped only when the whole cluster is
// shutting down.
func (e *Engine) redirect(in *Instance) {
	reqs := in.drainPending()
	reqs = append(reqs, in.drainAffirmations()...)
	if len(reqs) == 0 {
		return
	}
	for _, req := range reqs {
		sub, err := e.RequestTransfer(in.ZoneID, in.CloneID, req)
		if err != nil {
			log.Error().Msgf("universe.engine redirect failed request=%d zone=%d err=%v", req.ID, in.ZoneID, err)
			continue
		}
		if sub == nil {
			log.Warn().Msgf("universe.engine redirect dropped request=%d zone=%d shutdown in progress", req.ID, in.ZoneID)
		}
	}
	observability.RecordRedirects(len(reqs))
}

func (e *Engine) affirm(in *Instance, req TransferRequest) {
	in.addAffirmation(req)
	if err := e.sender.Send(in.Peer, protocol.AffirmTransferRequest{RequestID: req.ID}.Encode()); err != nil {
		log.Warn().Msgf("universe.engine affirm send failed request=%d zone=%d instance=%d err=%v", req.ID, in.ZoneID, in.InstanceID, err)
	}
}
