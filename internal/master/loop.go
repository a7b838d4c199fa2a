package master

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/observability"
	"github.com/danmuck/unimaster/internal/oid"
	"github.com/danmuck/unimaster/internal/session"
	"github.com/danmuck/unimaster/internal/transport"
	"github.com/danmuck/unimaster/internal/universe"
)

const (
	// logFlushTicks is the cadence for flushing the buffered log sink.
	logFlushTicks = 900
	// storagePingTicks keeps the database handle and the master endpoint
	// row fresh.
	storagePingTicks = 40000
	// universeShutdownTicks is the grace countdown between a
	// ShutdownUniverse packet and the loop exiting.
	universeShutdownTicks = 40000
	// shutdownCeilingTicks bounds how long the shutdown sequence waits for
	// instances to confirm before giving up.
	shutdownCeilingTicks = 3600
)

// Flusher is the optional buffered log sink flushed on cadence.
type Flusher interface {
	Flush() error
}

// Pinger is the storage keep-alive the loop touches on cadence.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Loop is the single-threaded heart of the master: it drains the transport,
// ages affirmations, sweeps dead instances, and runs the shutdown sequence.
type Loop struct {
	transport  transport.Transport
	dispatcher *Dispatcher
	registry   *universe.Registry
	engine     *universe.Engine
	sessions   *session.Registry
	allocator  *oid.Allocator
	flusher    Flusher
	pinger     Pinger

	period time.Duration

	tick              int
	shutdownRequested bool
	shutdownCountdown int
}

func NewLoop(
	tp transport.Transport,
	dispatcher *Dispatcher,
	registry *universe.Registry,
	engine *universe.Engine,
	sessions *session.Registry,
	allocator *oid.Allocator,
	flusher Flusher,
	pinger Pinger,
	period time.Duration,
) *Loop {
	if period <= 0 {
		period = 16 * time.Millisecond
	}
	return &Loop{
		transport:  tp,
		dispatcher: dispatcher,
		registry:   registry,
		engine:     engine,
		sessions:   sessions,
		allocator:  allocator,
		flusher:    flusher,
		pinger:     pinger,
		period:     period,
	}
}

// RequestUniverseShutdown starts the cluster shutdown countdown. Repeat
// requests do not restart it.
func (l *Loop) RequestUniverseShutdown() {
	if l.shutdownRequested {
		return
	}
	l.shutdownRequested = true
	l.shutdownCountdown = universeShutdownTicks
	log.Info().Msgf("master.loop universe shutdown in %d ticks", l.shutdownCountdown)
}

// Tick runs one loop iteration. done reports that the loop should exit; a
// non-nil error is fatal.
func (l *Loop) Tick(ctx context.Context) (done bool, err error) {
	if err := l.drain(ctx); err != nil {
		return false, err
	}

	l.tick++
	if l.flusher != nil && l.tick%logFlushTicks == 0 {
		if err := l.flusher.Flush(); err != nil {
			log.Warn().Msgf("master.loop log flush failed err=%v", err)
		}
	}
	if l.pinger != nil && l.tick%storagePingTicks == 0 {
		if err := l.pinger.Ping(ctx); err != nil {
			log.Warn().Msgf("master.loop storage ping failed err=%v", err)
		}
	}

	if l.shutdownRequested {
		l.shutdownCountdown--
		if l.shutdownCountdown <= 0 {
			log.Info().Msgf("master.loop universe shutdown countdown elapsed")
			return true, nil
		}
	}

	l.engine.TickAffirmations()
	l.engine.Sweep()
	l.publishGauges()
	return false, nil
}

// Run drives Tick at the configured period until the context is cancelled,
// the shutdown countdown elapses, or a fatal dispatch error occurs.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("master.loop interrupted")
			return nil
		case <-ticker.C:
			done, err := l.Tick(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// ShutdownSequence tells every instance to stop, persists the allocator
// mark, and keeps pumping packets until every instance confirms or the
// ceiling is hit. It ignores context cancellation deliberately: it is what
// runs AFTER the interrupt.
func (l *Loop) ShutdownSequence(ctx context.Context) {
	l.registry.BeginShutdown()
	for _, in := range l.registry.All() {
		l.engine.SignalShutdown(in)
	}
	if err := l.allocator.Flush(ctx); err != nil {
		log.Error().Msgf("master.loop allocator flush failed err=%v", err)
	}

	for i := 0; i < shutdownCeilingTicks; i++ {
		if err := l.drain(ctx); err != nil {
			log.Error().Msgf("master.loop shutdown drain failed err=%v", err)
		}
		l.engine.Sweep()
		if l.registry.Count() == 0 {
			log.Info().Msgf("master.loop all instances confirmed shutdown")
			return
		}
		time.Sleep(l.period)
	}
	log.Warn().Msgf("master.loop shutdown ceiling hit, %d instances unconfirmed", l.registry.Count())
}

func (l *Loop) drain(ctx context.Context) error {
	for {
		pkt, ok := l.transport.Poll()
		if !ok {
			return nil
		}
		if err := l.dispatcher.HandlePacket(ctx, pkt); err != nil {
			return err
		}
	}
}

func (l *Loop) publishGauges() {
	observability.SetInstancesLive(l.registry.Count())
	pending := 0
	for _, in := range l.registry.All() {
		pending += in.PendingAffirmations()
	}
	observability.SetAffirmationsPending(pending)
	observability.SetSessionsActive(l.sessions.Count())
}
