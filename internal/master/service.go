package master

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/config"
	"github.com/danmuck/unimaster/internal/launcher"
	"github.com/danmuck/unimaster/internal/observability"
	"github.com/danmuck/unimaster/internal/oid"
	"github.com/danmuck/unimaster/internal/session"
	"github.com/danmuck/unimaster/internal/storage"
	"github.com/danmuck/unimaster/internal/tools"
	"github.com/danmuck/unimaster/internal/transport"
	"github.com/danmuck/unimaster/internal/universe"
)

const serverVersion = "0.1.0"

// Service owns every master collaborator and the loop that drives them.
type Service struct {
	cfg       config.Config
	store     *storage.Store
	transport *transport.TCPTransport
	loop      *Loop
}

// NewService opens storage, binds the control listener, registers the
// master's own endpoint row, and wires the core together. Any failure here
// is fatal to the process.
func NewService(ctx context.Context, cfg config.Config, flusher Flusher) (*Service, error) {
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	allocator, err := oid.New(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tp, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("master: listen %s: %w", cfg.ListenAddr, err)
	}

	port := uint32(0)
	if addr, ok := tp.LocalAddr().(*net.TCPAddr); ok {
		port = uint32(addr.Port)
	}
	if err := store.UpsertServer(ctx, "master", cfg.ExternalIP, port, 0, serverVersion); err != nil {
		_ = tp.Close()
		_ = store.Close()
		return nil, err
	}

	launch := launcher.New(tools.ExecSpawner{}, launcher.Commands{
		World: cfg.Commands.World,
		Chat:  cfg.Commands.Chat,
		Auth:  cfg.Commands.Auth,
	})
	registry := universe.NewRegistry(universe.Config{
		ExternalIP:    cfg.ExternalIP,
		WorldPortBase: cfg.WorldPortBase,
		SoftCap:       cfg.SoftCap,
		HardCap:       cfg.HardCap,
	}, launch)
	engine := universe.NewEngine(registry, tp)
	sessions := session.NewRegistry()

	dispatcher := NewDispatcher(registry, engine, sessions, allocator, launch, tp)
	loop := NewLoop(tp, dispatcher, registry, engine, sessions, allocator, flusher, store, cfg.TickPeriod())
	dispatcher.onUniverseShutdown = loop.RequestUniverseShutdown

	s := &Service{cfg: cfg, store: store, transport: tp, loop: loop}
	if cfg.PrestartServers {
		s.prestart(launch, registry)
	}
	log.Info().Msgf("master.service ready addr=%s db=%s", tp.LocalAddr(), cfg.DatabasePath)
	return s, nil
}

// prestart launches the auth and chat services and seeds one not-ready
// instance per configured zone.
func (s *Service) prestart(launch *launcher.Launcher, registry *universe.Registry) {
	if err := launch.LaunchAuth(); err != nil {
		log.Error().Msgf("master.service auth prestart failed err=%v", err)
	}
	if err := launch.LaunchChat(); err != nil {
		log.Error().Msgf("master.service chat prestart failed err=%v", err)
	}
	for _, zone := range s.cfg.PrestartZones {
		if _, err := registry.Create(zone, 0, "", 0); err != nil {
			log.Error().Msgf("master.service zone prestart failed zone=%d err=%v", zone, err)
		}
	}
}

// Run serves until the context is cancelled or the cluster shuts down, then
// runs the shutdown sequence and releases every resource.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		if err := s.transport.Serve(ctx); err != nil {
			log.Error().Msgf("master.service transport stopped err=%v", err)
		}
	}()
	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := observability.ServeAdmin(ctx, s.cfg.MetricsAddr); err != nil {
				log.Error().Msgf("master.service admin endpoint failed err=%v", err)
			}
		}()
	}

	err := s.loop.Run(ctx)
	s.loop.ShutdownSequence(context.Background())

	if cerr := s.transport.Close(); cerr != nil {
		log.Warn().Msgf("master.service transport close failed err=%v", cerr)
	}
	if cerr := s.store.Close(); cerr != nil {
		log.Warn().Msgf("master.service storage close failed err=%v", cerr)
	}
	return err
}
