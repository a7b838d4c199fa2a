package universe

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/transport"
)

var (
	ErrPortInUse    = errors.New("universe: port already in use")
	ErrShuttingDown = errors.New("universe: registry is shutting down")
)

// WorldLauncher starts a world process for a freshly created instance.
type WorldLauncher interface {
	LaunchWorld(zone, clone, instance, port uint32) error
}

// Config sizes the registry and its port allocation.
type Config struct {
	ExternalIP    string
	WorldPortBase uint32
	// SoftCap is the player count at which GetOrCreate spills to a new
	// instance; HardCap only triggers a warning on PlayerAdded.
	SoftCap int
	HardCap int
}

const (
	defaultWorldPortBase = 3000
	defaultSoftCap       = 8
	defaultHardCap       = 12
)

// Registry owns every live Instance. Single-threaded; see package doc.
type Registry struct {
	cfg      Config
	launcher WorldLauncher

	instances []*Instance
	nextID    uint32
	nextPort  uint32

	shuttingDown bool
}

func NewRegistry(cfg Config, launcher WorldLauncher) *Registry {
	if cfg.ExternalIP == "" {
		cfg.ExternalIP = "127.0.0.1"
	}
	if cfg.WorldPortBase == 0 {
		cfg.WorldPortBase = defaultWorldPortBase
	}
	if cfg.SoftCap <= 0 {
		cfg.SoftCap = defaultSoftCap
	}
	if cfg.HardCap < cfg.SoftCap {
		cfg.HardCap = defaultHardCap
	}
	return &Registry{
		cfg:      cfg,
		launcher: launcher,
		nextPort: cfg.WorldPortBase,
	}
}

// Create registers a new not-ready instance and asks the launcher to start
// a world process for it. Port zero allocates the next free world port.
func (r *Registry) Create(zone, clone uint32, ip string, port uint32) (*Instance, error) {
	if port == 0 {
		port = r.allocatePort()
	}
	if r.PortInUse(port) {
		return nil, ErrPortInUse
	}
	if ip == "" {
		ip = r.cfg.ExternalIP
	}

	r.nextID++
	in := newInstance(zone, clone, r.nextID, ip, port)
	r.instances = append(r.instances, in)
	log.Info().Msgf("universe.registry created zone=%d clone=%d instance=%d port=%d", zone, clone, in.InstanceID, port)

	if r.launcher != nil {
		if err := r.launcher.LaunchWorld(zone, clone, in.InstanceID, port); err != nil {
			// The record stays; a worker may still attach to it.
			log.Warn().Msgf("universe.registry world launch failed zone=%d instance=%d err=%v", zone, in.InstanceID, err)
		}
	}
	return in, nil
}

// Adopt registers an already-running world process that announced itself.
// No launch is attempted; the instance id is the one the worker claims.
func (r *Registry) Adopt(zone, instanceID uint32, ip string, port uint32) (*Instance, error) {
	if r.PortInUse(port) {
		return nil, ErrPortInUse
	}
	if instanceID >= r.nextID {
		r.nextID = instanceID + 1
	}
	in := newInstance(zone, 0, instanceID, ip, port)
	r.instances = append(r.instances, in)
	log.Info().Msgf("universe.registry adopted zone=%d instance=%d port=%d", zone, instanceID, port)
	return in, nil
}

// GetOrCreate returns a public, joinable instance for (zone, clone),
// creating one when none qualifies. Returns nil once cluster shutdown has
// begun.
func (r *Registry) GetOrCreate(zone, clone uint32) (*Instance, error) {
	if r.shuttingDown {
		return nil, nil
	}
	for _, in := range r.instances {
		if in.ZoneID == zone && in.CloneID == clone && !in.Private() &&
			!in.ShuttingDown && in.Players < r.cfg.SoftCap {
			return in, nil
		}
	}
	return r.Create(zone, clone, "", 0)
}

// CreatePrivate registers a password-gated instance.
func (r *Registry) CreatePrivate(zone, clone uint32, password string) (*Instance, error) {
	in, err := r.Create(zone, clone, "", 0)
	if err != nil {
		return nil, err
	}
	in.Password = password
	return in, nil
}

// Find returns the live instance identified by (zone, instance id).
func (r *Registry) Find(zone, instanceID uint32) *Instance {
	for _, in := range r.instances {
		if in.ZoneID == zone && in.InstanceID == instanceID {
			return in
		}
	}
	return nil
}

// FindByPeer returns the instance owning a transport peer address.
func (r *Registry) FindByPeer(peer transport.Peer) *Instance {
	if peer == "" {
		return nil
	}
	for _, in := range r.instances {
		if in.Peer == peer {
			return in
		}
	}
	return nil
}

// FindByPort returns the live instance holding a port.
func (r *Registry) FindByPort(port uint32) *Instance {
	for _, in := range r.instances {
		if in.Port == port {
			return in
		}
	}
	return nil
}

// PortInUse reports whether any live instance holds the port.
func (r *Registry) PortInUse(port uint32) bool {
	return r.FindByPort(port) != nil
}

// FindAllByZone returns every live instance for a zone, any clone.
func (r *Registry) FindAllByZone(zone uint32) []*Instance {
	var out []*Instance
	for _, in := range r.instances {
		if in.ZoneID == zone {
			out = append(out, in)
		}
	}
	return out
}

// FindPrivate looks an instance up by password alone.
func (r *Registry) FindPrivate(password string) *Instance {
	if password == "" {
		return nil
	}
	for _, in := range r.instances {
		if in.Password == password {
			return in
		}
	}
	return nil
}

// All returns a snapshot copy, safe to iterate while handlers mutate the
// registry mid-iteration.
func (r *Registry) All() []*Instance {
	out := make([]*Instance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Count is the number of live instances.
func (r *Registry) Count() int {
	return len(r.instances)
}

// HardCap is the advisory upper player bound per instance.
func (r *Registry) HardCap() int {
	return r.cfg.HardCap
}

// BeginShutdown stops GetOrCreate from handing out instances.
func (r *Registry) BeginShutdown() {
	r.shuttingDown = true
}

func (r *Registry) ShuttingDown() bool {
	return r.shuttingDown
}

// detach discards an instance. Callers must have drained its queues; the
// Engine's Remove is the only path here.
func (r *Registry) detach(target *Instance) {
	for i, in := range r.instances {
		if in == target {
			r.instances = append(r.instances[:i], r.instances[i+1:]...)
			return
		}
	}
}

func (r *Registry) allocatePort() uint32 {
	p := r.nextPort
	if p < r.cfg.WorldPortBase {
		p = r.cfg.WorldPortBase
	}
	for r.PortInUse(p) {
		p++
	}
	r.nextPort = p + 1
	return p
}
