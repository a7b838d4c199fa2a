// Package master wires the cluster core together: the control dispatcher
// that routes inbound packets and the fixed-period tick loop that drives
// timeouts, housekeeping, and shutdown.
package master

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/unimaster/internal/launcher"
	"github.com/danmuck/unimaster/internal/observability"
	"github.com/danmuck/unimaster/internal/oid"
	"github.com/danmuck/unimaster/internal/protocol"
	"github.com/danmuck/unimaster/internal/session"
	"github.com/danmuck/unimaster/internal/transport"
	"github.com/danmuck/unimaster/internal/universe"
)

// Dispatcher routes one drained packet at a time. It runs on the tick loop
// goroutine and holds no locks.
type Dispatcher struct {
	registry  *universe.Registry
	engine    *universe.Engine
	sessions  *session.Registry
	allocator *oid.Allocator
	launcher  *launcher.Launcher
	sender    transport.Sender

	// chatPeer is the announced chat service connection, zero until it
	// sends ServerInfo.
	chatPeer transport.Peer

	// onUniverseShutdown starts the cluster shutdown countdown; wired to
	// the loop by the service.
	onUniverseShutdown func()
}

func NewDispatcher(
	registry *universe.Registry,
	engine *universe.Engine,
	sessions *session.Registry,
	allocator *oid.Allocator,
	launch *launcher.Launcher,
	sender transport.Sender,
) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		engine:    engine,
		sessions:  sessions,
		allocator: allocator,
		launcher:  launch,
		sender:    sender,
	}
}

// HandlePacket routes one inbound packet. A non-nil error is fatal to the
// whole process; recoverable problems are logged and dropped instead.
func (d *Dispatcher) HandlePacket(ctx context.Context, pkt transport.Packet) error {
	if pkt.Event != transport.EventData {
		d.handlePeerGone(pkt.Peer, pkt.Event)
		return nil
	}

	hdr, payload, err := protocol.ParseHeader(pkt.Payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad header peer=%s err=%v", pkt.Peer, err)
		return nil
	}
	if hdr.Service != protocol.ServiceMaster {
		log.Debug().Msgf("master.dispatcher foreign service peer=%s service=%d", pkt.Peer, hdr.Service)
		return nil
	}
	observability.RecordPacket(hdr.Type.String())

	switch hdr.Type {
	case protocol.MsgRequestPersistentID:
		return d.handleRequestPersistentID(ctx, pkt.Peer, payload)
	case protocol.MsgRequestZoneTransfer:
		d.handleRequestZoneTransfer(pkt.Peer, payload)
	case protocol.MsgServerInfo:
		d.handleServerInfo(pkt.Peer, payload)
	case protocol.MsgSetSessionKey:
		d.handleSetSessionKey(pkt.Peer, payload)
	case protocol.MsgRequestSessionKey:
		d.handleRequestSessionKey(pkt.Peer, payload)
	case protocol.MsgPlayerAdded:
		d.handlePlayerCount(pkt.Peer, payload, +1)
	case protocol.MsgPlayerRemoved:
		d.handlePlayerCount(pkt.Peer, payload, -1)
	case protocol.MsgCreatePrivateZone:
		d.handleCreatePrivateZone(pkt.Peer, payload)
	case protocol.MsgRequestPrivateZone:
		d.handleRequestPrivateZone(pkt.Peer, payload)
	case protocol.MsgWorldReady:
		d.handleWorldReady(pkt.Peer, payload)
	case protocol.MsgPrepZone:
		d.handlePrepZone(pkt.Peer, payload)
	case protocol.MsgShutdownResponse:
		d.handleShutdownResponse(pkt.Peer)
	case protocol.MsgShutdownUniverse:
		log.Info().Msgf("master.dispatcher universe shutdown requested peer=%s", pkt.Peer)
		if d.onUniverseShutdown != nil {
			d.onUniverseShutdown()
		}
	case protocol.MsgShutdownInstance:
		d.handleShutdownInstance(pkt.Peer, payload)
	case protocol.MsgAffirmTransferResponse:
		d.handleAffirmTransferResponse(pkt.Peer, payload)
	case protocol.MsgGetInstances:
		d.handleGetInstances(pkt.Peer, payload)
	default:
		log.Warn().Msgf("master.dispatcher unhandled type=%s peer=%s", hdr.Type, pkt.Peer)
	}
	return nil
}

// handlePeerGone reacts to a transport-level disconnect: the peer is already
// unreachable, so its instance is removed immediately and a lost chat
// service is restarted unless the cluster is going down.
func (d *Dispatcher) handlePeerGone(peer transport.Peer, event transport.Event) {
	log.Info().Msgf("master.dispatcher peer gone peer=%s event=%s", peer, event)

	if in := d.registry.FindByPeer(peer); in != nil {
		d.engine.Remove(in)
	}

	if peer == d.chatPeer && d.chatPeer != "" {
		d.chatPeer = ""
		if d.registry.ShuttingDown() {
			return
		}
		log.Warn().Msgf("master.dispatcher chat service lost, restarting")
		if err := d.launcher.LaunchChat(); err != nil {
			log.Error().Msgf("master.dispatcher chat restart failed err=%v", err)
		}
	}
}

func (d *Dispatcher) handleRequestPersistentID(ctx context.Context, peer transport.Peer, payload []byte) error {
	m, err := protocol.DecodeRequestPersistentID(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad request_persistent_id peer=%s err=%v", peer, err)
		return nil
	}
	id, err := d.allocator.Generate(ctx)
	if err != nil {
		// Handing out a duplicate object id would corrupt the cluster.
		return fmt.Errorf("master: allocate object id: %w", err)
	}
	resp := protocol.PersistentIDResponse{RequestID: m.RequestID, ObjectID: id}
	if err := d.sender.Send(peer, resp.Encode()); err != nil {
		log.Warn().Msgf("master.dispatcher id response send failed peer=%s err=%v", peer, err)
	}
	return nil
}

func (d *Dispatcher) handleRequestZoneTransfer(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeRequestZoneTransfer(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad request_zone_transfer peer=%s err=%v", peer, err)
		return
	}
	req := universe.TransferRequest{ID: m.RequestID, FirstEntry: m.FirstEntry, Requester: peer}
	in, err := d.engine.RequestTransfer(m.ZoneID, m.CloneID, req)
	if err != nil {
		log.Error().Msgf("master.dispatcher transfer failed request=%d zone=%d err=%v", m.RequestID, m.ZoneID, err)
		return
	}
	if in == nil {
		log.Warn().Msgf("master.dispatcher transfer dropped request=%d zone=%d shutdown in progress", m.RequestID, m.ZoneID)
	}
}

func (d *Dispatcher) handleServerInfo(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeServerInfo(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad server_info peer=%s err=%v", peer, err)
		return
	}
	switch m.Kind {
	case protocol.ServiceWorld:
		d.attachWorld(peer, m)
	case protocol.ServiceChat:
		d.chatPeer = peer
		log.Info().Msgf("master.dispatcher chat service attached peer=%s", peer)
	default:
		log.Info().Msgf("master.dispatcher server announced kind=%d peer=%s port=%d", m.Kind, peer, m.Port)
	}
}

// attachWorld binds an announced world process to its instance record,
// creating or replacing records as needed.
func (d *Dispatcher) attachWorld(peer transport.Peer, m protocol.ServerInfo) {
	if in := d.registry.Find(m.ZoneID, m.InstanceID); in != nil {
		in.Peer = peer
		in.IP = m.IP
		in.Port = m.Port
		log.Info().Msgf("master.dispatcher world attached zone=%d instance=%d peer=%s", m.ZoneID, m.InstanceID, peer)
		return
	}
	// A different live instance on the same port is a stale leftover from a
	// crashed worker; its replacement just announced itself.
	if holder := d.registry.FindByPort(m.Port); holder != nil {
		log.Warn().Msgf("master.dispatcher stale instance on port=%d zone=%d instance=%d, replacing", m.Port, holder.ZoneID, holder.InstanceID)
		d.engine.Remove(holder)
	}
	in, err := d.registry.Adopt(m.ZoneID, m.InstanceID, m.IP, m.Port)
	if err != nil {
		log.Error().Msgf("master.dispatcher adopt failed zone=%d instance=%d err=%v", m.ZoneID, m.InstanceID, err)
		return
	}
	in.Peer = peer
}

func (d *Dispatcher) handleSetSessionKey(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeSetSessionKey(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad set_session_key peer=%s err=%v", peer, err)
		return
	}
	old, evicted := d.sessions.SetKey(m.Account, m.Key)
	if !evicted {
		return
	}
	observability.RecordSessionEvicted()
	log.Info().Msgf("master.dispatcher session evicted account=%s old_key=%d", m.Account, old)
	alert := protocol.NewSessionAlert{Key: old, Account: m.Account}
	if err := d.sender.Broadcast(alert.Encode()); err != nil {
		log.Warn().Msgf("master.dispatcher session alert broadcast failed err=%v", err)
	}
}

func (d *Dispatcher) handleRequestSessionKey(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeRequestSessionKey(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad request_session_key peer=%s err=%v", peer, err)
		return
	}
	key, ok := d.sessions.LookupByName(m.Account)
	if !ok {
		log.Debug().Msgf("master.dispatcher no session account=%s", m.Account)
		return
	}
	resp := protocol.SessionKeyResponse{Key: key, Account: m.Account}
	if err := d.sender.Send(peer, resp.Encode()); err != nil {
		log.Warn().Msgf("master.dispatcher session response send failed peer=%s err=%v", peer, err)
	}
}

func (d *Dispatcher) handlePlayerCount(peer transport.Peer, payload []byte, delta int) {
	m, err := protocol.DecodePlayerCountChange(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad player count change peer=%s err=%v", peer, err)
		return
	}
	in := d.registry.Find(uint32(m.ZoneID), uint32(m.InstanceID))
	if in == nil {
		log.Warn().Msgf("master.dispatcher player count for unknown zone=%d instance=%d", m.ZoneID, m.InstanceID)
		return
	}
	in.Players += delta
	if in.Players < 0 {
		in.Players = 0
	}
	if delta > 0 && in.Players > d.registry.HardCap() {
		log.Warn().Msgf("master.dispatcher hard cap exceeded zone=%d instance=%d players=%d cap=%d", in.ZoneID, in.InstanceID, in.Players, d.registry.HardCap())
	}
}

func (d *Dispatcher) handleCreatePrivateZone(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeCreatePrivateZone(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad create_private_zone peer=%s err=%v", peer, err)
		return
	}
	if _, err := d.registry.CreatePrivate(m.ZoneID, uint32(m.CloneID), m.Password); err != nil {
		log.Error().Msgf("master.dispatcher private zone create failed zone=%d err=%v", m.ZoneID, err)
	}
}

// handleRequestPrivateZone answers only a ready password match; every other
// outcome is silence so the password cannot be probed.
func (d *Dispatcher) handleRequestPrivateZone(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeRequestPrivateZone(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad request_private_zone peer=%s err=%v", peer, err)
		return
	}
	in := d.registry.FindPrivate(m.Password)
	if in == nil || !in.Ready {
		return
	}
	d.sendTransferResponse(peer, universe.TransferRequest{ID: m.RequestID, FirstEntry: m.FirstEntry}, in)
}

func (d *Dispatcher) handleWorldReady(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeWorldReady(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad world_ready peer=%s err=%v", peer, err)
		return
	}
	in := d.registry.Find(uint32(m.ZoneID), uint32(m.InstanceID))
	if in == nil {
		log.Warn().Msgf("master.dispatcher ready for unknown zone=%d instance=%d", m.ZoneID, m.InstanceID)
		return
	}
	log.Info().Msgf("master.dispatcher world ready zone=%d instance=%d queued=%d", m.ZoneID, m.InstanceID, in.PendingRequests())
	d.engine.ReadyInstance(in)
}

func (d *Dispatcher) handlePrepZone(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodePrepZone(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad prep_zone peer=%s err=%v", peer, err)
		return
	}
	if m.ZoneID < 0 {
		log.Warn().Msgf("master.dispatcher prep for negative zone=%d peer=%s", m.ZoneID, peer)
		return
	}
	if _, err := d.registry.GetOrCreate(uint32(m.ZoneID), 0); err != nil {
		log.Error().Msgf("master.dispatcher prep failed zone=%d err=%v", m.ZoneID, err)
	}
}

func (d *Dispatcher) handleShutdownResponse(peer transport.Peer) {
	in := d.registry.FindByPeer(peer)
	if in == nil {
		log.Debug().Msgf("master.dispatcher shutdown response from unknown peer=%s", peer)
		return
	}
	log.Info().Msgf("master.dispatcher shutdown confirmed zone=%d instance=%d", in.ZoneID, in.InstanceID)
	in.MarkShutdownComplete()
}

func (d *Dispatcher) handleShutdownInstance(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeShutdownInstance(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad shutdown_instance peer=%s err=%v", peer, err)
		return
	}
	in := d.registry.Find(m.ZoneID, uint32(m.InstanceID))
	if in == nil {
		log.Warn().Msgf("master.dispatcher shutdown for unknown zone=%d instance=%d", m.ZoneID, m.InstanceID)
		return
	}
	d.engine.SignalShutdown(in)
}

func (d *Dispatcher) handleAffirmTransferResponse(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeAffirmTransferResponse(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad affirm_transfer_response peer=%s err=%v", peer, err)
		return
	}
	in := d.registry.FindByPeer(peer)
	if in == nil {
		log.Warn().Msgf("master.dispatcher affirmation from unknown peer=%s request=%d", peer, m.RequestID)
		return
	}
	req, ok := d.engine.AffirmTransfer(in, m.RequestID)
	if !ok {
		log.Warn().Msgf("master.dispatcher affirmation for unknown request=%d zone=%d instance=%d", m.RequestID, in.ZoneID, in.InstanceID)
		return
	}
	d.sendTransferResponse(req.Requester, req, in)
}

// handleGetInstances answers the instance named by the responding pair, not
// the sender; queries are relayed on behalf of another instance.
func (d *Dispatcher) handleGetInstances(peer transport.Peer, payload []byte) {
	m, err := protocol.DecodeGetInstances(payload)
	if err != nil {
		log.Warn().Msgf("master.dispatcher bad get_instances peer=%s err=%v", peer, err)
		return
	}
	responder := d.registry.Find(uint32(m.RespondingZoneID), uint32(m.RespondingInstanceID))
	if responder == nil || responder.Peer == "" {
		log.Warn().Msgf("master.dispatcher no responding instance zone=%d instance=%d", m.RespondingZoneID, m.RespondingInstanceID)
		return
	}

	resp := protocol.RespondInstances{ObjectID: m.ObjectID}
	for _, in := range d.registry.All() {
		if m.HasZone && in.ZoneID != uint32(m.ZoneID) {
			continue
		}
		resp.Instances = append(resp.Instances, protocol.InstanceRef{
			ZoneID:     uint16(in.ZoneID),
			CloneID:    in.CloneID,
			InstanceID: uint16(in.InstanceID),
		})
	}
	if err := d.sender.Send(responder.Peer, resp.Encode()); err != nil {
		log.Warn().Msgf("master.dispatcher instance list send failed peer=%s err=%v", responder.Peer, err)
	}
}

func (d *Dispatcher) sendTransferResponse(to transport.Peer, req universe.TransferRequest, in *universe.Instance) {
	resp := protocol.ZoneTransferResponse{
		RequestID:  req.ID,
		FirstEntry: req.FirstEntry,
		ZoneID:     in.ZoneID,
		InstanceID: in.InstanceID,
		CloneID:    in.CloneID,
		IP:         in.IP,
		Port:       in.Port,
	}
	if err := d.sender.Send(to, resp.Encode()); err != nil {
		log.Warn().Msgf("master.dispatcher transfer response send failed request=%d peer=%s err=%v", req.ID, to, err)
	}
}
