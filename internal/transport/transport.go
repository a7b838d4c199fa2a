// Package transport provides the reliable, ordered, peer-addressed byte
// transport the master core consumes. The TCP implementation is the only
// concurrent part of the process: reader goroutines enqueue packets into a
// FIFO that the single-threaded core drains via Poll.
package transport

import (
	"errors"
	"net"
)

// Peer is an opaque comparable identity for a connected worker process.
type Peer string

// Event discriminates what a Packet reports.
type Event uint8

const (
	// EventData carries a control payload.
	EventData Event = iota
	// EventDisconnect reports a peer that closed its connection cleanly.
	EventDisconnect
	// EventConnectionLost reports a peer whose connection failed.
	EventConnectionLost
)

func (e Event) String() string {
	switch e {
	case EventData:
		return "data"
	case EventDisconnect:
		return "disconnect"
	case EventConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// Packet is one inbound unit: a payload or a synthesized connection event.
type Packet struct {
	Peer    Peer
	Event   Event
	Payload []byte
}

// Sender sends framed payloads to one peer or all connected peers.
type Sender interface {
	Send(to Peer, payload []byte) error
	Broadcast(payload []byte) error
}

// Transport is the full surface the tick loop drives.
type Transport interface {
	Sender
	// Poll removes and returns one inbound packet, if any. Never blocks.
	Poll() (Packet, bool)
	LocalAddr() net.Addr
	Close() error
}

var (
	ErrUnknownPeer   = errors.New("transport: unknown peer")
	ErrFrameTooLarge = errors.New("transport: frame too large")
	ErrClosed        = errors.New("transport: closed")
)

// MaxFrameBytes bounds one framed control message on the wire.
const MaxFrameBytes = 64 * 1024
