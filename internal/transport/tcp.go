package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

// TCPTransport accepts worker connections and frames control messages with a
// u32 little-endian length prefix.
type TCPTransport struct {
	ln net.Listener

	mu    sync.Mutex
	conns map[Peer]*tcpConn

	inboxMu sync.Mutex
	inbox   *queue.Queue

	closeOnce sync.Once
	closed    chan struct{}
}

type tcpConn struct {
	c   net.Conn
	wmu sync.Mutex
}

// Listen binds the control listener. Serve must be called to accept peers.
func Listen(addr string) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPTransport{
		ln:     ln,
		conns:  make(map[Peer]*tcpConn),
		inbox:  queue.New(),
		closed: make(chan struct{}),
	}, nil
}

// Serve owns the accept loop until ctx is canceled or the listener closes.
func (t *TCPTransport) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
		case <-t.closed:
		}
		_ = t.ln.Close()
	}()

	log.Info().Msgf("transport listening addr=%s", t.ln.Addr())
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-t.closed:
				return nil
			default:
				return err
			}
		}
		peer := Peer(conn.RemoteAddr().String())
		tc := &tcpConn{c: conn}
		t.track(peer, tc)
		go t.readLoop(peer, tc)
	}
}

func (t *TCPTransport) track(peer Peer, tc *tcpConn) {
	t.mu.Lock()
	t.conns[peer] = tc
	t.mu.Unlock()
	log.Debug().Msgf("transport peer connected peer=%s", peer)
}

func (t *TCPTransport) untrack(peer Peer) {
	t.mu.Lock()
	delete(t.conns, peer)
	t.mu.Unlock()
}

func (t *TCPTransport) readLoop(peer Peer, tc *tcpConn) {
	defer tc.c.Close()
	br := bufio.NewReader(tc.c)
	for {
		payload, err := ReadMessage(br)
		if err != nil {
			t.untrack(peer)
			event := EventConnectionLost
			if errors.Is(err, io.EOF) {
				event = EventDisconnect
			}
			select {
			case <-t.closed:
			default:
				t.push(Packet{Peer: peer, Event: event})
			}
			return
		}
		t.push(Packet{Peer: peer, Event: EventData, Payload: payload})
	}
}

func (t *TCPTransport) push(p Packet) {
	t.inboxMu.Lock()
	t.inbox.Add(p)
	t.inboxMu.Unlock()
}

// Poll removes one inbound packet in arrival order.
func (t *TCPTransport) Poll() (Packet, bool) {
	t.inboxMu.Lock()
	defer t.inboxMu.Unlock()
	if t.inbox.Length() == 0 {
		return Packet{}, false
	}
	return t.inbox.Remove().(Packet), true
}

func (t *TCPTransport) Send(to Peer, payload []byte) error {
	t.mu.Lock()
	tc, ok := t.conns[to]
	t.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	return tc.write(payload)
}

func (t *TCPTransport) Broadcast(payload []byte) error {
	t.mu.Lock()
	targets := make([]*tcpConn, 0, len(t.conns))
	for _, tc := range t.conns {
		targets = append(targets, tc)
	}
	t.mu.Unlock()

	var firstErr error
	for _, tc := range targets {
		if err := tc.write(payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *TCPTransport) LocalAddr() net.Addr {
	return t.ln.Addr()
}

func (t *TCPTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.ln.Close()
		t.mu.Lock()
		for _, tc := range t.conns {
			_ = tc.c.Close()
		}
		t.conns = make(map[Peer]*tcpConn)
		t.mu.Unlock()
	})
	return nil
}

func (tc *tcpConn) write(payload []byte) error {
	tc.wmu.Lock()
	defer tc.wmu.Unlock()
	return WriteMessage(tc.c, payload)
}

// WriteMessage frames one payload onto w. Shared with worker-side clients.
func WriteMessage(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameBytes {
		return ErrFrameTooLarge
	}
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadMessage reads one framed payload from br.
func ReadMessage(br *bufio.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(br, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(prefix[:])
	if n > MaxFrameBytes {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
