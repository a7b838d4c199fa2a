package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danmuck/unimaster/internal/testutil/testlog"
)

func startTransport(t *testing.T) (*TCPTransport, context.CancelFunc) {
	t.Helper()
	tp, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = tp.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = tp.Close()
	})
	return tp, cancel
}

func pollWait(t *testing.T, tp *TCPTransport) Packet {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pkt, ok := tp.Poll(); ok {
			return pkt
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("no packet before deadline")
	return Packet{}
}

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{1, 2, 3, 4, 5}
	if err := WriteMessage(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadMessage(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %v != %v", got, payload)
	}
}

func TestFramingRejectsOversizedFrames(t *testing.T) {
	big := make([]byte, MaxFrameBytes+1)
	if err := WriteMessage(&bytes.Buffer{}, big); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadMessage(bufio.NewReader(&buf)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestInboundPacketsPreserveOrder(t *testing.T) {
	testlog.Start(t)
	tp, _ := startTransport(t)

	conn, err := net.Dial("tcp", tp.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, b := range []byte{10, 20, 30} {
		if err := WriteMessage(conn, []byte{b}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	for _, want := range []byte{10, 20, 30} {
		pkt := pollWait(t, tp)
		if pkt.Event != EventData {
			t.Fatalf("expected data event, got %v", pkt.Event)
		}
		if len(pkt.Payload) != 1 || pkt.Payload[0] != want {
			t.Fatalf("expected payload %d, got %v", want, pkt.Payload)
		}
	}
}

func TestPeerCloseYieldsDisconnectEvent(t *testing.T) {
	testlog.Start(t)
	tp, _ := startTransport(t)

	conn, err := net.Dial("tcp", tp.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := WriteMessage(conn, []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	pkt := pollWait(t, tp)
	peer := pkt.Peer

	_ = conn.Close()
	pkt = pollWait(t, tp)
	if pkt.Event != EventDisconnect {
		t.Fatalf("expected disconnect event, got %v", pkt.Event)
	}
	if pkt.Peer != peer {
		t.Fatalf("disconnect for wrong peer: %s != %s", pkt.Peer, peer)
	}

	if err := tp.Send(peer, []byte{2}); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer after disconnect, got %v", err)
	}
}

func TestSendReachesPeer(t *testing.T) {
	testlog.Start(t)
	tp, _ := startTransport(t)

	conn, err := net.Dial("tcp", tp.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := WriteMessage(conn, []byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	pkt := pollWait(t, tp)

	if err := tp.Send(pkt.Peer, []byte{9, 9}); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := ReadMessage(bufio.NewReader(conn))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte{9, 9}) {
		t.Fatalf("unexpected payload: %v", got)
	}
}
