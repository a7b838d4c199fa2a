package observability

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	// MustRegister panics on duplicates; a second call must be a no-op.
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	RecordPacket("ZoneTransferRequest")
	RecordRedirects(3)
	RecordSessionEvicted()
	SetInstancesLive(2)
	SetAffirmationsPending(1)
	SetSessionsActive(5)
}

func TestServeAdmin(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("close probe listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeAdmin(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	RecordPacket("ZoneTransferRequest")
	resp, err = http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "unimaster_wire_packets_total") {
		t.Fatalf("metrics body missing packet counter")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("admin server did not stop")
	}
}
