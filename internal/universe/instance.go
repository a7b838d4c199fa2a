package universe

import (
	"github.com/eapache/queue"

	"github.com/danmuck/unimaster/internal/transport"
)

// TransferRequest is one player zone-transfer awaiting placement. It is
// owned by exactly one instance queue at a time.
type TransferRequest struct {
	ID         uint64
	FirstEntry bool
	Requester  transport.Peer
}

// Instance is the in-memory record of one world-zone worker process.
type Instance struct {
	ZoneID     uint32
	CloneID    uint32
	InstanceID uint32

	IP   string
	Port uint32
	// Peer is the transport identity, zero until the worker announces itself.
	Peer transport.Peer

	// Password is non-empty for privately created instances.
	Password string

	Ready        bool
	ShuttingDown bool
	Players      int

	shutdownComplete bool

	pendingRequests     *queue.Queue
	pendingAffirmations []TransferRequest
	affirmationTicks    int
}

func newInstance(zone, clone, id uint32, ip string, port uint32) *Instance {
	return &Instance{
		ZoneID:          zone,
		CloneID:         clone,
		InstanceID:      id,
		IP:              ip,
		Port:            port,
		pendingRequests: queue.New(),
	}
}

// Private reports whether the instance is reachable only by password.
func (in *Instance) Private() bool {
	return in.Password != ""
}

// QueueRequest holds a transfer until the instance reports ready.
func (in *Instance) QueueRequest(req TransferRequest) {
	in.pendingRequests.Add(req)
}

// PendingRequests is the number of transfers waiting on readiness.
func (in *Instance) PendingRequests() int {
	return in.pendingRequests.Length()
}

// PendingAffirmations is the number of transfers sent and not yet affirmed.
func (in *Instance) PendingAffirmations() int {
	return len(in.pendingAffirmations)
}

// MarkShutdownComplete records a confirmed shutdown. Completion implies
// shutting down even when the worker volunteers it unprompted.
func (in *Instance) MarkShutdownComplete() {
	in.ShuttingDown = true
	in.shutdownComplete = true
}

func (in *Instance) ShutdownComplete() bool {
	return in.shutdownComplete
}

// drainPending empties the readiness queue in FIFO order.
func (in *Instance) drainPending() []TransferRequest {
	out := make([]TransferRequest, 0, in.pendingRequests.Length())
	for in.pendingRequests.Length() > 0 {
		out = append(out, in.pendingRequests.Remove().(TransferRequest))
	}
	return out
}

func (in *Instance) addAffirmation(req TransferRequest) {
	in.pendingAffirmations = append(in.pendingAffirmations, req)
}

// takeAffirmation removes one awaited affirmation by request id. The
// timeout counter resets once nothing is awaited.
func (in *Instance) takeAffirmation(requestID uint64) (TransferRequest, bool) {
	for i, req := range in.pendingAffirmations {
		if req.ID == requestID {
			in.pendingAffirmations = append(in.pendingAffirmations[:i], in.pendingAffirmations[i+1:]...)
			if len(in.pendingAffirmations) == 0 {
				in.affirmationTicks = 0
			}
			return req, true
		}
	}
	return TransferRequest{}, false
}

// drainAffirmations empties the awaited set and resets the timeout counter.
func (in *Instance) drainAffirmations() []TransferRequest {
	out := in.pendingAffirmations
	in.pendingAffirmations = nil
	in.affirmationTicks = 0
	return out
}
