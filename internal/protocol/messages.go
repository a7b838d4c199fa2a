package protocol

// RequestPersistentID asks the master for one cluster-unique object id.
type RequestPersistentID struct {
	RequestID uint64
}

func (m RequestPersistentID) Encode() []byte {
	w := newFieldWriter(MsgRequestPersistentID)
	w.u64(m.RequestID)
	return w.bytes()
}

func DecodeRequestPersistentID(payload []byte) (RequestPersistentID, error) {
	r := newFieldReader(payload)
	m := RequestPersistentID{RequestID: r.u64()}
	return m, r.done()
}

// PersistentIDResponse returns a freshly allocated object id.
type PersistentIDResponse struct {
	RequestID uint64
	ObjectID  uint32
}

func (m PersistentIDResponse) Encode() []byte {
	w := newFieldWriter(MsgPersistentIDResponse)
	w.u64(m.RequestID)
	w.u32(m.ObjectID)
	return w.bytes()
}

func DecodePersistentIDResponse(payload []byte) (PersistentIDResponse, error) {
	r := newFieldReader(payload)
	m := PersistentIDResponse{RequestID: r.u64(), ObjectID: r.u32()}
	return m, r.done()
}

// RequestZoneTransfer asks for a player transfer into (zone, clone).
type RequestZoneTransfer struct {
	RequestID  uint64
	FirstEntry bool
	ZoneID     uint32
	CloneID    uint32
}

func (m RequestZoneTransfer) Encode() []byte {
	w := newFieldWriter(MsgRequestZoneTransfer)
	w.u64(m.RequestID)
	w.u8(encodeBool(m.FirstEntry))
	w.u32(m.ZoneID)
	w.u32(m.CloneID)
	return w.bytes()
}

func DecodeRequestZoneTransfer(payload []byte) (RequestZoneTransfer, error) {
	r := newFieldReader(payload)
	m := RequestZoneTransfer{
		RequestID:  r.u64(),
		FirstEntry: r.u8() != 0,
		ZoneID:     r.u32(),
		CloneID:    r.u32(),
	}
	return m, r.done()
}

// ZoneTransferResponse carries the connection info of the granted instance.
type ZoneTransferResponse struct {
	RequestID  uint64
	FirstEntry bool
	ZoneID     uint32
	InstanceID uint32
	CloneID    uint32
	IP         string
	Port       uint32
}

func (m ZoneTransferResponse) Encode() []byte {
	w := newFieldWriter(MsgZoneTransferResponse)
	w.u64(m.RequestID)
	w.u8(encodeBool(m.FirstEntry))
	w.u32(m.ZoneID)
	w.u32(m.InstanceID)
	w.u32(m.CloneID)
	w.lpstring(m.IP)
	w.u32(m.Port)
	return w.bytes()
}

func DecodeZoneTransferResponse(payload []byte) (ZoneTransferResponse, error) {
	r := newFieldReader(payload)
	m := ZoneTransferResponse{
		RequestID:  r.u64(),
		FirstEntry: r.u8() != 0,
		ZoneID:     r.u32(),
		InstanceID: r.u32(),
		CloneID:    r.u32(),
		IP:         r.lpstring(),
		Port:       r.u32(),
	}
	return m, r.done()
}

// ServerInfo announces a running worker process to the master.
type ServerInfo struct {
	Port       uint32
	ZoneID     uint32
	InstanceID uint32
	Kind       Service
	IP         string
}

func (m ServerInfo) Encode() []byte {
	w := newFieldWriter(MsgServerInfo)
	w.u32(m.Port)
	w.u32(m.ZoneID)
	w.u32(m.InstanceID)
	w.u32(uint32(m.Kind))
	w.zstring(m.IP)
	return w.bytes()
}

func DecodeServerInfo(payload []byte) (ServerInfo, error) {
	r := newFieldReader(payload)
	m := ServerInfo{
		Port:       r.u32(),
		ZoneID:     r.u32(),
		InstanceID: r.u32(),
		Kind:       Service(r.u32()),
		IP:         r.zstring(),
	}
	return m, r.done()
}

// SetSessionKey registers the active session key for an account.
type SetSessionKey struct {
	Key     uint32
	Account string
}

func (m SetSessionKey) Encode() []byte {
	w := newFieldWriter(MsgSetSessionKey)
	w.u32(m.Key)
	w.zstring(m.Account)
	return w.bytes()
}

func DecodeSetSessionKey(payload []byte) (SetSessionKey, error) {
	r := newFieldReader(payload)
	m := SetSessionKey{Key: r.u32(), Account: r.zstring()}
	return m, r.done()
}

// RequestSessionKey queries the active session key for an account.
type RequestSessionKey struct {
	Account string
}

func (m RequestSessionKey) Encode() []byte {
	w := newFieldWriter(MsgRequestSessionKey)
	w.zstring(m.Account)
	return w.bytes()
}

func DecodeRequestSessionKey(payload []byte) (RequestSessionKey, error) {
	r := newFieldReader(payload)
	m := RequestSessionKey{Account: r.zstring()}
	return m, r.done()
}

// SessionKeyResponse answers RequestSessionKey with a fixed-width name echo.
type SessionKeyResponse struct {
	Key     uint32
	Account string
}

func (m SessionKeyResponse) Encode() []byte {
	w := newFieldWriter(MsgSessionKeyResponse)
	w.u32(m.Key)
	w.fixedString(m.Account, FixedNameLen)
	return w.bytes()
}

func DecodeSessionKeyResponse(payload []byte) (SessionKeyResponse, error) {
	r := newFieldReader(payload)
	m := SessionKeyResponse{Key: r.u32()}
	b := r.take(FixedNameLen)
	if b != nil {
		m.Account = trimFixed(b)
	}
	return m, r.done()
}

// PlayerCountChange reports a player entering or leaving an instance.
type PlayerCountChange struct {
	ZoneID     uint16
	InstanceID uint16
}

func (m PlayerCountChange) encode(t MessageType) []byte {
	w := newFieldWriter(t)
	w.u16(m.ZoneID)
	w.u16(m.InstanceID)
	return w.bytes()
}

func (m PlayerCountChange) EncodeAdded() []byte   { return m.encode(MsgPlayerAdded) }
func (m PlayerCountChange) EncodeRemoved() []byte { return m.encode(MsgPlayerRemoved) }

func DecodePlayerCountChange(payload []byte) (PlayerCountChange, error) {
	r := newFieldReader(payload)
	m := PlayerCountChange{ZoneID: r.u16(), InstanceID: r.u16()}
	return m, r.done()
}

// CreatePrivateZone provisions a password-gated instance.
type CreatePrivateZone struct {
	ZoneID   uint32
	CloneID  uint16
	Password string
}

func (m CreatePrivateZone) Encode() []byte {
	w := newFieldWriter(MsgCreatePrivateZone)
	w.u32(m.ZoneID)
	w.u16(m.CloneID)
	w.lpstring(m.Password)
	return w.bytes()
}

func DecodeCreatePrivateZone(payload []byte) (CreatePrivateZone, error) {
	r := newFieldReader(payload)
	m := CreatePrivateZone{ZoneID: r.u32(), CloneID: r.u16(), Password: r.lpstring()}
	return m, r.done()
}

// RequestPrivateZone asks for a transfer into a password-gated instance.
type RequestPrivateZone struct {
	RequestID  uint64
	FirstEntry bool
	Password   string
}

func (m RequestPrivateZone) Encode() []byte {
	w := newFieldWriter(MsgRequestPrivateZone)
	w.u64(m.RequestID)
	w.u8(encodeBool(m.FirstEntry))
	w.lpstring(m.Password)
	return w.bytes()
}

func DecodeRequestPrivateZone(payload []byte) (RequestPrivateZone, error) {
	r := newFieldReader(payload)
	m := RequestPrivateZone{
		RequestID:  r.u64(),
		FirstEntry: r.u8() != 0,
		Password:   r.lpstring(),
	}
	return m, r.done()
}

// WorldReady reports that an instance is accepting transfers.
type WorldReady struct {
	ZoneID     uint16
	InstanceID uint16
}

func (m WorldReady) Encode() []byte {
	w := newFieldWriter(MsgWorldReady)
	w.u16(m.ZoneID)
	w.u16(m.InstanceID)
	return w.bytes()
}

func DecodeWorldReady(payload []byte) (WorldReady, error) {
	r := newFieldReader(payload)
	m := WorldReady{ZoneID: r.u16(), InstanceID: r.u16()}
	return m, r.done()
}

// PrepZone asks the master to ensure an instance exists for a zone.
type PrepZone struct {
	ZoneID int32
}

func (m PrepZone) Encode() []byte {
	w := newFieldWriter(MsgPrepZone)
	w.i32(m.ZoneID)
	return w.bytes()
}

func DecodePrepZone(payload []byte) (PrepZone, error) {
	r := newFieldReader(payload)
	m := PrepZone{ZoneID: r.i32()}
	return m, r.done()
}

// EncodeShutdown builds the empty shutdown signal sent to an instance.
func EncodeShutdown() []byte {
	return newFieldWriter(MsgShutdown).bytes()
}

// EncodeShutdownResponse builds the empty shutdown confirmation.
func EncodeShutdownResponse() []byte {
	return newFieldWriter(MsgShutdownResponse).bytes()
}

// EncodeShutdownUniverse builds the empty cluster shutdown command.
func EncodeShutdownUniverse() []byte {
	return newFieldWriter(MsgShutdownUniverse).bytes()
}

// ShutdownInstance targets one instance for graceful shutdown.
type ShutdownInstance struct {
	ZoneID     uint32
	InstanceID uint16
}

func (m ShutdownInstance) Encode() []byte {
	w := newFieldWriter(MsgShutdownInstance)
	w.u32(m.ZoneID)
	w.u16(m.InstanceID)
	return w.bytes()
}

func DecodeShutdownInstance(payload []byte) (ShutdownInstance, error) {
	r := newFieldReader(payload)
	m := ShutdownInstance{ZoneID: r.u32(), InstanceID: r.u16()}
	return m, r.done()
}

// AffirmTransferRequest asks an instance to confirm a pending transfer.
type AffirmTransferRequest struct {
	RequestID uint64
}

func (m AffirmTransferRequest) Encode() []byte {
	w := newFieldWriter(MsgAffirmTransferRequest)
	w.u64(m.RequestID)
	return w.bytes()
}

func DecodeAffirmTransferRequest(payload []byte) (AffirmTransferRequest, error) {
	r := newFieldReader(payload)
	m := AffirmTransferRequest{RequestID: r.u64()}
	return m, r.done()
}

// AffirmTransferResponse confirms a transfer the instance accepted.
type AffirmTransferResponse struct {
	RequestID uint64
}

func (m AffirmTransferResponse) Encode() []byte {
	w := newFieldWriter(MsgAffirmTransferResponse)
	w.u64(m.RequestID)
	return w.bytes()
}

func DecodeAffirmTransferResponse(payload []byte) (AffirmTransferResponse, error) {
	r := newFieldReader(payload)
	m := AffirmTransferResponse{RequestID: r.u64()}
	return m, r.done()
}

// NewSessionAlert broadcasts the eviction of a stale session key.
type NewSessionAlert struct {
	Key     uint32
	Account string
}

func (m NewSessionAlert) Encode() []byte {
	w := newFieldWriter(MsgNewSessionAlert)
	w.u32(m.Key)
	w.lpstring(m.Account)
	return w.bytes()
}

func DecodeNewSessionAlert(payload []byte) (NewSessionAlert, error) {
	r := newFieldReader(payload)
	m := NewSessionAlert{Key: r.u32(), Account: r.lpstring()}
	return m, r.done()
}

// GetInstances queries live instances, optionally filtered to one zone. The
// response goes to the instance named by the responding pair, not the sender.
type GetInstances struct {
	ObjectID             uint64
	HasZone              bool
	ZoneID               uint16
	RespondingZoneID     uint16
	RespondingInstanceID uint16
}

func (m GetInstances) Encode() []byte {
	w := newFieldWriter(MsgGetInstances)
	w.u64(m.ObjectID)
	w.u8(encodeBool(m.HasZone))
	if m.HasZone {
		w.u16(m.ZoneID)
	}
	w.u16(m.RespondingZoneID)
	w.u16(m.RespondingInstanceID)
	return w.bytes()
}

func DecodeGetInstances(payload []byte) (GetInstances, error) {
	r := newFieldReader(payload)
	m := GetInstances{ObjectID: r.u64()}
	m.HasZone = r.u8() != 0
	if m.HasZone {
		m.ZoneID = r.u16()
	}
	m.RespondingZoneID = r.u16()
	m.RespondingInstanceID = r.u16()
	return m, r.done()
}

// InstanceRef is one live-instance identity in RespondInstances.
type InstanceRef struct {
	ZoneID     uint16
	CloneID    uint32
	InstanceID uint16
}

// RespondInstances lists live instances for a GetInstances query.
type RespondInstances struct {
	ObjectID  uint64
	Instances []InstanceRef
}

func (m RespondInstances) Encode() []byte {
	w := newFieldWriter(MsgRespondInstances)
	w.u64(m.ObjectID)
	w.u32(uint32(len(m.Instances)))
	for _, ref := range m.Instances {
		w.u16(ref.ZoneID)
		w.u32(ref.CloneID)
		w.u16(ref.InstanceID)
	}
	return w.bytes()
}

func DecodeRespondInstances(payload []byte) (RespondInstances, error) {
	r := newFieldReader(payload)
	m := RespondInstances{ObjectID: r.u64()}
	count := r.u32()
	if err := r.done(); err != nil {
		return m, err
	}
	for i := uint32(0); i < count; i++ {
		ref := InstanceRef{ZoneID: r.u16(), CloneID: r.u32(), InstanceID: r.u16()}
		if err := r.done(); err != nil {
			return m, err
		}
		m.Instances = append(m.Instances, ref)
	}
	return m, r.done()
}

func encodeBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func trimFixed(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
