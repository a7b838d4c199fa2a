package protocol

// FamilyTag is the transport message family shared by every cluster service.
const FamilyTag byte = 0x55

// HeaderSize is the length of the common packet header: family tag (u8),
// service sub-tag (u16), message type (u32), padding (u8).
const HeaderSize = 8

const (
	// MaxZString caps NUL-terminated inbound strings, terminator included.
	MaxZString = 33
	// FixedNameLen is the padded account name width in SessionKeyResponse.
	FixedNameLen = 64
	// MaxLPString caps length-prefixed strings (passwords, account names, ips).
	MaxLPString = 256
)

// Service identifies the cluster process family a packet is addressed to.
type Service uint16

const (
	ServiceGeneral Service = 0
	ServiceAuth    Service = 1
	ServiceChat    Service = 2
	ServiceWorld   Service = 3
	ServiceClient  Service = 4
	ServiceMaster  Service = 5
)

// MessageType discriminates master control messages within ServiceMaster.
type MessageType uint32

const (
	MsgRequestPersistentID    MessageType = 1
	MsgPersistentIDResponse   MessageType = 2
	MsgRequestZoneTransfer    MessageType = 3
	MsgZoneTransferResponse   MessageType = 4
	MsgServerInfo             MessageType = 5
	MsgSetSessionKey          MessageType = 6
	MsgRequestSessionKey      MessageType = 7
	MsgSessionKeyResponse     MessageType = 8
	MsgPlayerAdded            MessageType = 9
	MsgPlayerRemoved          MessageType = 10
	MsgCreatePrivateZone      MessageType = 11
	MsgRequestPrivateZone     MessageType = 12
	MsgWorldReady             MessageType = 13
	MsgPrepZone               MessageType = 14
	MsgShutdown               MessageType = 15
	MsgShutdownResponse       MessageType = 16
	MsgShutdownUniverse       MessageType = 17
	MsgShutdownInstance       MessageType = 18
	MsgAffirmTransferRequest  MessageType = 19
	MsgAffirmTransferResponse MessageType = 20
	MsgNewSessionAlert        MessageType = 21
	MsgGetInstances           MessageType = 22
	MsgRespondInstances       MessageType = 23
)

func (t MessageType) String() string {
	switch t {
	case MsgRequestPersistentID:
		return "request_persistent_id"
	case MsgPersistentIDResponse:
		return "persistent_id_response"
	case MsgRequestZoneTransfer:
		return "request_zone_transfer"
	case MsgZoneTransferResponse:
		return "zone_transfer_response"
	case MsgServerInfo:
		return "server_info"
	case MsgSetSessionKey:
		return "set_session_key"
	case MsgRequestSessionKey:
		return "request_session_key"
	case MsgSessionKeyResponse:
		return "session_key_response"
	case MsgPlayerAdded:
		return "player_added"
	case MsgPlayerRemoved:
		return "player_removed"
	case MsgCreatePrivateZone:
		return "create_private_zone"
	case MsgRequestPrivateZone:
		return "request_private_zone"
	case MsgWorldReady:
		return "world_ready"
	case MsgPrepZone:
		return "prep_zone"
	case MsgShutdown:
		return "shutdown"
	case MsgShutdownResponse:
		return "shutdown_response"
	case MsgShutdownUniverse:
		return "shutdown_universe"
	case MsgShutdownInstance:
		return "shutdown_instance"
	case MsgAffirmTransferRequest:
		return "affirm_transfer_request"
	case MsgAffirmTransferResponse:
		return "affirm_transfer_response"
	case MsgNewSessionAlert:
		return "new_session_alert"
	case MsgGetInstances:
		return "get_instances"
	case MsgRespondInstances:
		return "respond_instances"
	default:
		return "unknown"
	}
}

// Header is the decoded common packet prefix.
type Header struct {
	Service Service
	Type    MessageType
}
