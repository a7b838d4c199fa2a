package protocol

import (
	"errors"
	"testing"
)

func mustPayload(t *testing.T, packet []byte, want MessageType) []byte {
	t.Helper()
	h, payload, err := ParseHeader(packet)
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if h.Service != ServiceMaster {
		t.Fatalf("expected master service, got %d", h.Service)
	}
	if h.Type != want {
		t.Fatalf("expected type %v, got %v", want, h.Type)
	}
	return payload
}

func TestParseHeaderRejectsShortAndForeignPackets(t *testing.T) {
	if _, _, err := ParseHeader([]byte{FamilyTag, 0, 0}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
	bad := RequestPersistentID{RequestID: 1}.Encode()
	bad[0] = 0x42
	if _, _, err := ParseHeader(bad); !errors.Is(err, ErrBadFamily) {
		t.Fatalf("expected ErrBadFamily, got %v", err)
	}
}

func TestZoneTransferRoundTrip(t *testing.T) {
	in := RequestZoneTransfer{RequestID: 77, FirstEntry: true, ZoneID: 1200, CloneID: 3}
	payload := mustPayload(t, in.Encode(), MsgRequestZoneTransfer)
	out, err := DecodeRequestZoneTransfer(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}

	resp := ZoneTransferResponse{
		RequestID:  77,
		FirstEntry: true,
		ZoneID:     1200,
		InstanceID: 4,
		CloneID:    3,
		IP:         "10.0.0.9",
		Port:       3004,
	}
	decoded, err := DecodeZoneTransferResponse(mustPayload(t, resp.Encode(), MsgZoneTransferResponse))
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded != resp {
		t.Fatalf("response mismatch: %+v != %+v", decoded, resp)
	}
}

func TestServerInfoZStringStopsAtNUL(t *testing.T) {
	in := ServerInfo{Port: 3001, ZoneID: 1000, InstanceID: 2, Kind: ServiceWorld, IP: "192.168.1.5"}
	out, err := DecodeServerInfo(mustPayload(t, in.Encode(), MsgServerInfo))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
}

func TestZStringRejectsUnterminatedAndOversized(t *testing.T) {
	// Payload with no NUL before the cap.
	long := ServerInfo{Kind: ServiceWorld, IP: "123456789012345678901234567890123456"}.Encode()
	_, payload, _ := ParseHeader(long)
	if _, err := DecodeServerInfo(payload); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}

	// Truncated before the terminator.
	short := SetSessionKey{Key: 1, Account: "alpha"}.Encode()
	if _, err := DecodeSetSessionKey(short[HeaderSize : len(short)-1]); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestSessionKeyResponseFixedWidthName(t *testing.T) {
	in := SessionKeyResponse{Key: 42, Account: "maximillian"}
	packet := in.Encode()
	if len(packet) != HeaderSize+4+FixedNameLen {
		t.Fatalf("expected fixed-width packet, got %d bytes", len(packet))
	}
	out, err := DecodeSessionKeyResponse(mustPayload(t, packet, MsgSessionKeyResponse))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("mismatch: %+v != %+v", out, in)
	}
}

func TestPrivateZoneMessagesRoundTrip(t *testing.T) {
	create := CreatePrivateZone{ZoneID: 1800, CloneID: 2, Password: "s3cret"}
	gotCreate, err := DecodeCreatePrivateZone(mustPayload(t, create.Encode(), MsgCreatePrivateZone))
	if err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if gotCreate != create {
		t.Fatalf("create mismatch: %+v != %+v", gotCreate, create)
	}

	req := RequestPrivateZone{RequestID: 9, FirstEntry: false, Password: "s3cret"}
	gotReq, err := DecodeRequestPrivateZone(mustPayload(t, req.Encode(), MsgRequestPrivateZone))
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if gotReq != req {
		t.Fatalf("request mismatch: %+v != %+v", gotReq, req)
	}
}

func TestGetInstancesOptionalZoneFlag(t *testing.T) {
	withZone := GetInstances{
		ObjectID:             111,
		HasZone:              true,
		ZoneID:               1200,
		RespondingZoneID:     1000,
		RespondingInstanceID: 1,
	}
	got, err := DecodeGetInstances(mustPayload(t, withZone.Encode(), MsgGetInstances))
	if err != nil {
		t.Fatalf("decode with zone: %v", err)
	}
	if got != withZone {
		t.Fatalf("mismatch: %+v != %+v", got, withZone)
	}

	withoutZone := GetInstances{ObjectID: 112, RespondingZoneID: 1000, RespondingInstanceID: 1}
	got, err = DecodeGetInstances(mustPayload(t, withoutZone.Encode(), MsgGetInstances))
	if err != nil {
		t.Fatalf("decode without zone: %v", err)
	}
	if got != withoutZone {
		t.Fatalf("mismatch: %+v != %+v", got, withoutZone)
	}
	if len(withoutZone.Encode()) != len(withZone.Encode())-2 {
		t.Fatalf("zone field should add exactly two bytes")
	}
}

func TestRespondInstancesRoundTrip(t *testing.T) {
	in := RespondInstances{
		ObjectID: 500,
		Instances: []InstanceRef{
			{ZoneID: 1000, CloneID: 0, InstanceID: 1},
			{ZoneID: 1200, CloneID: 4, InstanceID: 2},
		},
	}
	out, err := DecodeRespondInstances(mustPayload(t, in.Encode(), MsgRespondInstances))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ObjectID != in.ObjectID || len(out.Instances) != 2 {
		t.Fatalf("mismatch: %+v", out)
	}
	for i := range in.Instances {
		if out.Instances[i] != in.Instances[i] {
			t.Fatalf("ref %d mismatch: %+v != %+v", i, out.Instances[i], in.Instances[i])
		}
	}
}

func TestRespondInstancesTruncatedList(t *testing.T) {
	in := RespondInstances{
		ObjectID:  500,
		Instances: []InstanceRef{{ZoneID: 1000, CloneID: 0, InstanceID: 1}},
	}
	packet := in.Encode()
	if _, err := DecodeRespondInstances(packet[HeaderSize : len(packet)-3]); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestEmptyControlMessages(t *testing.T) {
	for _, tc := range []struct {
		packet []byte
		want   MessageType
	}{
		{EncodeShutdown(), MsgShutdown},
		{EncodeShutdownResponse(), MsgShutdownResponse},
		{EncodeShutdownUniverse(), MsgShutdownUniverse},
	} {
		payload := mustPayload(t, tc.packet, tc.want)
		if len(payload) != 0 {
			t.Fatalf("%v: expected empty payload, got %d bytes", tc.want, len(payload))
		}
	}
}

func TestMessageTypeNames(t *testing.T) {
	if MsgRequestZoneTransfer.String() != "request_zone_transfer" {
		t.Fatalf("unexpected name: %s", MsgRequestZoneTransfer)
	}
	if MessageType(9000).String() != "unknown" {
		t.Fatalf("expected unknown for unmapped type")
	}
}
