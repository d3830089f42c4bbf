package frameproto

import (
	"encoding/json"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	for _, c := range []string{"", ErrProtoBadRequest, ErrUnknownAction, ErrBadArgument, ErrEngineBusy} {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"INTENT","protocol_version":"1.0","id":"a1","action":"pause"}`))
	if err != nil || b.Type != TypeIntent || b.ProtocolVersion != Version {
		t.Fatalf("base=%+v err=%v", b, err)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestIntentMsg_OptionalFields(t *testing.T) {
	var m IntentMsg
	raw := `{"type":"INTENT","protocol_version":"1.0","id":"s","action":"scrub","tick":0,"pointer":{"x":3,"y":4}}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Tick == nil || *m.Tick != 0 {
		t.Fatalf("tick 0 must be distinguishable from absent: %+v", m.Tick)
	}
	if m.Pointer == nil || m.Pointer.X != 3 || m.Pointer.Y != 4 {
		t.Fatalf("pointer=%+v", m.Pointer)
	}
}

func TestAckConstructors(t *testing.T) {
	ok := NewAck("r1")
	if !ok.OK || ok.Code != "" || ok.Type != TypeAck {
		t.Fatalf("ack=%+v", ok)
	}
	fail := NewFail("r2", ErrBadArgument, "tick required")
	if fail.OK || fail.Code != ErrBadArgument || fail.Ref != "r2" {
		t.Fatalf("fail=%+v", fail)
	}
}
