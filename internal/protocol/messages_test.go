package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseClientMessage_FindPartner(t *testing.T) {
	input := []byte(`{"type":"find_partner"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindPartner {
		t.Fatalf("expected type %q, got %q", TypeFindPartner, msgType)
	}
	if _, ok := msg.(FindPartnerMsg); !ok {
		t.Fatalf("expected FindPartnerMsg, got %T", msg)
	}
}

func TestParseClientMessage_Signal(t *testing.T) {
	input := []byte(`{"type":"signal","data":{"sdp":"v=0...","kind":"offer"}}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSignal {
		t.Fatalf("expected type %q, got %q", TypeSignal, msgType)
	}

	sm, ok := msg.(SignalMsg)
	if !ok {
		t.Fatalf("expected SignalMsg, got %T", msg)
	}

	// The payload must survive as raw JSON, uninterpreted.
	var decoded map[string]string
	if err := json.Unmarshal(sm.Data, &decoded); err != nil {
		t.Fatalf("signal data is not valid JSON: %v", err)
	}
	if decoded["kind"] != "offer" {
		t.Errorf("expected kind %q, got %q", "offer", decoded["kind"])
	}
}

func TestParseClientMessage_Chat(t *testing.T) {
	input := []byte(`{"type":"chat","message":"hello there"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeChat {
		t.Fatalf("expected type %q, got %q", TypeChat, msgType)
	}

	cm, ok := msg.(ChatMsg)
	if !ok {
		t.Fatalf("expected ChatMsg, got %T", msg)
	}
	if cm.Message != "hello there" {
		t.Errorf("expected message %q, got %q", "hello there", cm.Message)
	}
}

func TestParseClientMessage_Report(t *testing.T) {
	input := []byte(`{"type":"report","room":"room_abc","timestamp":"2025-06-01T12:00:00Z","reported":"bob"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeReport {
		t.Fatalf("expected type %q, got %q", TypeReport, msgType)
	}

	rm, ok := msg.(ReportMsg)
	if !ok {
		t.Fatalf("expected ReportMsg, got %T", msg)
	}
	if rm.Room != "room_abc" {
		t.Errorf("expected room %q, got %q", "room_abc", rm.Room)
	}
	if rm.Reported != "bob" {
		t.Errorf("expected reported %q, got %q", "bob", rm.Reported)
	}
	if rm.Reporter != "" {
		t.Errorf("expected empty reporter, got %q", rm.Reporter)
	}
}

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"teleport"}`)

	_, _, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	inputs := [][]byte{
		[]byte(`{}`),
		[]byte(`{"message":"no type"}`),
		[]byte(`not json at all`),
	}

	for _, input := range inputs {
		if _, _, err := ParseClientMessage(input); err == nil {
			t.Errorf("expected error for input %s", input)
		}
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeMatched, MatchedMsg{
		Room:      "room_xyz",
		Initiator: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypeMatched {
		t.Errorf("expected type %q, got %v", TypeMatched, m["type"])
	}
	if m["room"] != "room_xyz" {
		t.Errorf("expected room %q, got %v", "room_xyz", m["room"])
	}
	if m["initiator"] != true {
		t.Errorf("expected initiator true, got %v", m["initiator"])
	}
}

func TestNewServerMessage_PreservesSignalPayload(t *testing.T) {
	payload := json.RawMessage(`{"candidate":"udp 192.0.2.1 3478"}`)
	data, err := NewServerMessage(TypeSignal, ServerSignalMsg{Data: payload})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "udp 192.0.2.1 3478") {
		t.Errorf("signal payload lost: %s", data)
	}
}
