// Package protocol defines the WebSocket message types exchanged between
// clients and the relay server. All messages are JSON objects carrying a
// "type" discriminator; signaling payloads are treated as opaque JSON and
// never interpreted by the server.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeFindPartner = "find_partner"
	TypeSignal      = "signal"
	TypeChat        = "chat"
	TypeSkip        = "skip"
	TypeReport      = "report"
	TypePing        = "ping"
)

// Server -> Client message types. TypeSignal and TypeChat are reused for the
// relayed partner events.
const (
	TypeSessionCreated = "session_created"
	TypeWaiting        = "waiting"
	TypeMatched        = "matched"
	TypePartnerLeft    = "partner_left"
	TypeReportResult   = "report_result"
	TypeError          = "error"
	TypePong           = "pong"
)

// Report result status values.
const (
	ReportStatusOK          = "ok"
	ReportStatusError       = "error"
	ReportStatusUnavailable = "unavailable"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// FindPartnerMsg is sent by the client to enter the waiting pool.
type FindPartnerMsg struct {
	Type string `json:"type"`
}

// SignalMsg carries an opaque signaling payload (SDP offer/answer, ICE
// candidate, etc.) to be forwarded to the room partner. The server never
// inspects Data.
type SignalMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ChatMsg is a text message to be relayed to the room partner.
type ChatMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SkipMsg is sent by the client to leave the current room. Both peers may
// search again afterwards.
type SkipMsg struct {
	Type string `json:"type"`
}

// ReportMsg is sent by the client to report the room partner. Images are
// base64-encoded, optionally as data URLs with a media-type header.
type ReportMsg struct {
	Type        string `json:"type"`
	Room        string `json:"room"`
	LocalImage  string `json:"local_image,omitempty"`
	RemoteImage string `json:"remote_image,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
	Reported    string `json:"reported,omitempty"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionCreatedMsg is sent by the server when a new connection is accepted.
type SessionCreatedMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// WaitingMsg acknowledges that the client is queued in the waiting pool.
type WaitingMsg struct {
	Type string `json:"type"`
}

// MatchedMsg is sent to both peers when a pairing is made. Exactly one of
// the two receives Initiator=true and is expected to begin the signaling
// handshake.
type MatchedMsg struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	Initiator bool   `json:"initiator"`
}

// ServerSignalMsg forwards the partner's opaque signaling payload.
type ServerSignalMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerChatMsg forwards the partner's chat message.
type ServerChatMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// PartnerLeftMsg is sent when the room partner skipped or disconnected.
type PartnerLeftMsg struct {
	Type string `json:"type"`
}

// ReportResultMsg is the server's response to a report submission. Status is
// one of the ReportStatus* constants; ReportID is set on success and Message
// carries a human-readable explanation otherwise.
type ReportResultMsg struct {
	Type     string `json:"type"`
	Status   string `json:"status"`
	ReportID string `json:"report_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindPartner:
		var m FindPartnerMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSignal:
		var m SignalMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChat:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSkip:
		var m SkipMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReport:
		var m ReportMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs above.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
