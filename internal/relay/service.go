// Package relay forwards signaling and chat payloads between the two members
// of a room and delivers pairing lifecycle events. All engine mutation happens
// before any outbound write; delivery is best-effort and a failed write never
// propagates an error to the sender (the peer's own teardown handles it).
package relay

import (
	"encoding/json"
	"log"
	"time"

	"github.com/pairline/relay/internal/metrics"
	"github.com/pairline/relay/internal/pairing"
	"github.com/pairline/relay/internal/protocol"
)

// Connection status values reported through StatusFunc.
const (
	StatusIdle    = "idle"
	StatusWaiting = "waiting"
	StatusPaired  = "paired"
)

// Sender delivers an encoded event to a connection's outbound channel.
// The ws server satisfies this interface.
type Sender interface {
	SendMessage(connID string, data []byte) error
}

// Service implements the relay operations on top of the pairing engine.
type Service struct {
	engine *pairing.Engine
	sender Sender

	// StatusFunc, when set, is invoked after each committed state transition
	// (outside the engine lock) so callers can mirror presence elsewhere.
	// It must not block.
	StatusFunc func(connID, status string)
}

// NewService creates a relay Service over the given engine and sender.
func NewService(engine *pairing.Engine, sender Sender) *Service {
	return &Service{engine: engine, sender: sender}
}

// Engine exposes the underlying pairing engine for collaborators that need
// read access to room state (e.g. the report sink).
func (s *Service) Engine() *pairing.Engine {
	return s.engine
}

// Seek handles a find_partner intent. The pairing transaction is atomic in
// the engine; events are delivered afterwards. On a pairing, the partner's
// matched event is written before the seeker's so that a fast seeker cannot
// get a relayed frame onto the partner's wire ahead of its matched event.
func (s *Service) Seek(connID string) {
	res := s.engine.Seek(connID)

	if res.PrevPartner != "" {
		s.send(res.PrevPartner, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{})
		s.setStatus(res.PrevPartner, StatusIdle)
	}

	switch res.Outcome {
	case pairing.SeekAlreadyWaiting:
		s.send(connID, protocol.TypeWaiting, protocol.WaitingMsg{})

	case pairing.SeekWaiting:
		s.send(connID, protocol.TypeWaiting, protocol.WaitingMsg{})
		s.setStatus(connID, StatusWaiting)

	case pairing.SeekPaired:
		s.send(res.Partner, protocol.TypeMatched, protocol.MatchedMsg{
			Room:      res.Room,
			Initiator: !res.Initiator,
		})
		s.send(connID, protocol.TypeMatched, protocol.MatchedMsg{
			Room:      res.Room,
			Initiator: res.Initiator,
		})
		s.setStatus(res.Partner, StatusPaired)
		s.setStatus(connID, StatusPaired)
		metrics.PairingsTotal.Inc()
		log.Printf("relay: paired %s with %s room=%s", connID, res.Partner, res.Room)
	}

	s.updateGauges()
}

// Signal forwards an opaque signaling payload to the sender's room partner.
// A sender with no room is a benign race with teardown: the payload is
// dropped without an error.
func (s *Service) Signal(connID string, data json.RawMessage) {
	if len(data) == 0 {
		return
	}
	_, peer, ok := s.engine.PeerOf(connID)
	if !ok {
		return
	}
	s.send(peer, protocol.TypeSignal, protocol.ServerSignalMsg{Data: data})
	metrics.RelayedTotal.WithLabelValues("signal").Inc()
}

// Chat forwards a text message to the sender's room partner. Empty messages
// are dropped without effect; oversized or malformed ones get an error event
// back to the sender only.
func (s *Service) Chat(connID string, message string) {
	if message == "" {
		return
	}
	if err := ValidateChatMessage(message); err != nil {
		s.send(connID, protocol.TypeError, protocol.ErrorMsg{
			Code:    "invalid_message",
			Message: err.Error(),
		})
		return
	}

	_, peer, ok := s.engine.PeerOf(connID)
	if !ok {
		return
	}
	s.send(peer, protocol.TypeChat, protocol.ServerChatMsg{
		Message: message,
		Ts:      time.Now().Unix(),
	})
	metrics.RelayedTotal.WithLabelValues("chat").Inc()
}

// Skip handles a skip intent: the room is torn down and the partner receives
// exactly one partner_left. A lost teardown race is silent.
func (s *Service) Skip(connID string) {
	res := s.engine.Skip(connID)
	if res.TornDown {
		s.send(res.Partner, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{})
		s.setStatus(res.Partner, StatusIdle)
		s.setStatus(connID, StatusIdle)
		log.Printf("relay: %s skipped room=%s partner=%s", connID, res.Room, res.Partner)
	}
	s.updateGauges()
}

// Disconnect removes all pairing state for a closing connection and notifies
// its partner, if any. Teardown idempotence in the engine guarantees the
// partner is notified at most once even when both peers vanish together.
func (s *Service) Disconnect(connID string) {
	res := s.engine.Disconnect(connID)
	if res.TornDown {
		s.send(res.Partner, protocol.TypePartnerLeft, protocol.PartnerLeftMsg{})
		s.setStatus(res.Partner, StatusIdle)
		log.Printf("relay: %s disconnected room=%s partner=%s", connID, res.Room, res.Partner)
	}
	s.updateGauges()
}

// send encodes and delivers one event. Failed writes are dropped: the peer
// is disconnecting concurrently and its teardown path fires separately.
func (s *Service) send(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("relay: failed to build %s event for %s: %v", msgType, connID, err)
		return
	}
	if err := s.sender.SendMessage(connID, data); err != nil {
		log.Printf("relay: dropped %s event for %s: %v", msgType, connID, err)
	}
}

func (s *Service) setStatus(connID, status string) {
	if s.StatusFunc != nil {
		s.StatusFunc(connID, status)
	}
}

func (s *Service) updateGauges() {
	metrics.WaitingPoolSize.Set(float64(s.engine.WaitingLen()))
	metrics.ActiveRooms.Set(float64(s.engine.RoomCount()))
}
