// Package report implements the moderation report sink: it decodes report
// submissions (metadata plus up to two captured images), resolves the
// reported peer from live room state when the client did not name one, and
// persists everything through the storage collaborator. Every submission
// gets a response; no single decode or persistence failure of an image can
// fail the report itself.
package report

import (
	"context"
	"log"
	"time"

	"github.com/pairline/relay/internal/metrics"
	"github.com/pairline/relay/internal/protocol"
)

// Slot identifies which capture an image artifact belongs to.
type Slot string

const (
	SlotLocal  Slot = "local"
	SlotRemote Slot = "remote"
)

// Storage is the persistence collaborator consumed by the sink. The relay
// core only writes reports; it never reads them back.
type Storage interface {
	// CreateReport persists the report record and returns its identifier.
	CreateReport(ctx context.Context, room string, ts time.Time, reporterLabel, reportedLabel string) (string, error)
	// AttachImage stores one image artifact for an existing report.
	AttachImage(ctx context.Context, reportID string, slot Slot, data []byte, contentType string) error
}

// Submission is a report intent from a client, field for field.
type Submission struct {
	Room        string
	Reporter    string // label supplied by the client, may be empty
	Reported    string // label supplied by the client, may be empty
	Timestamp   string // client clock, RFC 3339; server time when unusable
	LocalImage  string // base64 or data URL, may be empty
	RemoteImage string // base64 or data URL, may be empty
}

// Result is what the submitting client is told. Status is one of the
// protocol.ReportStatus* values.
type Result struct {
	Status   string
	ReportID string
	Message  string
}

// Sink orchestrates report submissions.
type Sink struct {
	storage Storage

	// ResolvePeer returns the identity label of the other member of room,
	// excluding the reporter's connection. ok=false when the room is gone
	// or the peer is anonymous; the report proceeds with an absent label.
	ResolvePeer func(room, reporterConn string) (label string, ok bool)

	// LookupIdentity returns the reporter's own attached label, used when
	// the client did not supply one.
	LookupIdentity func(connID string) (label string, ok bool)

	// OnCreated, when set, is invoked after a successful submission (e.g.
	// to publish a moderation event). Failures are the callback's problem.
	OnCreated func(reportID, room, reporterLabel, reportedLabel string)
}

// NewSink creates a Sink over the given storage. A nil storage is valid and
// makes every submission answer with the unavailable status.
func NewSink(storage Storage) *Sink {
	return &Sink{storage: storage}
}

// Submit processes one report submission from connID. It always returns a
// Result; the caller is responsible for delivering it to the client.
func (s *Sink) Submit(ctx context.Context, connID string, sub Submission) Result {
	if s.storage == nil {
		metrics.ReportsTotal.WithLabelValues(protocol.ReportStatusUnavailable).Inc()
		return Result{
			Status:  protocol.ReportStatusUnavailable,
			Message: "reports not configured",
		}
	}

	reporter := sub.Reporter
	if reporter == "" && s.LookupIdentity != nil {
		reporter, _ = s.LookupIdentity(connID)
	}

	reported := sub.Reported
	if reported == "" && sub.Room != "" && s.ResolvePeer != nil {
		// Best effort: if the room is already torn down the reported
		// identity simply stays absent.
		reported, _ = s.ResolvePeer(sub.Room, connID)
	}

	ts := parseTimestamp(sub.Timestamp)

	reportID, err := s.storage.CreateReport(ctx, sub.Room, ts, reporter, reported)
	if err != nil {
		log.Printf("report: create failed room=%s: %v", sub.Room, err)
		metrics.ReportsTotal.WithLabelValues(protocol.ReportStatusError).Inc()
		return Result{
			Status:  protocol.ReportStatusError,
			Message: "failed to save report",
		}
	}

	// Image persistence is failure-isolated per image: a bad local capture
	// never blocks the remote one, and neither blocks the report.
	s.attach(ctx, reportID, SlotLocal, sub.LocalImage)
	s.attach(ctx, reportID, SlotRemote, sub.RemoteImage)

	if s.OnCreated != nil {
		s.OnCreated(reportID, sub.Room, reporter, reported)
	}

	metrics.ReportsTotal.WithLabelValues(protocol.ReportStatusOK).Inc()
	log.Printf("report: saved id=%s room=%s reported=%q", reportID, sub.Room, reported)
	return Result{Status: protocol.ReportStatusOK, ReportID: reportID}
}

// attach decodes and stores one image. All failures are logged and dropped.
func (s *Sink) attach(ctx context.Context, reportID string, slot Slot, payload string) {
	if payload == "" {
		return
	}
	data, contentType, err := DecodeImage(payload)
	if err != nil {
		log.Printf("report: %s image for %s skipped: %v", slot, reportID, err)
		return
	}
	if err := s.storage.AttachImage(ctx, reportID, slot, data, contentType); err != nil {
		log.Printf("report: %s image for %s not stored: %v", slot, reportID, err)
	}
}

// parseTimestamp parses the client-supplied timestamp, substituting current
// server time for anything missing or unparseable. A bad clock never rejects
// a report.
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
