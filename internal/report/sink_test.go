package report

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/pairline/relay/internal/protocol"
)

// fakeStorage records calls and can be told to fail specific operations.
type fakeStorage struct {
	createErr     error
	attachErr     map[Slot]error
	createdRoom   string
	createdTs     time.Time
	reporterLabel string
	reportedLabel string
	attached      []Slot
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{attachErr: make(map[Slot]error)}
}

func (f *fakeStorage) CreateReport(_ context.Context, room string, ts time.Time, reporterLabel, reportedLabel string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.createdRoom = room
	f.createdTs = ts
	f.reporterLabel = reporterLabel
	f.reportedLabel = reportedLabel
	return "report-1", nil
}

func (f *fakeStorage) AttachImage(_ context.Context, _ string, slot Slot, _ []byte, _ string) error {
	if err := f.attachErr[slot]; err != nil {
		return err
	}
	f.attached = append(f.attached, slot)
	return nil
}

func validImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png data"))
}

func TestSubmit_OK(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)

	res := sink.Submit(context.Background(), "conn-1", Submission{
		Room:       "room_abc",
		Reporter:   "alice",
		Reported:   "bob",
		Timestamp:  "2025-06-01T12:00:00Z",
		LocalImage: validImage(),
	})

	if res.Status != protocol.ReportStatusOK {
		t.Fatalf("expected ok, got %s (%s)", res.Status, res.Message)
	}
	if res.ReportID != "report-1" {
		t.Errorf("expected report id, got %q", res.ReportID)
	}
	if storage.createdRoom != "room_abc" {
		t.Errorf("unexpected room: %s", storage.createdRoom)
	}
	if !storage.createdTs.Equal(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("client timestamp not honored: %v", storage.createdTs)
	}
	if len(storage.attached) != 1 || storage.attached[0] != SlotLocal {
		t.Errorf("expected one local image, got %v", storage.attached)
	}
}

// Unparseable timestamp plus one valid and one corrupt image: report is
// created with server time, the valid image is stored, the corrupt one is
// skipped, and the caller still gets ok.
func TestSubmit_BadTimestampAndCorruptImage(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)

	before := time.Now().Add(-time.Second)
	res := sink.Submit(context.Background(), "conn-1", Submission{
		Room:        "room_abc",
		Timestamp:   "not-a-timestamp",
		LocalImage:  validImage(),
		RemoteImage: "%%%corrupt%%%",
	})
	after := time.Now().Add(time.Second)

	if res.Status != protocol.ReportStatusOK {
		t.Fatalf("expected ok, got %s (%s)", res.Status, res.Message)
	}
	if storage.createdTs.Before(before) || storage.createdTs.After(after) {
		t.Errorf("expected server-assigned time, got %v", storage.createdTs)
	}
	if len(storage.attached) != 1 || storage.attached[0] != SlotLocal {
		t.Errorf("expected only the valid image stored, got %v", storage.attached)
	}
}

func TestSubmit_ImageFailuresAreIndependent(t *testing.T) {
	storage := newFakeStorage()
	storage.attachErr[SlotLocal] = errors.New("disk full")
	sink := NewSink(storage)

	res := sink.Submit(context.Background(), "conn-1", Submission{
		Room:        "room_abc",
		LocalImage:  validImage(),
		RemoteImage: validImage(),
	})

	if res.Status != protocol.ReportStatusOK {
		t.Fatalf("a failed image must not fail the report, got %s", res.Status)
	}
	if len(storage.attached) != 1 || storage.attached[0] != SlotRemote {
		t.Errorf("remote image should still be stored, got %v", storage.attached)
	}
}

func TestSubmit_StorageErrorSurfaced(t *testing.T) {
	storage := newFakeStorage()
	storage.createErr = errors.New("connection refused")
	sink := NewSink(storage)

	res := sink.Submit(context.Background(), "conn-1", Submission{Room: "room_abc"})

	if res.Status != protocol.ReportStatusError {
		t.Fatalf("expected error status, got %s", res.Status)
	}
	if res.Message == "" {
		t.Error("caller must receive a human-readable message")
	}
}

func TestSubmit_NoStorageConfigured(t *testing.T) {
	sink := NewSink(nil)

	res := sink.Submit(context.Background(), "conn-1", Submission{Room: "room_abc"})

	if res.Status != protocol.ReportStatusUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Status)
	}
	if res.Message != "reports not configured" {
		t.Errorf("unexpected message: %q", res.Message)
	}
}

func TestSubmit_ReportedInferredFromRoomPeer(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)
	sink.ResolvePeer = func(room, reporterConn string) (string, bool) {
		if room == "room_abc" && reporterConn == "conn-1" {
			return "bob", true
		}
		return "", false
	}

	sink.Submit(context.Background(), "conn-1", Submission{Room: "room_abc"})

	if storage.reportedLabel != "bob" {
		t.Errorf("expected inferred label %q, got %q", "bob", storage.reportedLabel)
	}
}

func TestSubmit_RoomGoneLeavesReportedAbsent(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)
	sink.ResolvePeer = func(room, reporterConn string) (string, bool) {
		return "", false // room already torn down
	}

	res := sink.Submit(context.Background(), "conn-1", Submission{Room: "room_gone"})

	if res.Status != protocol.ReportStatusOK {
		t.Fatalf("missing room must not fail the report, got %s", res.Status)
	}
	if storage.reportedLabel != "" {
		t.Errorf("expected absent reported label, got %q", storage.reportedLabel)
	}
}

func TestSubmit_ReporterFallsBackToRegistry(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)
	sink.LookupIdentity = func(connID string) (string, bool) {
		if connID == "conn-1" {
			return "alice", true
		}
		return "", false
	}

	sink.Submit(context.Background(), "conn-1", Submission{Room: "room_abc"})

	if storage.reporterLabel != "alice" {
		t.Errorf("expected registry label %q, got %q", "alice", storage.reporterLabel)
	}
}

func TestSubmit_ClientSuppliedLabelsWin(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)
	sink.LookupIdentity = func(string) (string, bool) { return "registry-name", true }
	sink.ResolvePeer = func(string, string) (string, bool) { return "peer-name", true }

	sink.Submit(context.Background(), "conn-1", Submission{
		Room:     "room_abc",
		Reporter: "client-reporter",
		Reported: "client-reported",
	})

	if storage.reporterLabel != "client-reporter" {
		t.Errorf("client reporter label should win, got %q", storage.reporterLabel)
	}
	if storage.reportedLabel != "client-reported" {
		t.Errorf("client reported label should win, got %q", storage.reportedLabel)
	}
}

func TestSubmit_OnCreatedHook(t *testing.T) {
	storage := newFakeStorage()
	sink := NewSink(storage)

	var gotID, gotRoom string
	sink.OnCreated = func(reportID, room, reporterLabel, reportedLabel string) {
		gotID = reportID
		gotRoom = room
	}

	sink.Submit(context.Background(), "conn-1", Submission{Room: "room_abc"})

	if gotID != "report-1" || gotRoom != "room_abc" {
		t.Errorf("hook not invoked with report data: id=%q room=%q", gotID, gotRoom)
	}
}
